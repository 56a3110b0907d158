package registry

import "github.com/example/token-transfer/internal/security"

const transferFactoryResponseSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["factoryId", "transferKind", "choiceContext"],
  "properties": {
    "factoryId": {"type": "string", "minLength": 1},
    "transferKind": {"type": "string", "enum": ["self", "direct", "offer"]},
    "choiceContext": {
      "type": "object",
      "required": ["choiceContextData", "disclosedContracts"],
      "properties": {
        "choiceContextData": {"type": "object"},
        "disclosedContracts": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["templateId", "contractId", "createdEventBlob", "synchronizerId"],
            "properties": {
              "templateId": {"type": "string"},
              "contractId": {"type": "string"},
              "createdEventBlob": {"type": "string"},
              "synchronizerId": {"type": "string"}
            }
          }
        }
      }
    }
  }
}`

var responseValidator = security.MustJSONSchemaValidator(transferFactoryResponseSchema)
