package api

const createTransferSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["receiver", "amount"],
  "properties": {
    "receiver": {"type": "string", "minLength": 1, "maxLength": 512},
    "amount": {"type": "string", "pattern": "^[0-9]+(\\.[0-9]+)?$"},
    "instrument_id": {"type": "string", "minLength": 1, "maxLength": 255},
    "instrument_admin": {"type": "string", "minLength": 1, "maxLength": 512},
    "validity": {"type": "string", "pattern": "^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$"},
    "reason": {"type": "string", "maxLength": 1024},
    "meta": {"type": "object", "additionalProperties": {"type": "string"}},
    "include_debug_fields": {"type": "boolean"}
  }
}`
