package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/example/token-transfer/internal/auth"
	"github.com/example/token-transfer/internal/journal"
	"github.com/example/token-transfer/internal/security"
	"github.com/example/token-transfer/internal/workflow"
)

type createTransferRequest struct {
	Receiver           string            `json:"receiver"`
	Amount             string            `json:"amount"`
	InstrumentID       string            `json:"instrument_id"`
	InstrumentAdmin    string            `json:"instrument_admin"`
	Validity           string            `json:"validity"`
	Reason             string            `json:"reason"`
	Meta               map[string]string `json:"meta"`
	IncludeDebugFields bool              `json:"include_debug_fields"`
}

type createTransferResponse struct {
	CorrelationID string          `json:"correlation_id"`
	RecordID      string          `json:"record_id,omitempty"`
	Offset        string          `json:"offset"`
	HoldingCIDs   []string        `json:"holding_cids"`
	FactoryID     string          `json:"factory_id"`
	TransferKind  string          `json:"transfer_kind"`
	Response      json.RawMessage `json:"response"`
}

type listTransfersResponse struct {
	CorrelationID string           `json:"correlation_id"`
	Transfers     []journal.Record `json:"transfers"`
}

func handleCreateTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Runner == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "workflow_unavailable")
			return
		}

		var req createTransferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json")
			return
		}

		in := deps.Defaults
		in.Receiver = req.Receiver
		in.Amount = req.Amount
		in.Reason = req.Reason
		in.Meta = req.Meta
		in.IncludeDebugFields = req.IncludeDebugFields
		if req.InstrumentID != "" {
			in.Instrument.ID = req.InstrumentID
		}
		if req.InstrumentAdmin != "" {
			in.Instrument.Admin = req.InstrumentAdmin
		}
		if req.Validity != "" {
			d, err := time.ParseDuration(req.Validity)
			if err != nil {
				security.WriteJSONErrorDetail(w, r, http.StatusBadRequest, "validation_error", "validity: "+err.Error())
				return
			}
			in.Validity = d
		}

		ctx := r.Context()
		var err error
		if deps.TokenSource != nil {
			in.AccessToken, err = deps.TokenSource.Token(ctx)
		} else {
			in.AccessToken, _ = auth.TokenFromContext(ctx)
		}
		if err == nil && deps.RegistryTokenSource != nil {
			in.RegistryAccessToken, err = deps.RegistryTokenSource.Token(ctx)
		}
		if err != nil {
			deps.Logger.WarnContext(ctx, "token acquisition failed", "cid", security.CorrelationIDFromContext(ctx), "error", err)
			record(ctx, deps, in, nil, err)
			writeWorkflowError(w, r, err)
			return
		}

		res, runErr := deps.Runner.Run(ctx, in)
		recordID := record(ctx, deps, in, res, runErr)
		if runErr != nil {
			writeWorkflowError(w, r, runErr)
			return
		}

		writeJSON(w, r, http.StatusCreated, createTransferResponse{
			CorrelationID: res.CorrelationID,
			RecordID:      recordID,
			Offset:        string(res.Offset),
			HoldingCIDs:   res.HoldingCIDs,
			FactoryID:     res.Response.FactoryID,
			TransferKind:  res.Response.TransferKind,
			Response:      res.Response.Raw,
		})
	}
}

// record journals a run and returns the record id, or "" when nothing was
// saved. The save outlives a disconnected client.
func record(ctx context.Context, deps Dependencies, in workflow.Input, res *workflow.Result, runErr error) string {
	if deps.Journal == nil {
		return ""
	}
	rec := journal.FromRun(in, res, runErr)
	if rec.CorrelationID == "" {
		rec.CorrelationID = security.CorrelationIDFromContext(ctx)
	}
	if err := deps.Journal.Save(context.WithoutCancel(ctx), rec); err != nil {
		deps.Logger.ErrorContext(ctx, "journal save failed", "cid", security.CorrelationIDFromContext(ctx), "error", err)
		return ""
	}
	return rec.ID
}

func handleListTransfers(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Journal == nil {
			security.WriteJSONError(w, r, http.StatusServiceUnavailable, "journal_unavailable")
			return
		}

		opts := journal.ListOptions{Party: r.URL.Query().Get("party")}
		if v := r.URL.Query().Get("limit"); v != "" {
			i, err := strconv.Atoi(v)
			if err != nil || i < 0 {
				security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_limit")
				return
			}
			opts.Limit = i
		}

		records, err := deps.Journal.List(r.Context(), opts)
		if err != nil {
			deps.Logger.ErrorContext(r.Context(), "journal list failed", "error", err)
			security.WriteJSONError(w, r, http.StatusInternalServerError, "internal_error")
			return
		}
		if records == nil {
			records = []journal.Record{}
		}

		writeJSON(w, r, http.StatusOK, listTransfersResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Transfers:     records,
		})
	}
}
