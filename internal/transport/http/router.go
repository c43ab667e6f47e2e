// Package httptransport is the thin HTTP layer. Handlers decode requests,
// pull the authenticated actor key out of the context, and delegate to the
// domain services; no business logic lives here.
package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/middleware/auth"
)

// Middleware aliases keep the router signature readable.
type Middleware = func(http.Handler) http.Handler

// NewRouter wires all endpoints. Batch and partner reads require an
// authenticated actor; partner registration and token minting are admin
// operations.
func NewRouter(h *Handler, requireActor, requireAdmin Middleware) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/admin/partners", h.handleRegisterPartner)
		r.Post("/admin/tokens", h.handleIssueToken)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireActor)

		r.Get("/partners", h.handleListPartners)

		r.Post("/batches", h.handleCreateBatch)
		r.Get("/batches", h.handleListBatches)
		r.Get("/batches/{batchID}", h.handleGetBatch)

		r.Post("/batches/{batchID}/participants", h.handleAddParticipants)
		r.Delete("/batches/{batchID}/participants/{partnerID}", h.handleRemoveParticipant)

		r.Post("/batches/{batchID}/custody", h.handleTransferCustody)

		r.Post("/batches/{batchID}/stages", h.handleAppendStage)
		r.Get("/batches/{batchID}/stages", h.handleListStages)
		r.Get("/stages", h.handleListStagesByActor)
		r.Get("/blobs/{contentRef}", h.handleGetBlob)

		r.Post("/batches/{batchID}/finalize", h.handleFinalize)
	})

	return r
}

// writeError centralizes domain error translation to HTTP responses so every
// handler returns the same JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.GetCode(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid JSON body")
	}
	return nil
}

// requireActorKey returns the authenticated actor key. The middleware
// guarantees presence on protected routes; the error covers routes wired
// without it by mistake.
func requireActorKey(ctx context.Context) (domain.ActorKey, error) {
	key := auth.GetActorKey(ctx)
	if key.IsNil() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "no authenticated actor")
	}
	return key, nil
}
