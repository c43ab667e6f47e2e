package httptransport

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"custos/internal/batch/models"
	"custos/internal/batch/service"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// BatchService is the custody core surface the transport depends on.
type BatchService interface {
	CreateBatch(ctx context.Context, brandOwnerKey domain.ActorKey, producerName string, initialHolderKey domain.ActorKey, participantIDs []domain.PartnerID) (*models.Batch, error)
	GetBatch(ctx context.Context, id domain.BatchID) (*models.View, error)
	ListBatchesHeldBy(ctx context.Context, actorKey domain.ActorKey) ([]*models.View, error)
	ListBatchesOwnedBy(ctx context.Context, actorKey domain.ActorKey) ([]*models.View, error)
	AddParticipants(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, partnerIDs []domain.PartnerID) error
	RemoveParticipant(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, partnerID domain.PartnerID) error
	TransferCustody(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, newHolderPartnerID domain.PartnerID) error
	AppendStage(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, stageName string, ref domain.ContentRef) (int64, error)
	AppendStageWithAttachment(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, stageName string, attachment []byte) (int64, error)
	GetAttachment(ctx context.Context, ref domain.ContentRef) ([]byte, error)
	ListStages(ctx context.Context, batchID domain.BatchID) ([]models.Stage, error)
	ListStagesByActor(ctx context.Context, actorKey domain.ActorKey) ([]models.StageWithBatch, error)
	Finalize(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey) error
}

var _ BatchService = (*service.Service)(nil)

type createBatchRequest struct {
	ProducerName     string   `json:"producer_name"`
	InitialHolderKey string   `json:"initial_holder_key"`
	ParticipantIDs   []string `json:"participant_ids"`
}

func (h *Handler) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	actorKey, err := requireActorKey(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	var req createBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	holderKey, err := domain.ParseActorKey(req.InitialHolderKey)
	if err != nil {
		writeError(w, err)
		return
	}
	ids, err := parsePartnerIDs(req.ParticipantIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.batches.CreateBatch(r.Context(), actorKey, req.ProducerName, holderKey, ids)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.batches.GetBatch(r.Context(), batchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleListBatches serves the held-by and owned-by views. With no query
// parameter it defaults to the batches the authenticated actor holds.
func (h *Handler) handleListBatches(w http.ResponseWriter, r *http.Request) {
	actorKey, err := requireActorKey(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	var views []*models.View
	switch {
	case q.Get("owner") != "":
		ownerKey, err := domain.ParseActorKey(q.Get("owner"))
		if err != nil {
			writeError(w, err)
			return
		}
		views, err = h.batches.ListBatchesOwnedBy(r.Context(), ownerKey)
		if err != nil {
			writeError(w, err)
			return
		}
	case q.Get("holder") != "":
		holderKey, err := domain.ParseActorKey(q.Get("holder"))
		if err != nil {
			writeError(w, err)
			return
		}
		views, err = h.batches.ListBatchesHeldBy(r.Context(), holderKey)
		if err != nil {
			writeError(w, err)
			return
		}
	default:
		views, err = h.batches.ListBatchesHeldBy(r.Context(), actorKey)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"batches": views})
}

type addParticipantsRequest struct {
	PartnerIDs []string `json:"partner_ids"`
}

func (h *Handler) handleAddParticipants(w http.ResponseWriter, r *http.Request) {
	actorKey, err := requireActorKey(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req addParticipantsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	ids, err := parsePartnerIDs(req.PartnerIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.batches.AddParticipants(r.Context(), batchID, actorKey, ids); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveParticipant(w http.ResponseWriter, r *http.Request) {
	actorKey, err := requireActorKey(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	partnerID, err := domain.ParsePartnerID(chi.URLParam(r, "partnerID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.batches.RemoveParticipant(r.Context(), batchID, actorKey, partnerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferCustodyRequest struct {
	NewHolderPartnerID string `json:"new_holder_partner_id"`
}

func (h *Handler) handleTransferCustody(w http.ResponseWriter, r *http.Request) {
	actorKey, err := requireActorKey(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req transferCustodyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	partnerID, err := domain.ParsePartnerID(req.NewHolderPartnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.batches.TransferCustody(r.Context(), batchID, actorKey, partnerID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type appendStageRequest struct {
	StageName  string `json:"stage_name"`
	ContentRef string `json:"content_ref,omitempty"`
	// Attachment carries inline payload bytes (base64 in JSON). Mutually
	// exclusive with ContentRef.
	Attachment []byte `json:"attachment,omitempty"`
}

type appendStageResponse struct {
	SequenceIndex int64 `json:"sequence_index"`
}

func (h *Handler) handleAppendStage(w http.ResponseWriter, r *http.Request) {
	actorKey, err := requireActorKey(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req appendStageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Attachment) > 0 && req.ContentRef != "" {
		writeError(w, dErrors.New(dErrors.CodeValidation, "attachment and content_ref are mutually exclusive"))
		return
	}

	var index int64
	if len(req.Attachment) > 0 {
		index, err = h.batches.AppendStageWithAttachment(r.Context(), batchID, actorKey, req.StageName, req.Attachment)
	} else {
		index, err = h.batches.AppendStage(r.Context(), batchID, actorKey, req.StageName, domain.ContentRef(req.ContentRef))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appendStageResponse{SequenceIndex: index})
}

func (h *Handler) handleListStages(w http.ResponseWriter, r *http.Request) {
	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	stages, err := h.batches.ListStages(r.Context(), batchID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": stages})
}

// handleListStagesByActor serves an actor's cross-batch history. Defaults to
// the authenticated actor when no explicit actor is queried.
func (h *Handler) handleListStagesByActor(w http.ResponseWriter, r *http.Request) {
	actorKey, err := requireActorKey(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if q := r.URL.Query().Get("actor"); q != "" {
		actorKey, err = domain.ParseActorKey(q)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	stages, err := h.batches.ListStagesByActor(r.Context(), actorKey)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stages": stages})
}

func (h *Handler) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	ref, err := domain.ParseContentRef(chi.URLParam(r, "contentRef"))
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := h.batches.GetAttachment(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	actorKey, err := requireActorKey(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	batchID, err := domain.ParseBatchID(chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.batches.Finalize(r.Context(), batchID, actorKey); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parsePartnerIDs(raw []string) ([]domain.PartnerID, error) {
	ids := make([]domain.PartnerID, len(raw))
	for i, r := range raw {
		id, err := domain.ParsePartnerID(r)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
