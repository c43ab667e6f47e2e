package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"custos/internal/partner"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// defaultTokenTTL bounds admin-minted actor tokens when the request does not
// ask for a specific lifetime.
const defaultTokenTTL = 24 * time.Hour

// TokenIssuer mints actor tokens. Implemented by actortoken.Service.
type TokenIssuer interface {
	Issue(actorKey domain.ActorKey, expiresIn time.Duration) (string, error)
}

// Handler carries the service dependencies for all HTTP endpoints.
type Handler struct {
	batches  BatchService
	partners *partner.Directory
	tokens   TokenIssuer
	logger   *slog.Logger
	health   []func(ctx context.Context) error
}

type HandlerOption func(*Handler)

func WithHandlerLogger(logger *slog.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithHealthCheck registers a dependency probe for /healthz. Probes run in
// order; the first failure marks the service unhealthy.
func WithHealthCheck(check func(ctx context.Context) error) HandlerOption {
	return func(h *Handler) {
		h.health = append(h.health, check)
	}
}

func NewHandler(batches BatchService, partners *partner.Directory, tokens TokenIssuer, opts ...HandlerOption) *Handler {
	h := &Handler{
		batches:  batches,
		partners: partners,
		tokens:   tokens,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, check := range h.health {
		if err := check(r.Context()); err != nil {
			h.logger.ErrorContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerPartnerRequest struct {
	PublicKey   string `json:"public_key"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ContactInfo string `json:"contact_info"`
}

func (h *Handler) handleRegisterPartner(w http.ResponseWriter, r *http.Request) {
	var req registerPartnerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	key, err := domain.ParseActorKey(req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := h.partners.Register(r.Context(), key, req.Name, role, req.ContactInfo)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

type issueTokenRequest struct {
	ActorKey  string `json:"actor_key"`
	ExpiresIn string `json:"expires_in,omitempty"`
}

type issueTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	key, err := domain.ParseActorKey(req.ActorKey)
	if err != nil {
		writeError(w, err)
		return
	}
	// Tokens may only be minted for registered partners.
	if _, err := h.partners.ResolveKey(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	ttl := defaultTokenTTL
	if req.ExpiresIn != "" {
		d, err := time.ParseDuration(req.ExpiresIn)
		if err != nil || d <= 0 {
			writeError(w, dErrors.New(dErrors.CodeValidation, "expires_in must be a positive duration"))
			return
		}
		ttl = d
	}
	token, err := h.tokens.Issue(key, ttl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issueTokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
	})
}

func (h *Handler) handleListPartners(w http.ResponseWriter, r *http.Request) {
	var (
		partners []*partner.Partner
		err      error
	)
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, parseErr := domain.ParseRole(raw)
		if parseErr != nil {
			writeError(w, parseErr)
			return
		}
		partners, err = h.partners.ListByRole(r.Context(), role)
	} else {
		partners, err = h.partners.List(r.Context())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"partners": partners})
}
