// Package service is the custody core: batch creation, participant
// membership, custody transfer, stage append, and finalization. Every
// mutation validates its own preconditions, authorizes the acting identity,
// commits the attestation to the durable ledger, and only then commits the
// in-core state under the batch's version CAS.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"custos/internal/batch/metrics"
	"custos/internal/batch/models"
	"custos/internal/batch/store"
	"custos/internal/blobstore"
	"custos/internal/identity"
	"custos/internal/ledger"
	"custos/internal/partner"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
)

// PartnerDirectory is the read-only registry lookup the core depends on.
type PartnerDirectory interface {
	Resolve(ctx context.Context, id domain.PartnerID) (*partner.Partner, error)
	ResolveKey(ctx context.Context, key domain.ActorKey) (*partner.Partner, error)
	ResolveAll(ctx context.Context, ids []domain.PartnerID) ([]*partner.Partner, error)
}

// defaultAppendRetries bounds how often a lost stage-append race is replayed
// before the conflict surfaces to the caller.
const defaultAppendRetries = 3

// Service orchestrates all batch mutations and read views.
type Service struct {
	store     store.Store
	directory PartnerDirectory
	verifier  *identity.Verifier
	committer ledger.Committer
	blobs     blobstore.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
	retries   int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithBlobStore enables inline attachment upload on stage append.
func WithBlobStore(b blobstore.Store) Option {
	return func(s *Service) {
		s.blobs = b
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithAppendRetries overrides how many CAS losses a stage append absorbs
// before failing with a conflict.
func WithAppendRetries(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.retries = n
		}
	}
}

// New constructs the custody core. Store, directory, and ledger committer
// are mandatory; everything else is optional.
func New(st store.Store, directory PartnerDirectory, committer ledger.Committer, opts ...Option) *Service {
	s := &Service{
		store:     st,
		directory: directory,
		verifier:  identity.NewVerifier(),
		committer: committer,
		tracer:    otel.Tracer("custos/batch"),
		now:       time.Now,
		retries:   defaultAppendRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// loadBatch fetches a batch, translating the store sentinel.
func (s *Service) loadBatch(ctx context.Context, id domain.BatchID) (*models.Batch, error) {
	b, err := s.store.FindBatch(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "batch not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load batch")
	}
	return b, nil
}

// translateCommitErr maps store sentinels from a mutation commit to domain
// errors.
func (s *Service) translateCommitErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		s.metrics.IncCASConflicts()
		return dErrors.New(dErrors.CodeConflict, "batch was modified concurrently; re-read and retry")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "batch not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit batch mutation")
	}
}

// commitLedger writes the attestation to the durable ledger before the core
// state is committed. On failure nothing in the core has changed yet.
func (s *Service) commitLedger(ctx context.Context, batchID domain.BatchID, recordType ledger.RecordType, payload []byte) error {
	if err := s.committer.CommitRecord(ctx, batchID, recordType, payload); err != nil {
		s.metrics.IncLedgerCommitFails()
		if errors.Is(err, sentinel.ErrUnavailable) {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "durable ledger is unreachable")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "durable ledger commit failed")
	}
	return nil
}

func (s *Service) logOp(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}
