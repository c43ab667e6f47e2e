package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"custos/internal/batch/models"
	"custos/internal/batch/service"
	"custos/internal/batch/store"
	"custos/internal/blobstore"
	"custos/internal/ledger"
	"custos/internal/partner"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
)

// failingCommitter simulates an unreachable ledger so tests can verify that
// core state never changes when the external commit fails.
type failingCommitter struct{}

func (f *failingCommitter) CommitRecord(context.Context, domain.BatchID, ledger.RecordType, []byte) error {
	return sentinel.ErrUnavailable
}

func (f *failingCommitter) Close() error { return nil }

type ServiceSuite struct {
	suite.Suite
	ctx       context.Context
	store     *store.InMemory
	partners  *partner.InMemoryStore
	directory *partner.Directory
	committer *ledger.InMemoryCommitter
	service   *service.Service

	owner     *partner.Partner
	grower    *partner.Partner
	processor *partner.Partner
	auditor   *partner.Partner
	outsider  *partner.Partner
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = store.NewInMemory()
	s.partners = partner.NewInMemoryStore()
	s.directory = partner.NewDirectory(s.partners)
	s.committer = ledger.NewInMemoryCommitter()
	s.service = service.New(s.store, s.directory, s.committer,
		service.WithBlobStore(blobstore.NewInMemory()),
	)

	s.owner = s.registerPartner("brand-owner-key", "Highland Brands", domain.RoleDistributor)
	s.grower = s.registerPartner("grower-key", "Finca La Loma", domain.RoleProducer)
	s.processor = s.registerPartner("processor-key", "Beneficio Central", domain.RoleProcessor)
	s.auditor = s.registerPartner("auditor-key", "GreenCheck", domain.RoleSustainability)
	s.outsider = s.registerPartner("outsider-key", "Unrelated Co", domain.RoleTransporter)
}

func (s *ServiceSuite) registerPartner(key, name string, role domain.Role) *partner.Partner {
	p, err := s.directory.Register(s.ctx, domain.ActorKey(key), name, role, "")
	s.Require().NoError(err)
	return p
}

// newBatch creates a batch owned by s.owner with s.grower holding custody
// and s.processor in the cast.
func (s *ServiceSuite) newBatch() *models.Batch {
	b, err := s.service.CreateBatch(s.ctx, s.owner.PublicKey, "Finca La Loma",
		s.grower.PublicKey, []domain.PartnerID{s.grower.ID, s.processor.ID})
	s.Require().NoError(err)
	return b
}

func (s *ServiceSuite) TestCreateBatch() {
	s.Run("creates an active batch with holder and participants", func() {
		b := s.newBatch()
		s.Equal(models.StatusActive, b.Status)
		s.Equal(s.owner.PublicKey, b.BrandOwnerKey)
		s.Equal(s.grower.PublicKey, b.CurrentHolderKey)
		s.NotEmpty(b.HumanReadableID)
		s.Zero(b.NextStageIndex)

		view, err := s.service.GetBatch(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Len(view.Participants, 2)
		s.Empty(view.Stages)
	})

	s.Run("auto-includes the initial holder in the participant set", func() {
		b, err := s.service.CreateBatch(s.ctx, s.owner.PublicKey, "Finca La Loma",
			s.grower.PublicKey, []domain.PartnerID{s.processor.ID})
		s.Require().NoError(err)

		view, err := s.service.GetBatch(s.ctx, b.ID)
		s.Require().NoError(err)
		ids := make(map[domain.PartnerID]bool)
		for _, p := range view.Participants {
			ids[p.PartnerID] = true
		}
		s.True(ids[s.grower.ID])
		s.True(ids[s.processor.ID])
	})

	s.Run("rejects empty producer name", func() {
		_, err := s.service.CreateBatch(s.ctx, s.owner.PublicKey, "",
			s.grower.PublicKey, []domain.PartnerID{s.grower.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects empty participant set", func() {
		_, err := s.service.CreateBatch(s.ctx, s.owner.PublicKey, "Finca La Loma",
			s.grower.PublicKey, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects unregistered initial holder", func() {
		_, err := s.service.CreateBatch(s.ctx, s.owner.PublicKey, "Finca La Loma",
			"never-registered", []domain.PartnerID{s.grower.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects unregistered participant id", func() {
		_, err := s.service.CreateBatch(s.ctx, s.owner.PublicKey, "Finca La Loma",
			s.grower.PublicKey, []domain.PartnerID{domain.NewPartnerID()})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("commits a creation record to the ledger", func() {
		b := s.newBatch()
		records := s.committer.RecordsFor(b.ID)
		s.Require().Len(records, 1)
		s.Equal(ledger.RecordBatchCreated, records[0].Type)
	})
}

func (s *ServiceSuite) TestAddParticipants() {
	s.Run("brand owner extends the cast", func() {
		b := s.newBatch()
		err := s.service.AddParticipants(s.ctx, b.ID, s.owner.PublicKey,
			[]domain.PartnerID{s.outsider.ID})
		s.Require().NoError(err)

		view, err := s.service.GetBatch(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Len(view.Participants, 3)
	})

	s.Run("is idempotent for partners already in the cast", func() {
		b := s.newBatch()
		err := s.service.AddParticipants(s.ctx, b.ID, s.owner.PublicKey,
			[]domain.PartnerID{s.processor.ID, s.processor.ID})
		s.Require().NoError(err)

		view, err := s.service.GetBatch(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Len(view.Participants, 2)
	})

	s.Run("rejects callers other than the brand owner", func() {
		b := s.newBatch()
		err := s.service.AddParticipants(s.ctx, b.ID, s.grower.PublicKey,
			[]domain.PartnerID{s.outsider.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestRemoveParticipant() {
	s.Run("brand owner removes a non-holder", func() {
		b := s.newBatch()
		err := s.service.RemoveParticipant(s.ctx, b.ID, s.owner.PublicKey, s.processor.ID)
		s.Require().NoError(err)

		view, err := s.service.GetBatch(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Len(view.Participants, 1)
	})

	s.Run("refuses to remove the current holder", func() {
		b := s.newBatch()
		err := s.service.RemoveParticipant(s.ctx, b.ID, s.owner.PublicKey, s.grower.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("reports a non-participant as not found", func() {
		b := s.newBatch()
		err := s.service.RemoveParticipant(s.ctx, b.ID, s.owner.PublicKey, s.outsider.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Contains(err.Error(), "not a participant")
	})

	s.Run("failed removal commits nothing to the ledger", func() {
		b := s.newBatch()
		before := len(s.committer.RecordsFor(b.ID))

		err := s.service.RemoveParticipant(s.ctx, b.ID, s.owner.PublicKey, s.outsider.ID)
		s.Require().True(dErrors.HasCode(err, dErrors.CodeNotFound))

		for _, r := range s.committer.RecordsFor(b.ID)[before:] {
			s.NotEqual(ledger.RecordParticipantRemoved, r.Type)
		}
	})

	s.Run("rejects callers other than the brand owner", func() {
		b := s.newBatch()
		err := s.service.RemoveParticipant(s.ctx, b.ID, s.grower.PublicKey, s.processor.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("removed participant's stages remain in the history", func() {
		b := s.newBatch()
		_, err := s.service.AppendStage(s.ctx, b.ID, s.grower.PublicKey, "Harvesting", "")
		s.Require().NoError(err)
		s.Require().NoError(s.service.TransferCustody(s.ctx, b.ID, s.grower.PublicKey, s.processor.ID))
		s.Require().NoError(s.service.RemoveParticipant(s.ctx, b.ID, s.owner.PublicKey, s.grower.ID))

		stages, err := s.service.ListStages(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Require().Len(stages, 1)
		s.Equal(s.grower.PublicKey, stages[0].ActorKey)
	})
}

func (s *ServiceSuite) TestTransferCustody() {
	s.Run("current holder hands off to a participant", func() {
		b := s.newBatch()
		err := s.service.TransferCustody(s.ctx, b.ID, s.grower.PublicKey, s.processor.ID)
		s.Require().NoError(err)

		view, err := s.service.GetBatch(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Equal(s.processor.PublicKey, view.Batch.CurrentHolderKey)
	})

	s.Run("transfer moves append authority with it", func() {
		b := s.newBatch()
		s.Require().NoError(s.service.TransferCustody(s.ctx, b.ID, s.grower.PublicKey, s.processor.ID))

		_, err := s.service.AppendStage(s.ctx, b.ID, s.grower.PublicKey, "Drying", "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

		_, err = s.service.AppendStage(s.ctx, b.ID, s.processor.PublicKey, "Washing", "")
		s.NoError(err)
	})

	s.Run("rejects callers other than the current holder", func() {
		b := s.newBatch()
		err := s.service.TransferCustody(s.ctx, b.ID, s.owner.PublicKey, s.processor.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("rejects a new holder outside the cast", func() {
		b := s.newBatch()
		err := s.service.TransferCustody(s.ctx, b.ID, s.grower.PublicKey, s.outsider.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("rejects a role that cannot hold custody", func() {
		b := s.newBatch()
		s.Require().NoError(s.service.AddParticipants(s.ctx, b.ID, s.owner.PublicKey,
			[]domain.PartnerID{s.auditor.ID}))
		err := s.service.TransferCustody(s.ctx, b.ID, s.grower.PublicKey, s.auditor.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestAppendStage() {
	s.Run("assigns contiguous sequence indices from zero", func() {
		b := s.newBatch()
		for want := int64(0); want < 3; want++ {
			got, err := s.service.AppendStage(s.ctx, b.ID, s.grower.PublicKey, "Harvesting", "")
			s.Require().NoError(err)
			s.Equal(want, got)
		}
	})

	s.Run("rejects empty stage name", func() {
		b := s.newBatch()
		_, err := s.service.AppendStage(s.ctx, b.ID, s.grower.PublicKey, "", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("rejects non-holders including the brand owner", func() {
		b := s.newBatch()
		_, err := s.service.AppendStage(s.ctx, b.ID, s.owner.PublicKey, "Harvesting", "")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("unknown batch is not found", func() {
		_, err := s.service.AppendStage(s.ctx, domain.NewBatchID(), s.grower.PublicKey, "Harvesting", "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("concurrent appends win distinct contiguous indices", func() {
		b := s.newBatch()
		const appenders = 8

		var wg sync.WaitGroup
		indices := make(chan int64, appenders)
		for i := 0; i < appenders; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				idx, err := s.service.AppendStage(s.ctx, b.ID, s.grower.PublicKey, "Harvesting", "")
				if err == nil {
					indices <- idx
				}
			}()
		}
		wg.Wait()
		close(indices)

		seen := make(map[int64]bool)
		for idx := range indices {
			s.False(seen[idx], "index %d assigned twice", idx)
			seen[idx] = true
		}
		stages, err := s.service.ListStages(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Len(stages, len(seen))
		for i, st := range stages {
			s.Equal(int64(i), st.SequenceIndex)
		}
	})
}

func (s *ServiceSuite) TestAttachments() {
	s.Run("stores the attachment and records its reference", func() {
		b := s.newBatch()
		payload := []byte("moisture: 11.2%")
		idx, err := s.service.AppendStageWithAttachment(s.ctx, b.ID, s.grower.PublicKey, "Drying", payload)
		s.Require().NoError(err)

		stages, err := s.service.ListStages(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Require().Len(stages, 1)
		s.Equal(idx, stages[0].SequenceIndex)
		s.False(stages[0].ContentRef.IsNil())

		got, err := s.service.GetAttachment(s.ctx, stages[0].ContentRef)
		s.Require().NoError(err)
		s.Equal(payload, got)
	})

	s.Run("rejects empty attachments", func() {
		b := s.newBatch()
		_, err := s.service.AppendStageWithAttachment(s.ctx, b.ID, s.grower.PublicKey, "Drying", nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown reference is not found", func() {
		_, err := s.service.GetAttachment(s.ctx, "deadbeef")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestFinalize() {
	s.Run("brand owner freezes the batch", func() {
		b := s.newBatch()
		s.Require().NoError(s.service.Finalize(s.ctx, b.ID, s.owner.PublicKey))

		view, err := s.service.GetBatch(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, view.Batch.Status)
	})

	s.Run("is idempotent", func() {
		b := s.newBatch()
		s.Require().NoError(s.service.Finalize(s.ctx, b.ID, s.owner.PublicKey))
		s.Require().NoError(s.service.Finalize(s.ctx, b.ID, s.owner.PublicKey))

		records := s.committer.RecordsFor(b.ID)
		finalized := 0
		for _, r := range records {
			if r.Type == ledger.RecordBatchFinalized {
				finalized++
			}
		}
		s.Equal(1, finalized)
	})

	s.Run("rejects callers other than the brand owner", func() {
		b := s.newBatch()
		err := s.service.Finalize(s.ctx, b.ID, s.grower.PublicKey)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("completed batches reject every mutation", func() {
		b := s.newBatch()
		s.Require().NoError(s.service.Finalize(s.ctx, b.ID, s.owner.PublicKey))

		_, err := s.service.AppendStage(s.ctx, b.ID, s.grower.PublicKey, "Harvesting", "")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		err = s.service.TransferCustody(s.ctx, b.ID, s.grower.PublicKey, s.processor.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		err = s.service.AddParticipants(s.ctx, b.ID, s.owner.PublicKey, []domain.PartnerID{s.outsider.ID})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

		err = s.service.RemoveParticipant(s.ctx, b.ID, s.owner.PublicKey, s.processor.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("completed batches stay readable", func() {
		b := s.newBatch()
		_, err := s.service.AppendStage(s.ctx, b.ID, s.grower.PublicKey, "Harvesting", "")
		s.Require().NoError(err)
		s.Require().NoError(s.service.Finalize(s.ctx, b.ID, s.owner.PublicKey))

		view, err := s.service.GetBatch(s.ctx, b.ID)
		s.Require().NoError(err)
		s.Len(view.Stages, 1)
	})
}

func (s *ServiceSuite) TestListViews() {
	s.Run("held and owned views track custody", func() {
		b := s.newBatch()
		held, err := s.service.ListBatchesHeldBy(s.ctx, s.grower.PublicKey)
		s.Require().NoError(err)
		s.Require().Len(held, 1)
		s.Equal(b.ID, held[0].Batch.ID)

		owned, err := s.service.ListBatchesOwnedBy(s.ctx, s.owner.PublicKey)
		s.Require().NoError(err)
		s.Len(owned, 1)

		s.Require().NoError(s.service.TransferCustody(s.ctx, b.ID, s.grower.PublicKey, s.processor.ID))
		held, err = s.service.ListBatchesHeldBy(s.ctx, s.grower.PublicKey)
		s.Require().NoError(err)
		s.Empty(held)
	})

	s.Run("actor history spans batches", func() {
		b1 := s.newBatch()
		b2 := s.newBatch()
		_, err := s.service.AppendStage(s.ctx, b1.ID, s.grower.PublicKey, "Harvesting", "")
		s.Require().NoError(err)
		_, err = s.service.AppendStage(s.ctx, b2.ID, s.grower.PublicKey, "Drying", "")
		s.Require().NoError(err)

		history, err := s.service.ListStagesByActor(s.ctx, s.grower.PublicKey)
		s.Require().NoError(err)
		s.Len(history, 2)
	})
}

// TestLedgerFailureLeavesStateUnchanged verifies that when the durable
// ledger is unreachable, mutations fail with a retryable error and the core
// state is untouched.
func TestLedgerFailureLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()
	partners := partner.NewInMemoryStore()
	directory := partner.NewDirectory(partners)

	healthy := ledger.NewInMemoryCommitter()
	svc := service.New(st, directory, healthy)

	owner, err := directory.Register(ctx, "owner-key", "Owner", domain.RoleDistributor, "")
	if err != nil {
		t.Fatalf("register owner: %v", err)
	}
	grower, err := directory.Register(ctx, "grower-key", "Grower", domain.RoleProducer, "")
	if err != nil {
		t.Fatalf("register grower: %v", err)
	}
	b, err := svc.CreateBatch(ctx, owner.PublicKey, "Finca", grower.PublicKey, []domain.PartnerID{grower.ID})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}

	// Same store, unreachable ledger.
	broken := service.New(st, directory, &failingCommitter{})

	_, appendErr := broken.AppendStage(ctx, b.ID, grower.PublicKey, "Harvesting", "")
	if !dErrors.HasCode(appendErr, dErrors.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", appendErr)
	}
	if !dErrors.Retryable(appendErr) {
		t.Fatalf("unavailable should be retryable")
	}
	if err := broken.Finalize(ctx, b.ID, owner.PublicKey); !dErrors.HasCode(err, dErrors.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}

	view, err := svc.GetBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if view.Batch.Status != models.StatusActive {
		t.Fatalf("batch status changed to %s", view.Batch.Status)
	}
	if len(view.Stages) != 0 {
		t.Fatalf("stage count changed to %d", len(view.Stages))
	}
	if view.Batch.NextStageIndex != 0 {
		t.Fatalf("stage counter changed to %d", view.Batch.NextStageIndex)
	}
}

// TestClockInjection pins creation timestamps through the clock option.
func TestClockInjection(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()
	partners := partner.NewInMemoryStore()
	directory := partner.NewDirectory(partners)
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	svc := service.New(st, directory, ledger.NewInMemoryCommitter(),
		service.WithClock(func() time.Time { return fixed }),
	)

	owner, err := directory.Register(ctx, "owner-key", "Owner", domain.RoleDistributor, "")
	if err != nil {
		t.Fatalf("register owner: %v", err)
	}
	b, err := svc.CreateBatch(ctx, owner.PublicKey, "Finca", owner.PublicKey, []domain.PartnerID{owner.ID})
	if err != nil {
		t.Fatalf("create batch: %v", err)
	}
	if !b.CreatedAt.Equal(fixed) {
		t.Fatalf("created at %v, want %v", b.CreatedAt, fixed)
	}
	if b.HumanReadableID[:12] != "LOT-20260314" {
		t.Fatalf("human readable id %q does not carry the creation date", b.HumanReadableID)
	}
}
