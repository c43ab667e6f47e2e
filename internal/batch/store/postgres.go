package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"custos/internal/batch/models"
	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// Postgres persists the custody core in PostgreSQL. Pure I/O; all domain
// rules live in the models and the service. The version column carries the
// optimistic CAS, and multi-row units (stage append, membership changes) run
// in a transaction that includes the CAS bump.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) CreateBatch(ctx context.Context, b *models.Batch, participants []models.Participant) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO batches (id, human_readable_id, producer_name, brand_owner_key, current_holder_key, status, created_at, next_stage_index, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`,
			b.ID.String(), b.HumanReadableID, b.ProducerName, b.BrandOwnerKey.String(),
			b.CurrentHolderKey.String(), string(b.Status), b.CreatedAt, b.NextStageIndex, b.Version,
		)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		for _, p := range participants {
			if err := insertParticipant(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Postgres) FindBatch(ctx context.Context, id domain.BatchID) (*models.Batch, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, human_readable_id, producer_name, brand_owner_key, current_holder_key, status, created_at, next_stage_index, version
		FROM batches
		WHERE id = $1
	`, id.String())
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	return b, err
}

func (s *Postgres) UpdateBatch(ctx context.Context, b *models.Batch) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE batches
		SET current_holder_key = $1, status = $2, next_stage_index = $3, version = version + 1
		WHERE id = $4 AND version = $5
	`, b.CurrentHolderKey.String(), string(b.Status), b.NextStageIndex, b.ID.String(), b.Version)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if err := requireOneRow(ctx, s.db, res, b.ID); err != nil {
		return err
	}
	b.Version++
	return nil
}

func (s *Postgres) AppendStage(ctx context.Context, b *models.Batch, stage *models.Stage) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE batches
			SET next_stage_index = $1, version = version + 1
			WHERE id = $2 AND version = $3
		`, b.NextStageIndex, b.ID.String(), b.Version)
		if err != nil {
			return fmt.Errorf("advance stage counter: %w", err)
		}
		if err := requireOneRowTx(ctx, tx, res, b.ID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO stages (batch_id, sequence_index, actor_key, stage_name, content_ref, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, stage.BatchID.String(), stage.SequenceIndex, stage.ActorKey.String(), stage.StageName, stage.ContentRef.String(), stage.Timestamp)
		if err != nil {
			return fmt.Errorf("insert stage: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.Version++
	return nil
}

func (s *Postgres) AddParticipants(ctx context.Context, b *models.Batch, participants []models.Participant) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE batches SET version = version + 1 WHERE id = $1 AND version = $2
		`, b.ID.String(), b.Version)
		if err != nil {
			return fmt.Errorf("bump batch version: %w", err)
		}
		if err := requireOneRowTx(ctx, tx, res, b.ID); err != nil {
			return err
		}
		for _, p := range participants {
			if err := insertParticipant(ctx, tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.Version++
	return nil
}

func (s *Postgres) RemoveParticipant(ctx context.Context, b *models.Batch, partnerID domain.PartnerID) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE batches SET version = version + 1 WHERE id = $1 AND version = $2
		`, b.ID.String(), b.Version)
		if err != nil {
			return fmt.Errorf("bump batch version: %w", err)
		}
		if err := requireOneRowTx(ctx, tx, res, b.ID); err != nil {
			return err
		}
		del, err := tx.ExecContext(ctx, `
			DELETE FROM participants WHERE batch_id = $1 AND partner_id = $2
		`, b.ID.String(), partnerID.String())
		if err != nil {
			return fmt.Errorf("delete participant: %w", err)
		}
		n, err := del.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete participant: %w", err)
		}
		if n == 0 {
			return sentinel.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.Version++
	return nil
}

func (s *Postgres) ListParticipants(ctx context.Context, batchID domain.BatchID) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, partner_id, added_at
		FROM participants
		WHERE batch_id = $1
		ORDER BY added_at ASC
	`, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	out := []models.Participant{}
	for rows.Next() {
		var p models.Participant
		var bid, pid string
		if err := rows.Scan(&bid, &pid, &p.AddedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		if p.BatchID, err = domain.ParseBatchID(bid); err != nil {
			return nil, err
		}
		if p.PartnerID, err = domain.ParsePartnerID(pid); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Postgres) ListStages(ctx context.Context, batchID domain.BatchID) ([]models.Stage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT batch_id, sequence_index, actor_key, stage_name, content_ref, recorded_at
		FROM stages
		WHERE batch_id = $1
		ORDER BY sequence_index ASC
	`, batchID.String())
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	out := []models.Stage{}
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *Postgres) ListStagesByActor(ctx context.Context, actorKey domain.ActorKey) ([]models.StageWithBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT st.batch_id, st.sequence_index, st.actor_key, st.stage_name, st.content_ref, st.recorded_at,
		       b.human_readable_id, b.producer_name, b.status
		FROM stages st
		JOIN batches b ON b.id = st.batch_id
		WHERE st.actor_key = $1
		ORDER BY st.recorded_at ASC
	`, actorKey.String())
	if err != nil {
		return nil, fmt.Errorf("list stages by actor: %w", err)
	}
	defer rows.Close()

	out := []models.StageWithBatch{}
	for rows.Next() {
		var swb models.StageWithBatch
		var bid, actor, ref, status string
		if err := rows.Scan(&bid, &swb.Stage.SequenceIndex, &actor, &swb.Stage.StageName, &ref, &swb.Stage.Timestamp,
			&swb.HumanReadableID, &swb.ProducerName, &status); err != nil {
			return nil, fmt.Errorf("scan stage history: %w", err)
		}
		if swb.Stage.BatchID, err = domain.ParseBatchID(bid); err != nil {
			return nil, err
		}
		swb.Stage.ActorKey = domain.ActorKey(actor)
		swb.Stage.ContentRef = domain.ContentRef(ref)
		swb.BatchStatus = models.Status(status)
		out = append(out, swb)
	}
	return out, rows.Err()
}

func (s *Postgres) ListByHolder(ctx context.Context, holderKey domain.ActorKey) ([]*models.Batch, error) {
	return s.listWhere(ctx, "current_holder_key", holderKey)
}

func (s *Postgres) ListByOwner(ctx context.Context, ownerKey domain.ActorKey) ([]*models.Batch, error) {
	return s.listWhere(ctx, "brand_owner_key", ownerKey)
}

func (s *Postgres) listWhere(ctx context.Context, column string, key domain.ActorKey) ([]*models.Batch, error) {
	query := fmt.Sprintf(`
		SELECT id, human_readable_id, producer_name, brand_owner_key, current_holder_key, status, created_at, next_stage_index, version
		FROM batches
		WHERE %s = $1
		ORDER BY created_at ASC
	`, column)
	rows, err := s.db.QueryContext(ctx, query, key.String())
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	out := []*models.Batch{}
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Postgres) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func insertParticipant(ctx context.Context, tx *sql.Tx, p models.Participant) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO participants (batch_id, partner_id, added_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (batch_id, partner_id) DO NOTHING
	`, p.BatchID.String(), p.PartnerID.String(), p.AddedAt)
	if err != nil {
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

type batchQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// requireOneRow distinguishes a lost CAS from a missing batch: zero rows
// affected means either the version moved or the id never existed.
func requireOneRow(ctx context.Context, q batchQuerier, res sql.Result, id domain.BatchID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM batches WHERE id = $1)`, id.String()).Scan(&exists); err != nil {
		return fmt.Errorf("check batch exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func requireOneRowTx(ctx context.Context, tx *sql.Tx, res sql.Result, id domain.BatchID) error {
	return requireOneRow(ctx, tx, res, id)
}

func scanBatch(row rowScanner) (*models.Batch, error) {
	var b models.Batch
	var id, owner, holder, status string
	if err := row.Scan(&id, &b.HumanReadableID, &b.ProducerName, &owner, &holder, &status, &b.CreatedAt, &b.NextStageIndex, &b.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	parsed, err := domain.ParseBatchID(id)
	if err != nil {
		return nil, fmt.Errorf("scan batch id: %w", err)
	}
	b.ID = parsed
	b.BrandOwnerKey = domain.ActorKey(owner)
	b.CurrentHolderKey = domain.ActorKey(holder)
	b.Status = models.Status(status)
	return &b, nil
}

func scanStage(row rowScanner) (*models.Stage, error) {
	var st models.Stage
	var bid, actor, ref string
	if err := row.Scan(&bid, &st.SequenceIndex, &actor, &st.StageName, &ref, &st.Timestamp); err != nil {
		return nil, fmt.Errorf("scan stage: %w", err)
	}
	parsed, err := domain.ParseBatchID(bid)
	if err != nil {
		return nil, fmt.Errorf("scan stage batch id: %w", err)
	}
	st.BatchID = parsed
	st.ActorKey = domain.ActorKey(actor)
	st.ContentRef = domain.ContentRef(ref)
	return &st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
