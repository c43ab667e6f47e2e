package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

func TestParseBatchID(t *testing.T) {
	t.Run("round-trips a valid uuid", func(t *testing.T) {
		id := domain.NewBatchID()
		parsed, err := domain.ParseBatchID(id.String())
		require.NoError(t, err)
		assert.Equal(t, id, parsed)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		for _, raw := range []string{"", "not-a-uuid", uuid.Nil.String()} {
			_, err := domain.ParseBatchID(raw)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "input %q", raw)
		}
	})
}

func TestIDJSONEncoding(t *testing.T) {
	t.Run("batch ids encode as uuid strings", func(t *testing.T) {
		id := domain.NewBatchID()
		raw, err := json.Marshal(struct {
			ID domain.BatchID `json:"id"`
		}{ID: id})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(raw))

		var decoded struct {
			ID domain.BatchID `json:"id"`
		}
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, id, decoded.ID)
	})

	t.Run("partner ids encode as uuid strings", func(t *testing.T) {
		id := domain.NewPartnerID()
		raw, err := json.Marshal(struct {
			ID domain.PartnerID `json:"id"`
		}{ID: id})
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"`+id.String()+`"}`, string(raw))

		var decoded struct {
			ID domain.PartnerID `json:"id"`
		}
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, id, decoded.ID)
	})

	t.Run("rejects malformed id strings", func(t *testing.T) {
		var decoded struct {
			ID domain.BatchID `json:"id"`
		}
		assert.Error(t, json.Unmarshal([]byte(`{"id":"not-a-uuid"}`), &decoded))
	})
}

func TestParseActorKey(t *testing.T) {
	t.Run("accepts opaque keys", func(t *testing.T) {
		key, err := domain.ParseActorKey("age1qxyz...")
		require.NoError(t, err)
		assert.Equal(t, "age1qxyz...", key.String())
	})

	t.Run("rejects empty keys", func(t *testing.T) {
		_, err := domain.ParseActorKey("")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects oversized keys", func(t *testing.T) {
		long := make([]byte, 513)
		for i := range long {
			long[i] = 'a'
		}
		_, err := domain.ParseActorKey(string(long))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestRoles(t *testing.T) {
	t.Run("parses every member of the closed enumeration", func(t *testing.T) {
		for _, r := range domain.Roles() {
			parsed, err := domain.ParseRole(r.String())
			require.NoError(t, err)
			assert.Equal(t, r, parsed)
		}
	})

	t.Run("rejects unknown roles", func(t *testing.T) {
		_, err := domain.ParseRole("barista")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("only the sustainability auditor cannot hold custody", func(t *testing.T) {
		for _, r := range domain.Roles() {
			profile := r.Profile()
			if r == domain.RoleSustainability {
				assert.False(t, profile.CanHoldCustody)
			} else {
				assert.True(t, profile.CanHoldCustody, "role %s", r)
			}
			assert.NotEmpty(t, profile.TypicalStages, "role %s", r)
		}
	})
}

func TestDedupePartnerIDs(t *testing.T) {
	a, b := domain.NewPartnerID(), domain.NewPartnerID()

	t.Run("preserves first-seen order", func(t *testing.T) {
		got := domain.DedupePartnerIDs([]domain.PartnerID{a, b, a, b, a})
		assert.Equal(t, []domain.PartnerID{a, b}, got)
	})

	t.Run("drops nil ids", func(t *testing.T) {
		got := domain.DedupePartnerIDs([]domain.PartnerID{a, domain.PartnerID(uuid.Nil)})
		assert.Equal(t, []domain.PartnerID{a}, got)
	})

	t.Run("empty input stays empty", func(t *testing.T) {
		assert.Empty(t, domain.DedupePartnerIDs(nil))
	})
}
