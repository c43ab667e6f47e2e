package actortoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

func TestIssueAndValidate(t *testing.T) {
	svc := NewService("test-signing-key", "custos-test")

	t.Run("round-trips the actor key", func(t *testing.T) {
		token, err := svc.Issue("grower-key", time.Hour)
		require.NoError(t, err)

		key, err := svc.Validate(token)
		require.NoError(t, err)
		assert.Equal(t, domain.ActorKey("grower-key"), key)
	})

	t.Run("refuses to issue for an empty key", func(t *testing.T) {
		_, err := svc.Issue("", time.Hour)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects expired tokens", func(t *testing.T) {
		token, err := svc.Issue("grower-key", -time.Minute)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "expired")
	})

	t.Run("rejects tokens signed with another key", func(t *testing.T) {
		other := NewService("different-signing-key", "custos-test")
		token, err := other.Issue("grower-key", time.Hour)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("rejects garbage", func(t *testing.T) {
		_, err := svc.Validate("not.a.jwt")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
