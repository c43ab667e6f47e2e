package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "custos/pkg/domain-errors"
)

func TestRequireActor(t *testing.T) {
	v := NewVerifier()

	t.Run("matching key passes", func(t *testing.T) {
		assert.NoError(t, v.RequireActor("holder-key", "holder-key", "current holder"))
	})

	t.Run("mismatch names the required role", func(t *testing.T) {
		err := v.RequireActor("holder-key", "other-key", "current holder")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Contains(t, err.Error(), "current holder")
		// The expected key never leaks into the message.
		assert.NotContains(t, err.Error(), "holder-key")
	})

	t.Run("malformed caller key is a validation error", func(t *testing.T) {
		err := v.RequireActor("holder-key", "", "current holder")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
