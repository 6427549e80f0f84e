package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"validation", Validation("bad"), KindValidation},
		{"auth", Auth("nope"), KindAuth},
		{"not found", NotFound("missing"), KindNotFound},
		{"conflict", Conflict("taken"), KindConflict},
		{"upstream", Upstream("down", errors.New("timeout")), KindUpstream},
		{"wrapped", fmt.Errorf("request booking: %w", Conflict("taken")), KindConflict},
		{"plain", errors.New("boom"), KindInternal},
		{"nil", nil, KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Space not found", Message(NotFound("Space not found"), "x"))
	assert.Equal(t, "internal server error", Message(errors.New("db locked"), "internal server error"))
}

func TestUpstreamUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Upstream("payment provider unavailable", cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindUpstream))
	assert.Contains(t, err.Error(), "connection refused")
}
