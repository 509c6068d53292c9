package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := NewInvalidBoundary("left %d must be < apex %d", 5, 5)
	assert.Equal(t, "INVALID_BOUNDARY: left 5 must be < apex 5", err.Error())

	wrapped := Wrap(ErrorTypeIO, "open plate", fmt.Errorf("no such file"))
	assert.Equal(t, "IO: open plate (caused by: no such file)", wrapped.Error())
}

func TestIsType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		typ  ErrorType
		want bool
	}{
		{"direct match", NewEmptyProfile("empty"), ErrorTypeEmptyProfile, true},
		{"other type", NewInvalidGeometry("zero length"), ErrorTypeEmptyProfile, false},
		{"wrapped by fmt", fmt.Errorf("lane 2: %w", NewInvalidParameters("window")), ErrorTypeInvalidParameters, true},
		{"plain error", stderrors.New("boom"), ErrorTypeIO, false},
		{"nil", nil, ErrorTypeIO, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsType(tt.err, tt.typ))
		})
	}
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeFitNonConvergence, TypeOf(NewFitNonConvergence("stalled")))
	assert.Equal(t, ErrorType(""), TypeOf(stderrors.New("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(ErrorTypeIO, "write csv", cause)
	assert.True(t, stderrors.Is(err, cause))
}

func TestWithDetail(t *testing.T) {
	err := NewInvalidBoundary("bad").WithDetail("peak", "3").WithDetail("left", "10")
	assert.Equal(t, map[string]string{"peak": "3", "left": "10"}, err.Details)
}
