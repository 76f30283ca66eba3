package apierror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errPlanMissing = Validation("Invalid plan")

func TestAsFindsWrappedError(t *testing.T) {
	err := fmt.Errorf("create subscription: %w", errPlanMissing)

	apiErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, KindValidation, apiErr.Kind)
	assert.Equal(t, "Invalid plan", apiErr.Message)
	assert.True(t, errors.Is(err, errPlanMissing))
}

func TestIsKind(t *testing.T) {
	assert.True(t, IsKind(Conflict("exists"), KindConflict))
	assert.False(t, IsKind(Conflict("exists"), KindNotFound))
	assert.False(t, IsKind(errors.New("plain"), KindNotFound))
}
