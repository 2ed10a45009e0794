package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create booking: %w", Conflict("time slot already booked"))

	assert.True(t, Is(err, KindConflict))
	assert.False(t, Is(err, KindValidation))
	assert.False(t, Is(errors.New("plain"), KindConflict))
}

func TestAs_KeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := fmt.Errorf("get field: %w", Wrap(KindStorage, "storage unavailable", cause))

	appErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, KindStorage, appErr.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage: storage unavailable: connection reset", appErr.Error())
}
