package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeAlreadyMember, "custom message")
	assert.ErrorIs(t, err, ErrAlreadyMember)
	assert.NotErrorIs(t, err, ErrNotAMember)

	wrapped := fmt.Errorf("outer context: %w", err)
	assert.ErrorIs(t, wrapped, ErrAlreadyMember)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeNotPending, CodeOf(ErrNotPending))
	assert.Equal(t, CodeStoreUnavailable, CodeOf(StoreUnavailable(stderrors.New("dial tcp"))))
	assert.Equal(t, CodeUnknown, CodeOf(stderrors.New("plain error")))
	assert.Equal(t, CodeUnknown, CodeOf(nil))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := StoreUnavailable(cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "dial tcp")
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(StoreUnavailable(nil)))
	assert.True(t, IsTransient(ChannelInterrupted(nil)))
	assert.False(t, IsTransient(ErrNotAuthorized))
	assert.False(t, IsTransient(stderrors.New("plain error")))
}
