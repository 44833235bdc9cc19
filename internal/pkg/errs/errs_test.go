package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorFormatsTemplate(t *testing.T) {
	err := NewError(ErrUnknownServer, "srv-1")

	assert.Equal(t, ErrUnknownServer, err.Code)
	assert.Equal(t, "Server srv-1 is not available.", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.Equal(t, KindValidation, err.Kind())
}

func TestNewErrorUnknownCodeFallsBack(t *testing.T) {
	err := NewError(999999)

	assert.Equal(t, ErrUnknown, err.Code)
	assert.Equal(t, KindInternal, err.Kind())
}

func TestFromResponseClassifiesStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		kind    Kind
		code    int
		message string
	}{
		{"unauthorized", http.StatusUnauthorized, `{"detail":"Invalid token"}`, KindAuth, ErrUnauthorized, "Invalid token"},
		{"forbidden", http.StatusForbidden, `{"detail":"Access denied"}`, KindAuth, ErrUnauthorized, "Access denied"},
		{"not found", http.StatusNotFound, `{"detail":"Channel not found"}`, KindNetwork, ErrUnexpectedStatus, "Channel not found"},
		{"plain body", http.StatusInternalServerError, `oops`, KindNetwork, ErrUnexpectedStatus, "Server responded with status 500."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FromResponse(tt.status, []byte(tt.body))

			assert.Equal(t, tt.kind, err.Kind())
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, tt.body, err.Body)
			assert.Equal(t, tt.message, err.Message)
		})
	}
}

func TestKindHelpersFollowWrappedChain(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	wrapped := fmt.Errorf("list servers: %w", Wrap(ErrNetwork, cause))

	assert.True(t, IsNetwork(wrapped))
	assert.False(t, IsAuth(wrapped))
	assert.ErrorIs(t, wrapped, cause)

	customErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrNetwork, customErr.Code)

	assert.True(t, IsConnection(NewError(ErrReconnectExhausted, 3)))
	assert.True(t, HasCode(NewError(ErrEmptyContent), ErrEmptyContent))
	assert.False(t, IsValidation(nil))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}
