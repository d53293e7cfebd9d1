package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWireCodes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err        error
		wantCode   int
		wantStatus int
	}{
		{NewAlreadyLinkedError("linked"), 1000, http.StatusBadRequest},
		{NewAuthorizationRequiredError("no token", nil), 1010, http.StatusUnauthorized},
		{NewNotAuthorizedError("not yours"), 1011, http.StatusForbidden},
		{NewNotFoundError("gone"), 1020, http.StatusNotFound},
		{NewInternalError("boom", nil), 1030, http.StatusInternalServerError},
		{NewUpstreamError("upstream says no", nil), 1040, http.StatusBadGateway},
		{NewUpstreamContentTypeError("text/html"), 1041, http.StatusBadGateway},
		{NewUpstreamJSONError("not json", nil), 1042, http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.wantCode, Code(tt.err))
		assert.Equal(t, tt.wantStatus, HTTPStatus(tt.err))
	}
}

func TestUntypedErrorsReportAsInternal(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("some plain error")
	assert.Equal(t, 1030, Code(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "Internal server error", Message(err))
}

// Internal messages carry storage and upstream details that must never
// reach a client.
func TestInternalMessageIsMasked(t *testing.T) {
	t.Parallel()

	err := NewInternalError("failed to open /var/lib/orcidlink.db", fmt.Errorf("disk full"))
	assert.Equal(t, "Internal server error", Message(err))
	// The full detail stays available for logging.
	assert.Contains(t, err.Error(), "disk full")
}

func TestMessagePassesThroughForClientFacingKinds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "linking session not found", Message(NewNotFoundError("linking session not found")))
}

func TestWrappedErrorsMatchKind(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("handler: %w", NewNotFoundError("gone"))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsAlreadyLinked(err))
	assert.Equal(t, 1020, Code(err))
}

func TestWithData(t *testing.T) {
	t.Parallel()

	err := NewAlreadyLinkedError("linked").WithData(map[string]any{"username": "foo"})
	assert.Equal(t, map[string]any{"username": "foo"}, Data(err))
	assert.Nil(t, Data(NewNotFoundError("gone")))
}
