package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasknest/tasknest/pkg/apperr"
)

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		kind   apperr.Kind
		status int
	}{
		{apperr.KindUnauthenticated, http.StatusUnauthorized},
		{apperr.KindPermissionDenied, http.StatusForbidden},
		{apperr.KindInvalidArgument, http.StatusBadRequest},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindAlreadyExists, http.StatusConflict},
		{apperr.KindFailedPrecondition, http.StatusConflict},
		{apperr.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.status, StatusForKind(tt.kind))
		})
	}
}

func TestWriteAppErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, apperr.Internal(errors.New("pq: connection refused to 10.0.0.3"), "save authz"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal error", body["error"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestWriteAppErrorKinds(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAppError(rec, apperr.PermissionDenied("role org:assistant may not assign roles"))

	assert.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(apperr.KindPermissionDenied), body["kind"])
	assert.Contains(t, body["error"], "org:assistant")
}
