package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substrate-kb/substrate/internal/domain"
)

func TestSuccess(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, http.StatusOK, map[string]string{"hello": "world"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp SuccessResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "world", data["hello"])
}

func TestError(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadRequest, "bad input")

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "bad input", resp.Error)
}

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid argument", domain.ErrInvalidTopK, http.StatusBadRequest},
		{"not found", domain.ErrInstanceNotFound, http.StatusNotFound},
		{"timeout", domain.ErrDeadlineExceeded, http.StatusGatewayTimeout},
		{"unavailable", domain.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"internal", domain.ErrIndexCorrupted, http.StatusInternalServerError},
		{"unknown error type", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainErrorToHTTP(tt.err))
		})
	}
}

func TestHandleError_IncludesCode(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, domain.ErrProfileNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, domain.ErrCodeNotFound, resp.Code)
	assert.Equal(t, "user interest profile not found", resp.Error)
}

func TestHandleError_HidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, domain.ErrStoreUnavailable.WithCause(errors.New("dial tcp 10.0.0.5: connection refused")))

	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "embedding store unavailable", resp.Error)
	assert.NotContains(t, resp.Error, "10.0.0.5")
}
