package common_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/billing-xendit/internal/common"
)

func TestWriteErrorUsesAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	cause := errors.New("no rows")
	common.WriteError(rec, common.NotFound("INVOICE_NOT_FOUND", "invoice not found", cause))

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":{"code":"INVOICE_NOT_FOUND","message":"invoice not found"}}`, rec.Body.String())
}

func TestWriteErrorHidesPlainErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	common.WriteError(rec, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection refused")
}

func TestAppErrorUnwraps(t *testing.T) {
	cause := errors.New("boom")
	err := common.Conflict("ALREADY_PAID", "invoice already paid", cause)
	require.ErrorIs(t, err, cause)
	require.True(t, common.IsAppError(err))
}

func TestClientIPUsesRemoteAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Forwarded-For", "203.0.113.7")
	require.Equal(t, "10.0.0.1", common.ClientIP(r))

	r.RemoteAddr = "10.0.0.2"
	require.Equal(t, "10.0.0.2", common.ClientIP(r))
}

func TestClientIPBehindRealIP(t *testing.T) {
	var got string
	h := middleware.RealIP(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = common.ClientIP(r)
	}))
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	r.Header.Set("X-Real-IP", "172.16.0.9")
	h.ServeHTTP(httptest.NewRecorder(), r)
	require.Equal(t, "172.16.0.9", got)
}

func TestDigest(t *testing.T) {
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", common.Digest(nil))
	require.Len(t, common.Digest([]byte(`{"external_id":"42"}`)), 64)
}
