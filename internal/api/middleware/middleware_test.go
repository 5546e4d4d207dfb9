//nolint:noctx // Test file uses http.NewRequest for simplicity
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osu-guessr/guessr-stats/internal/metrics"
	"github.com/osu-guessr/guessr-stats/pkg/logger"
)

type staticValidator struct {
	valid string
	err   error
}

func (v staticValidator) Validate(_ context.Context, key string) (bool, error) {
	if v.err != nil {
		return false, v.err
	}
	return key == v.valid, nil
}

func setupRouter(validator KeyValidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()

	router := gin.New()
	router.Use(RequestID(), Logger(log), Recovery(log))
	router.GET("/open", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/panic", func(c *gin.Context) { panic("boom") })

	api := router.Group("/api/v1", APIKey(validator, log))
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })

	return router
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestAPIKey(t *testing.T) {
	router := setupRouter(staticValidator{valid: "secret"})

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{name: "valid key", key: "secret", status: http.StatusOK},
		{name: "missing key", key: "", status: http.StatusForbidden},
		{name: "wrong key", key: "guess", status: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, _ := http.NewRequest("GET", "/api/v1/ping", http.NoBody)
			if tt.key != "" {
				req.Header.Set(HeaderAPIKey, tt.key)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusForbidden {
				body := decode(t, w)
				assert.Equal(t, false, body["success"])
				assert.Equal(t, "Invalid API key", body["error"])
			}
		})
	}
}

func TestAPIKey_ValidatorError(t *testing.T) {
	router := setupRouter(staticValidator{err: errors.New("db down")})

	req, _ := http.NewRequest("GET", "/api/v1/ping", http.NoBody)
	req.Header.Set(HeaderAPIKey, "secret")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestAPIKey_RecordsRejections(t *testing.T) {
	metrics.APIKeyRejectionsTotal.Reset()
	router := setupRouter(staticValidator{valid: "secret"})

	req, _ := http.NewRequest("GET", "/api/v1/ping", http.NoBody)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.APIKeyRejectionsTotal.WithLabelValues("missing")))
}

func TestRequestID(t *testing.T) {
	router := setupRouter(staticValidator{})

	req, _ := http.NewRequest("GET", "/open", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	_, err := uuid.Parse(w.Header().Get(HeaderRequestID))
	assert.NoError(t, err, "a generated request id is a UUID")

	req, _ = http.NewRequest("GET", "/open", http.NoBody)
	req.Header.Set(HeaderRequestID, "client-supplied")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "client-supplied", w.Header().Get(HeaderRequestID))
}

func TestRecovery(t *testing.T) {
	router := setupRouter(staticValidator{})

	req, _ := http.NewRequest("GET", "/panic", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode(t, w)["error"])
}
