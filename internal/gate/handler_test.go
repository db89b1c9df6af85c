package gate

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linelogic/fraudgate/pkg/config"
	"github.com/linelogic/fraudgate/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestRouter(store *mockStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	handler := NewHandler(newTestService(store))
	adminCfg := &config.AdminConfig{Emails: []string{"ops@linelogic.io"}}

	router := gin.New()
	api := router.Group("/api/v1")
	api.POST("/signup/evaluate", handler.EvaluateSignup)
	api.POST("/signup/outcome", handler.SignupOutcome)

	admin := api.Group("/admin", middleware.AdminOnly(adminCfg))
	admin.GET("/bans", handler.ListBans)
	admin.POST("/bans", handler.CreateBan)
	admin.DELETE("/bans/:ip", handler.DeleteBan)
	admin.GET("/stats", handler.Stats)

	return router
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestEvaluateSignupRejectsInvalidBody(t *testing.T) {
	store := new(mockStore)
	router := newTestRouter(store)

	w := postJSON(t, router, "/api/v1/signup/evaluate", gin.H{
		"email": "not-an-email",
		"name":  "Jane Doe",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp, "fields")
}

func TestEvaluateSignupThrottledSourceGets429(t *testing.T) {
	store := new(mockStore)
	router := newTestRouter(store)

	store.On("CountSignupAttempts", mock.Anything, "1.2.3.4", mock.Anything).
		Return(5, nil).Once()

	w := postJSON(t, router, "/api/v1/signup/evaluate", gin.H{
		"email":      "user@example.com",
		"name":       "Jane Doe",
		"ip_address": "1.2.3.4",
	}, nil)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	store.AssertNotCalled(t, "CalculateFraudScore", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestEvaluateSignupAllowedDecision(t *testing.T) {
	store := new(mockStore)
	router := newTestRouter(store)

	store.On("CountSignupAttempts", mock.Anything, "1.2.3.4", mock.Anything).Return(0, nil).Once()
	store.On("NormalizeEmail", mock.Anything, "user@example.com").Return("user@example.com", nil).Once()
	store.On("IsIPBanned", mock.Anything, "1.2.3.4").Return(false, nil).Once()
	store.On("CalculateFraudScore", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(30, nil).Once()
	store.On("LogSignupAttempt", mock.Anything, mock.Anything).Return(nil).Once()

	w := postJSON(t, router, "/api/v1/signup/evaluate", gin.H{
		"email":      "user@example.com",
		"name":       "Jane Doe",
		"ip_address": "1.2.3.4",
		"user_agent": "test-agent",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var result Evaluation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.Allowed)
	assert.Equal(t, 30, result.Score)
	assert.Equal(t, ActionAllowed, result.ActionTaken)
	store.AssertExpectations(t)
}

func TestEvaluateSignupBannedDecision(t *testing.T) {
	store := new(mockStore)
	router := newTestRouter(store)

	store.On("CountSignupAttempts", mock.Anything, "5.6.7.8", mock.Anything).Return(1, nil).Once()
	store.On("NormalizeEmail", mock.Anything, mock.Anything).Return("user@example.com", nil).Once()
	store.On("IsIPBanned", mock.Anything, "5.6.7.8").Return(true, nil).Once()
	store.On("LogFraudAttempt", mock.Anything, mock.Anything).Return(nil).Once()
	store.On("LogSignupAttempt", mock.Anything, mock.Anything).Return(nil).Once()

	w := postJSON(t, router, "/api/v1/signup/evaluate", gin.H{
		"email":      "user@example.com",
		"name":       "Jane Doe",
		"ip_address": "5.6.7.8",
	}, nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var result Evaluation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.Allowed)
	assert.True(t, result.Banned)
	assert.Equal(t, BannedIPScore, result.Score)
	assert.Equal(t, ReasonIPBanned, result.Reason)
	store.AssertExpectations(t)
}

func TestSignupOutcomeRecords(t *testing.T) {
	store := new(mockStore)
	router := newTestRouter(store)

	store.On("NormalizeEmail", mock.Anything, "user@example.com").Return("user@example.com", nil).Once()
	store.On("LogSignupAttempt", mock.Anything, mock.MatchedBy(func(a *SignupAttempt) bool {
		return a.IPAddress == "1.2.3.4" && a.Succeeded
	})).Return(nil).Once()

	w := postJSON(t, router, "/api/v1/signup/outcome", gin.H{
		"email":      "user@example.com",
		"ip_address": "1.2.3.4",
		"succeeded":  true,
	}, nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	store.AssertExpectations(t)
}

func TestAdminEndpointsRequireAllowListedOperator(t *testing.T) {
	store := new(mockStore)
	router := newTestRouter(store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bans", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/bans", nil)
	req.Header.Set(middleware.AdminHeader, "intruder@example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminListBans(t *testing.T) {
	store := new(mockStore)
	router := newTestRouter(store)

	bans := []*BannedIP{{IPAddress: "5.6.7.8", Reason: "abuse", BanType: BanTypeManual}}
	store.On("ListBans", mock.Anything, 20, 0).Return(bans, int64(1), nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bans", nil)
	req.Header.Set(middleware.AdminHeader, "ops@linelogic.io")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Bans  []*BannedIP `json:"bans"`
		Total int64       `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Bans, 1)
	assert.Equal(t, int64(1), resp.Total)
	store.AssertExpectations(t)
}

func TestAdminCreateBanPassesOperatorIdentity(t *testing.T) {
	store := new(mockStore)
	router := newTestRouter(store)

	store.On("BanIPAddress", mock.Anything, "5.6.7.8", "spam wave", BanTypeManual, "ops@linelogic.io", mock.MatchedBy(func(expiresAt *time.Time) bool {
		return expiresAt != nil && time.Until(*expiresAt) > 23*time.Hour
	})).Return(nil).Once()

	w := postJSON(t, router, "/api/v1/admin/bans", gin.H{
		"ip_address":       "5.6.7.8",
		"reason":           "spam wave",
		"expires_in_hours": 24,
	}, map[string]string{middleware.AdminHeader: "ops@linelogic.io"})

	assert.Equal(t, http.StatusCreated, w.Code)
	store.AssertExpectations(t)
}

func TestAdminDeleteBan(t *testing.T) {
	store := new(mockStore)
	router := newTestRouter(store)

	store.On("UnbanIPAddress", mock.Anything, "5.6.7.8").Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/bans/5.6.7.8", nil)
	req.Header.Set(middleware.AdminHeader, "ops@linelogic.io")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}

func TestAdminStatsDefaultsWindow(t *testing.T) {
	store := new(mockStore)
	router := newTestRouter(store)

	stats := &FraudStats{TotalAttempts: 7, ActiveBans: 2}
	store.On("GetFraudStats", mock.Anything, mock.MatchedBy(func(since time.Time) bool {
		return time.Since(since) > 23*time.Hour && time.Since(since) < 25*time.Hour
	})).Return(stats, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/stats", nil)
	req.Header.Set(middleware.AdminHeader, "ops@linelogic.io")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}
