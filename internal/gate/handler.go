package gate

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linelogic/fraudgate/pkg/common"
	"github.com/linelogic/fraudgate/pkg/logger"
	"github.com/linelogic/fraudgate/pkg/middleware"
	"go.uber.org/zap"
)

// Handler exposes the gate over HTTP for the signup flow and the operator
// console.
type Handler struct {
	service *Service
}

// NewHandler creates a new gate handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type evaluateRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Name      string `json:"name" binding:"required,min=1,max=200"`
	IPAddress string `json:"ip_address" binding:"omitempty,ip"`
	UserAgent string `json:"user_agent"`
}

type outcomeRequest struct {
	Email     string `json:"email" binding:"required,email"`
	IPAddress string `json:"ip_address" binding:"required,ip"`
	UserAgent string `json:"user_agent"`
	Succeeded *bool  `json:"succeeded" binding:"required"`
}

type banRequest struct {
	IPAddress      string `json:"ip_address" binding:"required,ip"`
	Reason         string `json:"reason" binding:"required,min=3,max=500"`
	ExpiresInHours int    `json:"expires_in_hours" binding:"omitempty,gt=0"`
}

// EvaluateSignup runs the rate-limit window and the decision pipeline for
// one signup attempt. The caller is the external signup handler, so the
// decision is always a 200 payload; only a throttled source gets a 429.
func (h *Handler) EvaluateSignup(c *gin.Context) {
	var req evaluateRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	if req.IPAddress == "" {
		req.IPAddress = middleware.GetClientIP(c)
	}
	if req.UserAgent == "" {
		req.UserAgent = c.Request.UserAgent()
	}

	status := h.service.CheckSignupWindow(c.Request.Context(), req.IPAddress)
	if !status.Allowed {
		retryAfter := 0
		if status.ResetAt != nil {
			retryAfter = int(time.Until(*status.ResetAt) / time.Second)
			if retryAfter < 0 {
				retryAfter = 0
			}
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "Too many signup attempts. Please try again later.",
			"code":  "RATE_LIMITED",
		})
		return
	}

	result := h.service.Evaluate(c.Request.Context(), SignupRequest{
		Email:     req.Email,
		Name:      req.Name,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})

	c.JSON(http.StatusOK, result)
}

// SignupOutcome records the account-creation result reported by the external
// auth collaborator.
func (h *Handler) SignupOutcome(c *gin.Context) {
	var req outcomeRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	h.service.RecordOutcome(c.Request.Context(), req.Email, req.IPAddress, req.UserAgent, *req.Succeeded)
	c.JSON(http.StatusAccepted, gin.H{"recorded": true})
}

// ListBans returns active bans for the operator console.
func (h *Handler) ListBans(c *gin.Context) {
	limit, offset := pageParams(c)

	bans, total, err := h.service.ListBans(c.Request.Context(), limit, offset)
	if err != nil {
		logger.Error("list bans failed", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to list bans")
		return
	}

	c.JSON(http.StatusOK, gin.H{"bans": bans, "total": total})
}

// CreateBan creates a manual ban, optionally time-limited.
func (h *Handler) CreateBan(c *gin.Context) {
	var req banRequest
	if !middleware.ValidateAndBind(c, &req) {
		return
	}

	var expiresAt *time.Time
	if req.ExpiresInHours > 0 {
		t := time.Now().Add(time.Duration(req.ExpiresInHours) * time.Hour)
		expiresAt = &t
	}

	bannedBy := c.GetHeader(middleware.AdminHeader)
	if err := h.service.BanIP(c.Request.Context(), req.IPAddress, req.Reason, bannedBy, expiresAt); err != nil {
		logger.Error("manual ban failed",
			zap.String("ip", req.IPAddress),
			zap.Error(err),
		)
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to create ban")
		return
	}

	common.CreatedResponse(c, gin.H{"ip_address": req.IPAddress, "banned": true})
}

// DeleteBan removes a ban.
func (h *Handler) DeleteBan(c *gin.Context) {
	ip := c.Param("ip")
	if ip == "" {
		common.ErrorResponse(c, http.StatusBadRequest, "ip is required")
		return
	}

	if err := h.service.UnbanIP(c.Request.Context(), ip); err != nil {
		logger.Error("unban failed", zap.String("ip", ip), zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to remove ban")
		return
	}

	c.JSON(http.StatusOK, gin.H{"ip_address": ip, "banned": false})
}

// ListFraudAttempts returns recent audit records, optionally filtered by IP.
func (h *Handler) ListFraudAttempts(c *gin.Context) {
	limit, offset := pageParams(c)
	ip := c.Query("ip")

	records, total, err := h.service.ListFraudAttempts(c.Request.Context(), ip, limit, offset)
	if err != nil {
		logger.Error("list fraud attempts failed", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to list fraud attempts")
		return
	}

	c.JSON(http.StatusOK, gin.H{"attempts": records, "total": total})
}

// Stats returns aggregated audit activity over a trailing window of hours.
func (h *Handler) Stats(c *gin.Context) {
	hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}

	stats, err := h.service.Stats(c.Request.Context(), time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		logger.Error("stats query failed", zap.Error(err))
		common.ErrorResponse(c, http.StatusInternalServerError, "failed to load stats")
		return
	}

	common.SuccessResponse(c, stats)
}

func pageParams(c *gin.Context) (limit, offset int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}
