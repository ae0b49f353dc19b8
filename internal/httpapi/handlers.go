package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"edu-crm/internal/auth"
	"edu-crm/internal/contacts"
	"edu-crm/internal/ledger"
	"edu-crm/internal/metrics"
	"edu-crm/internal/rbac"
	"edu-crm/internal/telephony"
	"edu-crm/pkg/logger"

	"github.com/gin-gonic/gin"
)

type CallLedger interface {
	ledger.Subscriber
	Get(ctx context.Context, callSid string) (ledger.CallRecord, error)
}

type SalespersonLookup interface {
	Salesperson(ctx context.Context, id string) (contacts.Salesperson, bool, error)
}

type VoiceTokenIssuer interface {
	Issue(identity string, now time.Time) (string, time.Time, error)
}

// Check is one readiness dependency.
type Check func(ctx context.Context) error

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Ledger       CallLedger
	Salespersons SalespersonLookup
	VoiceTokens  VoiceTokenIssuer
	Metrics      *metrics.Metrics
	Ready        map[string]Check
	Now          func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// Me echoes the caller identity.
func (h Handlers) Me(c *gin.Context) {
	id, err := auth.CurrentIdentity(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "role": id.Role, "prospect_access": id.ProspectAccess})
}

// GetCall returns the ledger record of a call.
func (h Handlers) GetCall(c *gin.Context) {
	sid := c.Param("call_sid")
	if sid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_sid required"})
		return
	}
	rec, err := h.Ledger.Get(c.Request.Context(), sid)
	if errors.Is(err, ledger.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("ledger read failed", "call_sid", sid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ledger unavailable"})
		return
	}
	if !canSee(c, rec) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// canSee applies call read access to the request identity.
func canSee(c *gin.Context, rec ledger.CallRecord) bool {
	id, err := auth.CurrentIdentity(c.Request.Context())
	if err != nil {
		return false
	}
	return rbac.CanAccessCall(id, rec.UserID, rec.ProspectID)
}

// VoiceToken mints a softphone access token for the calling salesperson. The
// token identity is the one inbound calls are bridged to.
func (h Handlers) VoiceToken(c *gin.Context) {
	if h.VoiceTokens == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "voice tokens not configured"})
		return
	}
	uid, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}

	identity := uid
	if h.Salespersons != nil {
		sp, ok, err := h.Salespersons.Salesperson(c.Request.Context(), uid)
		if err != nil {
			logger.FromGin(c).Error("salesperson lookup failed", "user_id", uid, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "no phone number assigned"})
			return
		}
		identity = sp.ClientIdentity()
	}

	tok, exp, err := h.VoiceTokens.Issue(identity, h.now())
	if errors.Is(err, telephony.ErrTokenNotConfigured) {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "voice tokens not configured"})
		return
	}
	if err != nil {
		logger.FromGin(c).Error("voice token issuance failed", "user_id", uid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tok, "identity": identity, "expires_at": exp.UTC()})
}

func (h Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz runs every readiness check and reports each result.
func (h Handlers) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for name, check := range h.Ready {
		if err := check(ctx); err != nil {
			logger.FromGin(c).Warn("readiness check failed", "check", name, "err", err)
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	c.JSON(status, gin.H{"ready": status == http.StatusOK, "checks": results})
}
