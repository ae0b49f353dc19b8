package main

import (
	"edu-crm/internal/auth"
	"edu-crm/internal/calls"
	"edu-crm/internal/config"
	"edu-crm/internal/contacts"
	"edu-crm/internal/httpapi"
	"edu-crm/internal/ledger"
	"edu-crm/internal/metrics"
	"edu-crm/internal/rbac"
	"edu-crm/internal/routing"
	"edu-crm/internal/telephony"
	"edu-crm/internal/transcription"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// apiDeps are the collaborators main builds for the route groups.
type apiDeps struct {
	cfg        config.Config
	auth       *auth.Manager
	ledger     *ledger.RedisStore
	resolver   *contacts.Resolver
	router     *routing.Router
	recorder   *calls.Recorder
	dispatcher *transcription.Dispatcher
	metrics    *metrics.Metrics
	ready      map[string]httpapi.Check
}

func (d apiDeps) handlers() httpapi.Handlers {
	tw := d.cfg.Twilio
	return httpapi.Handlers{
		Ledger:       d.ledger,
		Salespersons: d.resolver,
		VoiceTokens: telephony.AccessTokenIssuer{
			AccountSID:    tw.AccountSID,
			APIKeySID:     tw.APIKeySID,
			APIKeySecret:  tw.APIKeySecret,
			TwiMLAppSID:   tw.TwiMLAppSID,
			TTL:           tw.VoiceTokenTTL,
			AllowIncoming: true,
		},
		Metrics: d.metrics,
		Ready:   d.ready,
	}
}

// registerPublicRoutes wires liveness, readiness and metrics.
func registerPublicRoutes(r *gin.Engine, d apiDeps) {
	h := d.handlers()
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// registerWebhookRoutes wires the Twilio voice, status and recording callbacks.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerWebhookRoutes(r *gin.Engine, d apiDeps) {
	wh := telephony.WebhookHandler{
		Router:       d.router,
		Ledger:       d.ledger,
		Recorder:     d.recorder,
		Recordings:   d.dispatcher,
		Salespersons: d.resolver,
		Callbacks:    telephony.Callbacks{BaseURL: d.cfg.App.PublicBaseURL},
		Metrics:      d.metrics,
	}

	g := r.Group("/webhooks/twilio")
	if d.cfg.Twilio.ValidateSignature {
		g.Use(telephony.SignatureMiddleware(d.cfg.Twilio.AuthToken, d.cfg.App.PublicBaseURL))
	}
	{
		g.POST("/voice", wh.HandleInboundCall)
		g.POST("/voice/outbound", wh.HandleOutboundVoice)
		g.POST("/call-status", wh.HandleCallStatus)
		g.POST("/recording-status", wh.HandleRecordingStatus)
	}
}

// registerProtectedRoutes wires the token-guarded API used by the softphone.
func registerProtectedRoutes(r *gin.Engine, d apiDeps) {
	h := d.handlers()

	v1 := r.Group("/v1")
	v1.Use(auth.RequireAccessToken(d.auth))
	v1.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleSalesperson))
	{
		v1.GET("/me", h.Me)
		v1.GET("/voice/token", h.VoiceToken)

		callsGroup := v1.Group("/calls")
		{
			callsGroup.GET("/:call_sid", h.GetCall)
			callsGroup.GET("/:call_sid/stream", h.StreamCall)
		}
	}
}
