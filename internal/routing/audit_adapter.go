package routing

import (
	"context"
	"encoding/json"

	"edu-crm/internal/audit"
)

// AuditAdapter bridges the Router's audit hook to the shared audit.Service.
//
// This keeps routing from depending on persistence.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogInboundRouted(ctx context.Context, callSid string, d Decision) error {
	if a.Audit == nil {
		return nil
	}
	meta, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return a.Audit.LogInboundRouted(ctx, callSid, d.SalespersonID, ClientIPFromContext(ctx), string(d.Action), string(meta))
}
