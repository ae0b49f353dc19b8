package calls

import (
	"context"

	"edu-crm/internal/audit"
)

// AuditAdapter bridges the Recorder's audit hook to the shared audit.Service.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) LogCallLogged(ctx context.Context, l CallLog) error {
	if a.Audit == nil {
		return nil
	}
	return a.Audit.LogCallLogged(ctx, l.CallSid, l.UserID, l.ProspectID, l.ActivityID)
}
