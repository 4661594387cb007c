package billing

import (
	"go.uber.org/zap"
)

// NewAuditLogger builds the JSON logger that records every billing decision.
// Sampling is disabled so no anomaly is ever dropped.
func NewAuditLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger.Named("billing.audit")
}

func resultFields(res *Result) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", res.EventID),
		zap.String("event_type", res.EventType),
		zap.String("outcome", string(res.Outcome)),
	}
	if res.Transition != TransitionNone {
		fields = append(fields, zap.String("transition", string(res.Transition)))
	}
	if res.UserID != 0 {
		fields = append(fields, zap.Uint("user_id", res.UserID))
	}
	if res.EventRef != nil {
		fields = append(fields, zap.Uint("event_ref", *res.EventRef))
	}
	if res.PaymentID != 0 {
		fields = append(fields, zap.Uint("payment_id", res.PaymentID))
	}
	if res.Reason != nil {
		fields = append(fields, zap.String("reason", res.Reason.Error()))
	}
	return fields
}
