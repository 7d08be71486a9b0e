package id

import "context"

type contextKey string

const (
	deviceKey  contextKey = "architect_device_id"
	leadKey    contextKey = "architect_lead_id"
	sessionKey contextKey = "architect_session_id"
	logKey     contextKey = "architect_log_id"
)

// IDs captures the identifiers propagated across a funnel request.
type IDs struct {
	DeviceID  string
	LeadID    string
	SessionID string
	LogID     string
}

// WithDeviceID stores the browser device identifier on the context.
func WithDeviceID(ctx context.Context, deviceID string) context.Context {
	if deviceID == "" {
		return ctx
	}
	return context.WithValue(ctx, deviceKey, deviceID)
}

// WithLeadID stores the lead identifier on the context.
func WithLeadID(ctx context.Context, leadID string) context.Context {
	if leadID == "" {
		return ctx
	}
	return context.WithValue(ctx, leadKey, leadID)
}

// WithSessionID stores the authenticated session identifier on the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if sessionID == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionKey, sessionID)
}

// WithLogID stores the provided log identifier on the context.
func WithLogID(ctx context.Context, logID string) context.Context {
	if logID == "" {
		return ctx
	}
	return context.WithValue(ctx, logKey, logID)
}

// WithIDs stores any provided identifiers on the context.
func WithIDs(ctx context.Context, ids IDs) context.Context {
	ctx = WithDeviceID(ctx, ids.DeviceID)
	ctx = WithLeadID(ctx, ids.LeadID)
	ctx = WithSessionID(ctx, ids.SessionID)
	return WithLogID(ctx, ids.LogID)
}

// DeviceIDFromContext extracts the device identifier from context.
func DeviceIDFromContext(ctx context.Context) string {
	return stringValue(ctx, deviceKey)
}

// LeadIDFromContext extracts the lead identifier from context.
func LeadIDFromContext(ctx context.Context) string {
	return stringValue(ctx, leadKey)
}

// SessionIDFromContext extracts the session identifier from context.
func SessionIDFromContext(ctx context.Context) string {
	return stringValue(ctx, sessionKey)
}

// LogIDFromContext extracts the log identifier from context.
func LogIDFromContext(ctx context.Context) string {
	return stringValue(ctx, logKey)
}

// IDsFromContext collects all known identifiers from the context.
func IDsFromContext(ctx context.Context) IDs {
	return IDs{
		DeviceID:  DeviceIDFromContext(ctx),
		LeadID:    LeadIDFromContext(ctx),
		SessionID: SessionIDFromContext(ctx),
		LogID:     LogIDFromContext(ctx),
	}
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(key).(string); ok {
		return value
	}
	return ""
}
