package security

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType represents the type of security event
type EventType string

const (
	EventLoginFailed        EventType = "login_failed"
	EventLoginSuccess       EventType = "login_success"
	EventRateLimitTriggered EventType = "rate_limit_triggered"
	EventUnauthorizedAccess EventType = "unauthorized_access"
	EventWebhookRejected    EventType = "webhook_rejected"
	EventWebhookAccepted    EventType = "webhook_accepted"
	EventDegradedAdminGrant EventType = "degraded_admin_grant"
)

// Event is a security-relevant occurrence worth an audit trail entry.
type Event struct {
	Event        EventType              `json:"event"`
	SubjectType  string                 `json:"subject_type,omitempty"`  // "email", "ip", "user_id"
	SubjectValue string                 `json:"subject_value,omitempty"` // hashed for PII
	IP           string                 `json:"ip,omitempty"`
	UserAgent    string                 `json:"user_agent,omitempty"`
	RequestID    string                 `json:"request_id,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// AuditLogger writes structured security events with Zap, separate from
// the application log stream so it can be shipped to a different sink.
type AuditLogger struct {
	zapLogger   *zap.Logger
	serviceName string
	environment string
}

var defaultLogger *AuditLogger

// InitAuditLogger initializes the audit logger. Called once at startup.
func InitAuditLogger(serviceName, environment string) *AuditLogger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.LevelKey = "level"
	config.EncoderConfig.MessageKey = "message"
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	al := &AuditLogger{
		zapLogger:   logger,
		serviceName: serviceName,
		environment: environment,
	}
	defaultLogger = al
	return al
}

// NewAuditLogger wraps a caller-owned Zap logger. InitAuditLogger
// covers the standard stdout setup; this is for callers that configure
// their own sink.
func NewAuditLogger(zapLogger *zap.Logger, serviceName, environment string) *AuditLogger {
	return &AuditLogger{
		zapLogger:   zapLogger,
		serviceName: serviceName,
		environment: environment,
	}
}

// SetDefault installs l as the process-wide audit logger. A nil l
// silences the trail.
func SetDefault(l *AuditLogger) {
	defaultLogger = l
}

// Default returns the audit logger instance, or nil before init.
func Default() *AuditLogger {
	return defaultLogger
}

// Log emits the event. PII in SubjectValue should be pre-hashed by the
// caller via HashSubject.
func (l *AuditLogger) Log(event Event) {
	if l == nil || l.zapLogger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("service", l.serviceName),
		zap.String("env", l.environment),
		zap.String("event", string(event.Event)),
		zap.Time("at", time.Now().UTC()),
	}
	if event.SubjectType != "" {
		fields = append(fields, zap.String("subject_type", event.SubjectType))
		fields = append(fields, zap.String("subject_value", event.SubjectValue))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", event.UserAgent))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}
	l.zapLogger.Warn("security_event", fields...)
}

// HashSubject masks PII (emails, user ids) before it reaches the audit
// trail. SHA-256 hex, truncated; enough for correlation, useless for
// recovery.
func HashSubject(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}
