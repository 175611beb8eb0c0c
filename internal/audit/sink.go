package audit

import "time"

// Record is the audit entry emitted for every chat relay, successful or not.
// It carries which credential tier served the request but never the
// credential itself.
type Record struct {
	Timestamp        time.Time `json:"timestamp"`
	ChatID           string    `json:"chat_id,omitempty"`
	UserID           string    `json:"user_id"`
	SessionID        string    `json:"session_id"`
	CredentialSource string    `json:"credential_source,omitempty"`
	Model            string    `json:"model"`
	UpstreamMs       int64     `json:"upstream_ms"`
	Error            string    `json:"error,omitempty"`
}

// Sink receives audit records from the chat relay path.
type Sink interface {
	Enqueue(rec *Record) error
}

// NoopSink discards audit records. Used when the S3 sink is disabled.
type NoopSink struct{}

func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (s *NoopSink) Enqueue(rec *Record) error {
	return nil
}
