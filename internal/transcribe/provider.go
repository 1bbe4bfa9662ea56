// Package transcribe dispatches stored call audio to a speech-to-text
// provider. Providers register themselves at init; which one runs is
// resolved per request from API-key presence.
package transcribe

import "context"

// Request carries everything a provider needs to transcribe one recording.
type Request struct {
	CallRecordID string `json:"call_record_id"`
	FileID       string `json:"file_id,omitempty"`
	AudioURL     string `json:"audio_url,omitempty"` // signed URL; may be empty when signing failed
	StoragePath  string `json:"storage_path"`
	Bucket       string `json:"bucket"`
	FileName     string `json:"file_name"`
	UserID       string `json:"user_id"`
	CustomerName string `json:"customer_name"`
	Provider     string `json:"provider,omitempty"` // explicit provider override
}

// Provider is a speech-to-text backend.
type Provider interface {
	Name() string
	// Available reports whether the provider's credential is configured.
	Available() bool
	// Transcribe runs the request to completion and returns the transcript.
	Transcribe(ctx context.Context, req Request) (string, error)
}
