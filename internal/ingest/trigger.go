package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/callsight/ingest/internal/store"
	"github.com/callsight/ingest/internal/transcribe"
)

// TriggerInput identifies one stored recording to transcribe.
type TriggerInput struct {
	CallRecordID string
	StoragePath  string
	Bucket       string
	FileName     string
	UserID       string
	CustomerName string
	Provider     string
	FileID       string // file record to poll; empty disables polling
}

// triggerTranscription signs an access URL, records the request, hands the
// work to the background dispatcher, then waits for the file record to reach
// a terminal state. Everything in here is best-effort relative to the import
// job: no failure propagates to the caller.
func (imp *Importer) triggerTranscription(ctx context.Context, in TriggerInput) {
	metrics.TriggerDispatches.Add(1)
	log := slog.With(slog.String("call_record_id", in.CallRecordID), slog.String("file", in.FileName))

	var signedURL string
	if imp.storage != nil {
		u, err := imp.storage.Sign(ctx, in.Bucket, in.StoragePath, cfg.SignTTL)
		if err != nil {
			// transcription can still proceed against the raw storage path
			log.Warn("signing storage URL failed", slog.Any("error", err))
		} else {
			signedURL = u
		}
	}

	bestEffort("transcription queue entry",
		imp.store.EnqueueTranscription(ctx, in.CallRecordID, store.FilePending))

	if imp.dispatch != nil {
		req := transcribe.Request{
			CallRecordID: in.CallRecordID,
			FileID:       in.FileID,
			AudioURL:     signedURL,
			StoragePath:  in.StoragePath,
			Bucket:       in.Bucket,
			FileName:     in.FileName,
			UserID:       in.UserID,
			CustomerName: in.CustomerName,
			Provider:     in.Provider,
		}
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("transcription dispatch panicked", slog.Any("panic", r))
				}
			}()
			imp.dispatch(req)
		}()
	}

	if in.FileID == "" {
		// nothing to poll; give the dispatcher a head start and move on
		time.Sleep(cfg.TriggerDelay)
		return
	}
	status := imp.waitForTranscription(ctx, in.FileID)
	log.Info("transcription wait finished", slog.String("status", status))
}

// waitForTranscription polls the file record on a fixed interval until it
// reaches a terminal state or the hard timeout elapses. Poll-query errors
// are logged and the loop continues.
func (imp *Importer) waitForTranscription(ctx context.Context, fileID string) string {
	iterations := int(cfg.PollTimeout / cfg.PollInterval)
	last := ""

	for i := 0; i < iterations; i++ {
		select {
		case <-ctx.Done():
			return last
		case <-time.After(cfg.PollInterval):
		}

		status, err := imp.store.FileRecordStatus(ctx, fileID)
		if err != nil {
			slog.Warn("transcription status poll failed",
				slog.String("file_id", fileID), slog.Any("error", err))
			continue
		}
		last = status
		if status == store.FileCompleted || status == store.FileFailed {
			return status
		}
	}

	metrics.PollTimeouts.Add(1)
	slog.Warn("transcription poll timed out", slog.String("file_id", fileID), slog.String("last", last))
	return last
}
