// callsight-ingest is the bulk call recording import service.
//
// Accepts import jobs over HTTP, discovers audio files at heterogeneous
// sources (direct links, HTML index pages, JSON listing APIs, drive
// folders), stores each recording, and hands it to transcription.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/callsight/ingest/internal/ingest"
	"github.com/callsight/ingest/internal/storage"
	"github.com/callsight/ingest/internal/store"
	"github.com/callsight/ingest/internal/transcribe"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	setupLogging()

	slog.Info("starting callsight-ingest", slog.String("version", version))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := store.Connect(ctx, os.Getenv("DATABASE_URL"))
	cancel()
	if err != nil {
		slog.Error("database connect failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	objStore := storage.New(
		envOr("STORAGE_URL", "http://localhost:54321"),
		os.Getenv("STORAGE_SERVICE_KEY"),
	)

	ingest.Init(configFromEnv())
	ingest.InitCache(os.Getenv("REDIS_URL"), 15*time.Minute, 10000, 5*time.Minute)

	importer := ingest.New(db, objStore, transcriptionDispatcher(db))

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			http.Error(w, "db unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, ingest.FormatMetrics())
	})

	mux.HandleFunc("POST /import", func(w http.ResponseWriter, r *http.Request) {
		handleImport(w, r, db, importer)
	})

	mux.HandleFunc("GET /jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		job, err := db.GetImportJob(r.Context(), r.PathValue("id"))
		if err != nil {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, job)
	})

	addr := ":" + envOr("PORT", "8080")
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	slog.Info("listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server terminated", slog.Any("error", err))
		os.Exit(1)
	}
}

// handleImport creates the job row and kicks off processing in the
// background. Discovery-level failures land on the job's error message.
func handleImport(w http.ResponseWriter, r *http.Request, db *store.DB, importer *ingest.Importer) {
	var req ingest.ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SourceURL == "" || req.UserID == "" || req.BucketName == "" {
		http.Error(w, "source_url, user_id and bucket_name are required", http.StatusBadRequest)
		return
	}

	if req.JobID == "" {
		job := &store.ImportJob{
			SourceURL:    req.SourceURL,
			Bucket:       req.BucketName,
			CustomerName: req.CustomerName,
			UserID:       req.UserID,
			Status:       store.JobDiscovering,
		}
		if err := db.CreateImportJob(r.Context(), job); err != nil {
			slog.Error("create import job failed", slog.Any("error", err))
			http.Error(w, "could not create job", http.StatusInternalServerError)
			return
		}
		req.JobID = job.ID
	}

	go func() {
		if err := importer.ProcessImportJob(context.Background(), req); err != nil {
			slog.Error("import job failed",
				slog.String("job_id", req.JobID), slog.Any("error", err))
			if uerr := db.UpdateImportJobError(context.Background(), req.JobID, err.Error()); uerr != nil {
				slog.Warn("could not persist job error", slog.Any("error", uerr))
			}
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": req.JobID})
}

// transcriptionDispatcher runs provider transcription off the import flow
// and moves the file record to a terminal state.
func transcriptionDispatcher(db *store.DB) ingest.Dispatch {
	return func(req transcribe.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
		defer cancel()

		provider, err := transcribe.Select(req.Provider)
		if err != nil {
			slog.Error("no transcription provider", slog.Any("error", err))
			finishFileRecord(ctx, db, req.FileID, store.FileFailed, err.Error())
			return
		}

		log := slog.With(
			slog.String("provider", provider.Name()),
			slog.String("call_record_id", req.CallRecordID),
			slog.String("file", req.FileName))
		log.Info("transcription started")

		transcript, err := provider.Transcribe(ctx, req)
		if err != nil {
			log.Warn("transcription failed", slog.Any("error", err))
			finishFileRecord(ctx, db, req.FileID, store.FileFailed, err.Error())
			return
		}
		log.Info("transcription finished", slog.Int("chars", len(transcript)))
		finishFileRecord(ctx, db, req.FileID, store.FileCompleted, "")
	}
}

func finishFileRecord(ctx context.Context, db *store.DB, fileID, status, msg string) {
	if fileID == "" {
		return
	}
	if err := db.UpdateFileRecordStatus(ctx, fileID, status, msg); err != nil {
		slog.Warn("file record status update failed",
			slog.String("file_id", fileID), slog.Any("error", err))
	}
}

func configFromEnv() ingest.Config {
	c := ingest.DefaultConfig()
	if v := envInt64("MAX_FILE_BYTES"); v > 0 {
		c.MaxFileBytes = v
	}
	if v := envInt64("FETCH_TIMEOUT_SEC"); v > 0 {
		c.FetchTimeout = time.Duration(v) * time.Second
	}
	if v := envInt64("DRIVE_VALIDATE_CAP"); v > 0 {
		c.DriveValidateCap = int(v)
	}
	if v := envInt64("POLL_TIMEOUT_SEC"); v > 0 {
		c.PollTimeout = time.Duration(v) * time.Second
	}
	return c
}

func setupLogging() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write response failed", slog.Any("error", err))
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string) int64 {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
