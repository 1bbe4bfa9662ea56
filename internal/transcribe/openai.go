package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"
)

const openaiTranscribeURL = "https://api.openai.com/v1/audio/transcriptions"

func init() {
	Register(&openaiProvider{
		endpoint: openaiTranscribeURL,
		http:     &http.Client{Timeout: 10 * time.Minute},
	})
}

// openaiProvider transcribes via the Whisper API.
type openaiProvider struct {
	endpoint string
	http     *http.Client
}

func (p *openaiProvider) Name() string { return "openai" }

func (p *openaiProvider) Available() bool { return os.Getenv("OPENAI_API_KEY") != "" }

type openaiTranscription struct {
	Text string `json:"text"`
}

func (p *openaiProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return "", errors.New("OPENAI_API_KEY not set")
	}

	audio, err := fetchAudio(ctx, p.http, req)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", req.FileName)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	w.WriteField("model", "whisper-1")
	w.WriteField("response_format", "json")
	if err := w.Close(); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, &body)
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("whisper request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: status %d: %s", resp.StatusCode, truncate(data, 300))
	}

	var out openaiTranscription
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("whisper: decode: %w", err)
	}
	return out.Text, nil
}

// fetchAudio downloads the recording via its signed URL.
func fetchAudio(ctx context.Context, client *http.Client, req Request) ([]byte, error) {
	if req.AudioURL == "" {
		return nil, fmt.Errorf("no audio URL for %s (storage path %s)", req.FileName, req.StoragePath)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.AudioURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch audio: status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
