package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"time"
)

const geminiTranscribeURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent"

func init() {
	Register(&geminiProvider{
		endpoint: geminiTranscribeURL,
		http:     &http.Client{Timeout: 10 * time.Minute},
	})
}

// geminiProvider transcribes by sending inline audio to the Gemini API.
type geminiProvider struct {
	endpoint string
	http     *http.Client
}

func (p *geminiProvider) Name() string { return "gemini" }

func (p *geminiProvider) Available() bool { return os.Getenv("GEMINI_API_KEY") != "" }

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *geminiProvider) Transcribe(ctx context.Context, req Request) (string, error) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		return "", errors.New("GEMINI_API_KEY not set")
	}

	audio, err := fetchAudio(ctx, p.http, req)
	if err != nil {
		return "", err
	}

	mimeType := mime.TypeByExtension(path.Ext(req.FileName))
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}

	payload := map[string]any{
		"contents": []map[string]any{{
			"parts": []map[string]any{
				{"text": "Transcribe this call recording verbatim. Return only the transcript text."},
				{"inline_data": map[string]string{
					"mime_type": mimeType,
					"data":      base64.StdEncoding.EncodeToString(audio),
				}},
			},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"?key="+key, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini: status %d: %s", resp.StatusCode, truncate(data, 300))
	}

	var out geminiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("gemini: decode: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: empty response")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
