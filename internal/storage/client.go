// Package storage talks to the object storage HTTP API
// (Supabase-compatible paths: /storage/v1/object/...).
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
)

// Client is an object storage API client.
type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

// New creates a storage client.
func New(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       &http.Client{Timeout: 120 * time.Second},
	}
}

type uploadResponse struct {
	Key string `json:"Key"`
}

type signResponse struct {
	SignedURL string `json:"signedURL"`
}

// Upload pushes bytes to bucket/objectPath and returns the stored path.
// A response that omits the path field still counts as success; the
// derived path is returned instead.
func (c *Client) Upload(ctx context.Context, bucket, objectPath string, data []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", contentTypeFor(objectPath))
	// storage answers 409 on re-upload without this
	req.Header.Set("x-upsert", "true")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage upload: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("storage upload: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var ur uploadResponse
	if err := json.Unmarshal(body, &ur); err == nil && ur.Key != "" {
		return strings.TrimPrefix(ur.Key, bucket+"/"), nil
	}
	return objectPath, nil
}

// Sign requests a time-limited signed access URL for bucket/objectPath.
func (c *Client) Sign(ctx context.Context, bucket, objectPath string, ttl time.Duration) (string, error) {
	endpoint := fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", c.baseURL, bucket, objectPath)

	payload, _ := json.Marshal(map[string]int{"expiresIn": int(ttl.Seconds())})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage sign: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("storage sign: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var sr signResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("storage sign: decode: %w", err)
	}
	if sr.SignedURL == "" {
		return "", fmt.Errorf("storage sign: empty signed URL")
	}
	if strings.HasPrefix(sr.SignedURL, "http") {
		return sr.SignedURL, nil
	}
	return c.baseURL + "/storage/v1" + sr.SignedURL, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
}

func contentTypeFor(objectPath string) string {
	if ct := mime.TypeByExtension(path.Ext(objectPath)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
