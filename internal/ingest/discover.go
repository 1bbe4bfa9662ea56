package ingest

import (
	"context"
	"net/http"
	"strings"
)

// Candidate is an unvalidated {url, name} pair produced by discovery,
// before dedup and per-file validation.
type Candidate struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// Discover classifies sourceURL and runs the matching discovery strategy.
// Dispatch order: drive URL pattern, then a single GET probe routed by
// content type (audio → the URL itself, html → link extraction, json →
// listing walk). Anything else is a discovery failure. The shared session
// is borrowed, never released here; its lifetime belongs to the caller.
func Discover(ctx context.Context, s *Session, sourceURL string) ([]Candidate, error) {
	metrics.DiscoverRequests.Add(1)

	if IsDriveURL(sourceURL) {
		return ResolveDrive(ctx, s, sourceURL)
	}

	resp, err := s.Get(ctx, sourceURL)
	if err != nil {
		return nil, discoveryErrorf("Failed to access %s: %v", sourceURL, err)
	}
	if resp.Status != http.StatusOK {
		return nil, discoveryErrorf("Failed to access %s: status %d", sourceURL, resp.Status)
	}

	ct := strings.ToLower(resp.ContentType)
	switch {
	case IsAudioContentType(ct):
		return []Candidate{{URL: sourceURL, Name: fileNameFromURL(sourceURL)}}, nil
	case strings.Contains(ct, "html"):
		return ExtractHTMLLinks(resp.Body, sourceURL), nil
	case strings.Contains(ct, "json"):
		return ExtractJSONLinks(resp.Body), nil
	default:
		return nil, discoveryErrorf("Failed to access %s: unsupported content type %q", sourceURL, resp.ContentType)
	}
}

// dedupCandidates keeps the first occurrence per exact URL. Entries with an
// empty URL are dropped without consuming a dedup slot.
func dedupCandidates(in []Candidate) []Candidate {
	seen := make(map[string]bool)
	var out []Candidate
	for _, c := range in {
		if c.URL == "" {
			continue
		}
		if !seen[c.URL] {
			seen[c.URL] = true
			out = append(out, c)
		}
	}
	return out
}
