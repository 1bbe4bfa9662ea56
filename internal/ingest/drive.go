package ingest

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

// PageParser extracts drive file ids from a folder listing page.
// Folder pages are not a stable API, so two concrete strategies exist:
// a structured goquery parser and a regex fallback over raw HTML.
type PageParser interface {
	FileIDs(body []byte) ([]string, error)
}

// driveHrefRe is the fallback pattern: file links embedded in folder HTML.
// Drive file ids are 33 chars.
var driveHrefRe = regexp.MustCompile(`href="/file/d/([a-zA-Z0-9_-]{33})"`)

// driveFilePathRe matches any /file/d/<id> path regardless of host.
var driveFilePathRe = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)

// dispositionFilenameRe pulls a filename out of a Content-Disposition header
// when mime.ParseMediaType chokes on drive's formatting.
var dispositionFilenameRe = regexp.MustCompile(`filename="([^"]+)"`)

type goqueryParser struct{}

// FileIDs pulls file ids from data-id attributes and embedded file hrefs,
// in document order, deduplicated within the page.
func (goqueryParser) FileIDs(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	doc.Find("[data-id]").Each(func(_ int, sel *goquery.Selection) {
		if id, ok := sel.Attr("data-id"); ok && len(id) >= 25 {
			add(id)
		}
	})
	doc.Find(`a[href*="/file/d/"]`).Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if m := driveFilePathRe.FindStringSubmatch(href); m != nil {
			add(m[1])
		}
	})
	return ids, nil
}

type regexParser struct{}

func (regexParser) FileIDs(body []byte) ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range driveHrefRe.FindAllSubmatch(body, -1) {
		id := string(m[1])
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// folderParser is selected once at startup; the regex fallback still runs
// per page whenever the structured parser errors.
var folderParser PageParser = newPageParser()

// newPageParser probes the structured parser against a trivial document and
// falls back to the regex strategy if it is unusable.
func newPageParser() PageParser {
	var p goqueryParser
	if _, err := p.FileIDs([]byte("<html><body></body></html>")); err != nil {
		return regexParser{}
	}
	return p
}

// ResolveDrive turns a drive folder or file URL into validated audio
// candidates.
func ResolveDrive(ctx context.Context, s *Session, sourceURL string) ([]Candidate, error) {
	if id := driveFileID(sourceURL); id != "" {
		// Single file: no network call here. Name is a placeholder the
		// caller may override; real resolution happens at validation.
		return []Candidate{{URL: driveDownloadURL(id), Name: drivePlaceholderName(id)}}, nil
	}

	folderID := driveFolderID(sourceURL)
	if folderID == "" {
		return nil, discoveryErrorf("Could not extract file/folder id from URL: %s", sourceURL)
	}

	metrics.DriveFolderFetches.Add(1)
	folderURL := fmt.Sprintf("%s/drive/folders/%s", cfg.DriveBaseURL, folderID)
	resp, err := s.Get(ctx, folderURL)
	if err != nil {
		return nil, discoveryErrorf("Failed to access folder: %v", err)
	}
	if resp.Status != http.StatusOK {
		return nil, discoveryErrorf("Failed to access folder: status %d", resp.Status)
	}

	ids := parseFolderFileIDs(resp.Body)
	candidates := validateDriveCandidates(ctx, s, ids)
	if len(candidates) == 0 {
		return nil, discoveryErrorf("No audio files found")
	}
	return candidates, nil
}

// parseFolderFileIDs runs the configured parser with regex as the safety
// net. Zero matches from either strategy is a valid outcome.
func parseFolderFileIDs(body []byte) []string {
	ids, err := folderParser.FileIDs(body)
	if err != nil {
		ids, _ = regexParser{}.FileIDs(body)
	}
	return ids
}

// validateDriveCandidates probes each file id up to the configured cap.
// Ids beyond the cap are included unvalidated to bound request volume.
func validateDriveCandidates(ctx context.Context, s *Session, ids []string) []Candidate {
	limiter := rate.NewLimiter(rate.Limit(cfg.DriveProbeRPS), 1)
	var out []Candidate

	for i, id := range ids {
		if i >= cfg.DriveValidateCap {
			out = append(out, Candidate{URL: driveDownloadURL(id), Name: drivePlaceholderName(id)})
			continue
		}

		if pr, ok := cacheGetProbe(ctx, id); ok {
			if pr.Valid {
				out = append(out, Candidate{URL: pr.URL, Name: pr.Name})
			}
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			break
		}

		if c, ok := probeDriveFile(ctx, s, id); ok {
			cacheSetProbe(ctx, id, probeResult{Valid: true, URL: c.URL, Name: c.Name})
			out = append(out, c)
		} else {
			cacheSetProbe(ctx, id, probeResult{Valid: false})
		}
	}
	return out
}

// probeDriveFile checks one file id. HEAD non-200 drops the candidate;
// a HEAD transport failure does NOT: the info page often still answers
// and can recover a display name and extension.
func probeDriveFile(ctx context.Context, s *Session, id string) (Candidate, bool) {
	metrics.DriveProbes.Add(1)
	dlURL := driveDownloadURL(id)

	resp, err := s.Head(ctx, dlURL)
	if err != nil {
		return driveInfoLookup(ctx, s, id)
	}
	if resp.Status != http.StatusOK {
		return Candidate{}, false
	}

	name := fileNameFromDisposition(resp.Disposition)
	if name == "" {
		name = drivePlaceholderName(id)
	}
	return Candidate{URL: dlURL, Name: name}, true
}

// driveInfoLookup fetches the file's view page to recover a display name and
// confirm an audio extension. Candidates without a recoverable audio
// extension are dropped.
func driveInfoLookup(ctx context.Context, s *Session, id string) (Candidate, bool) {
	metrics.DriveInfoLookups.Add(1)
	infoURL := fmt.Sprintf("%s/file/d/%s/view", cfg.DriveBaseURL, id)

	resp, err := s.Get(ctx, infoURL)
	if err != nil || resp.Status != http.StatusOK {
		return Candidate{}, false
	}

	name := fileNameFromDisposition(resp.Disposition)
	if name == "" {
		name = fileNameFromTitle(resp.Body)
	}
	if name == "" || AudioExtension(name) == "" {
		return Candidate{}, false
	}
	return Candidate{URL: driveDownloadURL(id), Name: name}, true
}

// fileNameFromTitle extracts the file name from a drive view page title
// ("recording.mp3 - Google Drive").
func fileNameFromTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		return ""
	}
	if idx := strings.LastIndex(title, " - "); idx > 0 {
		title = title[:idx]
	}
	return strings.TrimSpace(title)
}

// fileNameFromDisposition parses a Content-Disposition header for an audio
// file name; returns "" when the header names no audio file.
func fileNameFromDisposition(disposition string) string {
	if disposition == "" {
		return ""
	}
	name := ""
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		name = params["filename"]
	}
	if name == "" {
		if m := dispositionFilenameRe.FindStringSubmatch(disposition); m != nil {
			name = m[1]
		}
	}
	if name == "" || AudioExtension(name) == "" {
		return ""
	}
	return name
}

func driveDownloadURL(id string) string {
	return fmt.Sprintf("%s/uc?export=download&id=%s", cfg.DriveBaseURL, id)
}

// drivePlaceholderName is used until validation resolves a real name.
// Drive audio defaults to mp3; the format gate re-checks downstream.
func drivePlaceholderName(id string) string {
	return fmt.Sprintf("drive_file_%s.mp3", id)
}
