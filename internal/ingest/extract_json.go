package ingest

import (
	"encoding/json"
	"strings"
)

// mediaURLFields are object keys whose string values are treated as the
// canonical media URL even without an audio extension (e.g. signed URLs
// with opaque paths).
var mediaURLFields = map[string]bool{
	"url":           true,
	"audio_url":     true,
	"audiourl":      true,
	"media_url":     true,
	"file_url":      true,
	"recording_url": true,
	"download_url":  true,
}

// nameFields are object keys consulted for a display name when a sibling
// field matched as the media URL.
var nameFields = []string{"name", "file_name", "filename", "title"}

// ExtractJSONLinks walks a JSON listing payload depth-first and collects
// every string that is an audio URL. Pure function; malformed JSON yields
// no candidates. Duplicates are allowed here; dedup is a discovery-level
// concern.
func ExtractJSONLinks(body []byte) []Candidate {
	var root any
	if err := json.Unmarshal(body, &root); err != nil {
		return nil
	}
	var out []Candidate
	walkJSON(root, &out)
	return out
}

func walkJSON(v any, out *[]Candidate) {
	switch t := v.(type) {
	case map[string]any:
		for key, val := range t {
			s, isString := val.(string)
			if isString && isAudioURLValue(key, s) {
				*out = append(*out, Candidate{URL: s, Name: jsonCandidateName(t, s)})
				continue
			}
			walkJSON(val, out)
		}
	case []any:
		for _, item := range t {
			walkJSON(item, out)
		}
	case string:
		if isAudioURLValue("", t) {
			*out = append(*out, Candidate{URL: t, Name: fileNameFromURL(t)})
		}
	}
}

// isAudioURLValue accepts http(s) strings ending in an audio extension, or
// any http(s) string sitting under a canonical media URL field.
func isAudioURLValue(key, s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	if hasAudioExtension(s) {
		return true
	}
	return mediaURLFields[strings.ToLower(key)]
}

// jsonCandidateName prefers an explicit name field on the same object,
// falling back to the URL's file name.
func jsonCandidateName(obj map[string]any, rawURL string) string {
	for _, f := range nameFields {
		if s, ok := obj[f].(string); ok && s != "" {
			return s
		}
	}
	return fileNameFromURL(rawURL)
}
