package ingest

import (
	"net/url"
	"path"
	"strings"
)

// supportedExtensions is the set of audio formats accepted for ingestion.
// The pipeline gates on extension only; no transcoding happens here.
var supportedExtensions = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".webm": true,
	".ogg":  true,
}

// AudioExtension returns the lowercased audio extension of name,
// or "" if name does not end in a supported extension.
func AudioExtension(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if supportedExtensions[ext] {
		return ext
	}
	return ""
}

// CheckFormat validates a file name against the supported format table.
// Returns the extension unchanged on success.
func CheckFormat(name string) (string, error) {
	if ext := AudioExtension(name); ext != "" {
		return ext, nil
	}
	return "", validationErrorf("Unsupported audio format: %s", path.Ext(name))
}

// IsAudioContentType reports whether a Content-Type header denotes raw audio.
func IsAudioContentType(ct string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(ct)), "audio/")
}

// hasAudioExtension reports whether a URL path ends in a supported extension,
// ignoring query string and fragment.
func hasAudioExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return AudioExtension(rawURL) != ""
	}
	return AudioExtension(u.Path) != ""
}

// fileNameFromURL derives a display name from the last URL path segment.
func fileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return path.Base(rawURL)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "audio"
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}
