package ingest

import "regexp"

// Drive URL shapes. File links carry the id in the path; folder links may or
// may not include the /drive prefix.
var (
	driveFileRe   = regexp.MustCompile(`drive\.google\.com/file/d/([a-zA-Z0-9_-]+)`)
	driveFolderRe = regexp.MustCompile(`drive\.google\.com/(?:drive/(?:u/\d+/)?)?folders/([a-zA-Z0-9_-]+)`)
	driveOpenRe   = regexp.MustCompile(`drive\.google\.com/open\?id=([a-zA-Z0-9_-]+)`)
)

// IsDriveURL reports whether sourceURL points at a drive file or folder.
// Checked before any network probe: drive pages answer 200 text/html for
// both files and folders, so content-type dispatch can't tell them apart.
func IsDriveURL(sourceURL string) bool {
	return driveFileRe.MatchString(sourceURL) ||
		driveFolderRe.MatchString(sourceURL) ||
		driveOpenRe.MatchString(sourceURL)
}

// driveFileID extracts a single file id from a drive file URL, or "".
func driveFileID(sourceURL string) string {
	if m := driveFileRe.FindStringSubmatch(sourceURL); m != nil {
		return m[1]
	}
	if m := driveOpenRe.FindStringSubmatch(sourceURL); m != nil {
		return m[1]
	}
	return ""
}

// driveFolderID extracts a folder id from a drive folder URL, or "".
func driveFolderID(sourceURL string) string {
	if m := driveFolderRe.FindStringSubmatch(sourceURL); m != nil {
		return m[1]
	}
	return ""
}
