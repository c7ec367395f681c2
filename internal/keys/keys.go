// Package keys is the single source of truth for storage key layout.
//
// Every key lives under its owner's namespace:
//
//	{user}/images/{token}_{original}        raw upload
//	{user}/text/{token}_{original}.json     extraction record
//
// The uploader, the extractor and the result index all derive keys from these
// functions. The index joins images to records by filename, so formatting a key
// anywhere else risks rows that stay pending forever.
package keys

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const (
	ImagesArea = "images"
	TextArea   = "text"
	TextSuffix = ".json"
)

// ValidUser reports whether user can own a namespace. Ids that are empty or
// contain '/' would make one user's prefix a prefix of another's.
func ValidUser(user string) bool {
	return user != "" && !strings.Contains(user, "/")
}

// ImagePrefix is the listing prefix for a user's raw images.
func ImagePrefix(user string) string {
	return user + "/" + ImagesArea + "/"
}

// TextPrefix is the listing prefix for a user's extraction records.
func TextPrefix(user string) string {
	return user + "/" + TextArea + "/"
}

// ImageKey returns the storage key of an uploaded image.
func ImageKey(user, uniqueName string) string {
	return ImagePrefix(user) + uniqueName
}

// TextKey returns the storage key of the extraction record for an image.
func TextKey(user, uniqueName string) string {
	return TextPrefix(user) + uniqueName + TextSuffix
}

// UniqueName prefixes the base name of original with a 128-bit random hex token.
func UniqueName(original string) string {
	var token [16]byte
	rand.Read(token[:])
	return hex.EncodeToString(token[:]) + "_" + BaseName(original)
}

// BaseName strips any client-supplied directory part, including Windows-style
// paths some browsers send.
func BaseName(original string) string {
	if i := strings.LastIndexAny(original, `/\`); i >= 0 {
		return original[i+1:]
	}
	return original
}

// Filename returns the final '/'-delimited segment of a key.
func Filename(key string) string {
	return key[strings.LastIndex(key, "/")+1:]
}

// Parsed is a key split into its identity components.
type Parsed struct {
	User     string
	Area     string
	Filename string
}

// Parse splits key into user, area and filename. It reports false for keys
// with fewer than three segments.
func Parse(key string) (Parsed, bool) {
	segments := strings.Split(key, "/")
	if len(segments) < 3 {
		return Parsed{}, false
	}
	return Parsed{
		User:     segments[0],
		Area:     segments[1],
		Filename: segments[len(segments)-1],
	}, true
}

// IsDirMarker reports whether key is a folder placeholder rather than an object.
func IsDirMarker(key string) bool {
	return strings.HasSuffix(key, "/")
}

// IsTextRecord reports whether key names an extraction record.
func IsTextRecord(key string) bool {
	return strings.HasSuffix(key, TextSuffix) && !IsDirMarker(key)
}
