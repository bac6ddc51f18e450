package images

import "strings"

// DefaultContentType is served when the key has no recognised extension
const DefaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	"webp": "image/webp",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"ico":  "image/x-icon",
}

// ContentType maps the extension after the last '.' of key to a MIME type.
// It returns "" for keys without an extension or with an unknown one.
func ContentType(key string) string {
	i := strings.LastIndexByte(key, '.')
	if i < 0 {
		return ""
	}
	return contentTypes[strings.ToLower(key[i+1:])]
}

// ContentTypeOrDefault is ContentType with the octet-stream fallback applied
func ContentTypeOrDefault(key string) string {
	if ct := ContentType(key); ct != "" {
		return ct
	}
	return DefaultContentType
}
