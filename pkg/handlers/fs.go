package handlers

import (
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/fixserve/fixserve/pkg/httperr"
)

// knownTypes pins exact content types for the extensions test content uses,
// independent of the host's mime database (which may append charset
// parameters or disagree across platforms).
var knownTypes = map[string]string{
	".txt":  "text/plain",
	".html": "text/html",
	".htm":  "text/html",
	".js":   "text/javascript",
	".mjs":  "text/javascript",
	".css":  "text/css",
	".json": "application/json",
	".xml":  "application/xml",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".gif":  "image/gif",
}

// contentTypeFor derives a content type from the file extension, falling
// back to text/plain.
func contentTypeFor(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "text/plain"
}

// Resolve maps a request path onto the document root, rejecting traversal
// outside it.
func Resolve(root, urlPath string) (string, error) {
	cleaned := path.Clean("/" + urlPath)
	if strings.Contains(cleaned, "..") {
		return "", httperr.NotFound("no such resource: %s", urlPath)
	}
	return filepath.Join(root, filepath.FromSlash(cleaned)), nil
}
