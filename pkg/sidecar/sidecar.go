// Package sidecar reads .headers files that sit next to served resources.
// A resource's response headers merge directory-level defaults
// (__dir__.headers, outermost first) with the resource's own
// <name>.headers file; more specific definitions override earlier ones for
// the same header name, while repeats within one file all survive.
package sidecar

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fixserve/fixserve/pkg/response"
)

// DirFile is the name of the directory-wide sidecar file.
const DirFile = "__dir__.headers"

// Suffix is appended to a resource name to find its sidecar file.
const Suffix = ".headers"

// Parse reads "Name: value" lines. Lines without a colon and blank lines
// are skipped. Duplicate names produce duplicate header lines.
func Parse(data []byte) []response.Header {
	var out []response.Header
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		name, value, found := strings.Cut(string(line), ":")
		if !found {
			continue
		}
		out = append(out, response.Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	return out
}

// Merge layers header sets, earliest first. A name appearing in a later
// layer replaces every line for that name from earlier layers.
func Merge(layers ...[]response.Header) []response.Header {
	var out []response.Header
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		overridden := make(map[string]bool, len(layer))
		for _, h := range layer {
			overridden[strings.ToLower(h.Name)] = true
		}
		kept := out[:0]
		for _, h := range out {
			if !overridden[strings.ToLower(h.Name)] {
				kept = append(kept, h)
			}
		}
		out = append(kept, layer...)
	}
	return out
}

// Collect gathers the merged sidecar headers for the resource at relPath
// under root: every ancestor directory's __dir__.headers from the root down,
// then the resource's own sidecar. Missing files contribute nothing.
func Collect(root, relPath string) []response.Header {
	relPath = path.Clean(strings.TrimPrefix(relPath, "/"))

	var layers [][]response.Header
	dir := ""
	segments := strings.Split(relPath, "/")
	for _, seg := range segments[:len(segments)-1] {
		layers = append(layers, read(filepath.Join(root, filepath.FromSlash(dir), DirFile)))
		dir = path.Join(dir, seg)
	}
	layers = append(layers, read(filepath.Join(root, filepath.FromSlash(dir), DirFile)))
	layers = append(layers, read(filepath.Join(root, filepath.FromSlash(relPath)+Suffix)))

	return Merge(layers...)
}

func read(path string) []response.Header {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return Parse(data)
}
