// Package ranges implements the byte-range engine: parsing Range headers,
// normalizing and merging range sets, and rendering single-range or
// multipart/byteranges responses.
package ranges

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/fixserve/fixserve/pkg/httperr"
	"github.com/fixserve/fixserve/pkg/response"
)

// Spec is a normalized byte range with inclusive bounds.
type Spec struct {
	Start int64
	End   int64
}

// Len returns the number of bytes the range covers.
func (s Spec) Len() int64 {
	return s.End - s.Start + 1
}

// rawSpec is a parsed but not yet normalized range: either bound may be
// absent (suffix ranges omit the start, open-ended ranges omit the end).
type rawSpec struct {
	start, end       int64
	hasStart, hasEnd bool
}

// parse splits a Range header value into raw specs. A malformed header
// returns ok=false; per RFC 9110 the header is then ignored entirely.
func parse(header string) ([]rawSpec, bool) {
	value, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found {
		return nil, false
	}

	var specs []rawSpec
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		startStr, endStr, found := strings.Cut(part, "-")
		if !found {
			return nil, false
		}

		var spec rawSpec
		if startStr != "" {
			n, err := strconv.ParseInt(startStr, 10, 64)
			if err != nil || n < 0 {
				return nil, false
			}
			spec.start, spec.hasStart = n, true
		}
		if endStr != "" {
			n, err := strconv.ParseInt(endStr, 10, 64)
			if err != nil || n < 0 {
				return nil, false
			}
			spec.end, spec.hasEnd = n, true
		}
		if !spec.hasStart && !spec.hasEnd {
			return nil, false
		}
		specs = append(specs, spec)
	}
	return specs, len(specs) > 0
}

// normalize resolves raw specs against the resource length, dropping
// unsatisfiable members. A suffix spec -N becomes [L-N, L-1]; an open spec
// N- becomes [N, L-1].
func normalize(raws []rawSpec, length int64) []Spec {
	var out []Spec
	for _, r := range raws {
		var s Spec
		switch {
		case !r.hasStart:
			if r.end == 0 {
				continue
			}
			s.Start = length - r.end
			if s.Start < 0 {
				s.Start = 0
			}
			s.End = length - 1
		case !r.hasEnd:
			s.Start = r.start
			s.End = length - 1
		default:
			s.Start = r.start
			s.End = r.end
		}
		if s.Start > s.End || s.Start >= length {
			continue
		}
		if s.End > length-1 {
			s.End = length - 1
		}
		out = append(out, s)
	}
	return out
}

// Merge sorts specs by start and coalesces overlapping or adjacent ranges.
func Merge(specs []Spec) []Spec {
	if len(specs) <= 1 {
		return specs
	}
	sorted := make([]Spec, len(specs))
	copy(sorted, specs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := sorted[:1]
	for _, s := range sorted[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End+1 {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// Parse resolves a Range header against a resource of the given length.
// It returns nil specs (and nil error) when the header is absent or
// malformed, and a RangeNotSatisfiable error when no spec survives
// normalization. A partially satisfiable set proceeds with the satisfiable
// subset.
func Parse(header string, length int64) ([]Spec, error) {
	if header == "" {
		return nil, nil
	}
	raws, ok := parse(header)
	if !ok {
		return nil, nil
	}
	specs := normalize(raws, length)
	if len(specs) == 0 {
		return nil, httperr.RangeNotSatisfiable(length)
	}
	return Merge(specs), nil
}

// Apply renders content onto resp, honoring rangeHeader. With no (or an
// ignorable) Range header the full content is served with the status left
// untouched.
func Apply(rangeHeader string, content []byte, contentType string, resp *response.Response) error {
	length := int64(len(content))
	specs, err := Parse(rangeHeader, length)
	if err != nil {
		return err
	}
	if specs == nil {
		resp.SetBody(content)
		return nil
	}

	resp.SetStatus(http.StatusPartialContent)

	if len(specs) == 1 {
		s := specs[0]
		resp.SetHeader("Content-Range", fmt.Sprintf("bytes %d-%d/%d", s.Start, s.End, length))
		resp.SetHeader("Content-Length", strconv.FormatInt(s.Len(), 10))
		resp.SetBody(content[s.Start : s.End+1])
		return nil
	}

	body, boundary, err := renderMultipart(specs, content, contentType, length)
	if err != nil {
		return httperr.Internal("rendering multipart ranges: %s", err)
	}
	resp.SetHeader("Content-Type", "multipart/byteranges; boundary="+boundary)
	resp.SetHeader("Content-Length", strconv.Itoa(len(body)))
	resp.SetBody(body)
	return nil
}

// renderMultipart builds a multipart/byteranges body. The boundary token is
// random, so it cannot collide with resource content in practice.
func renderMultipart(specs []Spec, content []byte, contentType string, length int64) ([]byte, string, error) {
	boundary := strings.ReplaceAll(uuid.NewString(), "-", "")

	var buf bytes.Buffer
	buf.WriteString("\r\n")

	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(boundary); err != nil {
		return nil, "", err
	}
	for _, s := range specs {
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":  {contentType},
			"Content-Range": {fmt.Sprintf("bytes %d-%d/%d", s.Start, s.End, length)},
		})
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(content[s.Start : s.End+1]); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), boundary, nil
}
