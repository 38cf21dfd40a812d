package playlist

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

const (
	tagHeader    = "#EXTM3U"
	tagStreamInf = "#EXT-X-STREAM-INF:"
	tagKey       = "#EXT-X-KEY:"
	tagMap       = "#EXT-X-MAP:"
	tagByteRange = "#EXT-X-BYTERANGE:"
)

// Variant is one rendition listed by a master playlist.
type Variant struct {
	URL        string
	Bandwidth  int
	Resolution string
}

// MediaSegment is a segment URI, optionally narrowed to a byte range.
// Length zero means the whole resource.
type MediaSegment struct {
	URL    string
	Offset int64
	Length int64
}

// Manifest is the parsed form of a single playlist document.
// Exactly one of Variants and Segments is non-empty for a valid document.
type Manifest struct {
	Variants []Variant
	Segments []MediaSegment
}

// IsMaster reports whether the manifest references variant playlists.
func (m *Manifest) IsMaster() bool {
	return len(m.Variants) > 0
}

// ParseError describes why a playlist document was rejected.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
	}
	return e.Msg
}

// Parse reads a playlist line by line. Lines starting with '#' are directives,
// every other non-blank line is a URI resolved against base.
func Parse(body []byte, base *url.URL) (*Manifest, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	m := &Manifest{}
	var (
		lineNo        int
		sawHeader     bool
		pendingStream *Variant
		pendingRange  *byteRange
		initSegment   MediaSegment
		// end of the previous media segment's range, for ranges without an offset
		prevRangeURL string
		prevRangeEnd int64
	)

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" {
			continue
		}

		if !sawHeader {
			if line != tagHeader {
				return nil, &ParseError{Line: lineNo, Msg: "missing #EXTM3U header"}
			}
			sawHeader = true
			continue
		}

		switch {
		case strings.HasPrefix(line, tagStreamInf):
			attrs := parseAttributes(strings.TrimPrefix(line, tagStreamInf))
			v := &Variant{Resolution: attrs["RESOLUTION"]}
			if bw, err := strconv.Atoi(attrs["BANDWIDTH"]); err == nil {
				v.Bandwidth = bw
			}
			pendingStream = v
			continue

		case strings.HasPrefix(line, tagKey):
			attrs := parseAttributes(strings.TrimPrefix(line, tagKey))
			if method := attrs["METHOD"]; method != "" && method != "NONE" {
				return nil, &ParseError{Line: lineNo, Msg: fmt.Sprintf("encrypted segments (%s) are not supported", method)}
			}
			continue

		case strings.HasPrefix(line, tagMap):
			attrs := parseAttributes(strings.TrimPrefix(line, tagMap))
			uri, ok := attrs["URI"]
			if !ok || uri == "" {
				return nil, &ParseError{Line: lineNo, Msg: "EXT-X-MAP without URI"}
			}
			resolved, err := resolveRef(base, uri)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			seg := MediaSegment{URL: resolved}
			if raw, ok := attrs["BYTERANGE"]; ok {
				br, err := parseByteRange(raw)
				if err != nil {
					return nil, &ParseError{Line: lineNo, Msg: err.Error()}
				}
				// Without an offset the init section starts at the beginning of the resource.
				seg.Offset, seg.Length = br.offset, br.length
			}
			// A repeated map with the same URI and range does not start a new init section.
			if seg != initSegment {
				initSegment = seg
				m.Segments = append(m.Segments, seg)
			}
			continue

		case strings.HasPrefix(line, tagByteRange):
			if pendingRange != nil {
				return nil, &ParseError{Line: lineNo, Msg: "EXT-X-BYTERANGE repeated before its URI"}
			}
			br, err := parseByteRange(strings.TrimPrefix(line, tagByteRange))
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			pendingRange = &br
			continue

		case strings.HasPrefix(line, "#"):
			continue
		}

		resolved, err := resolveRef(base, line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Msg: err.Error()}
		}

		if pendingStream != nil {
			if pendingRange != nil {
				return nil, &ParseError{Line: lineNo, Msg: "EXT-X-BYTERANGE on a variant stream"}
			}
			pendingStream.URL = resolved
			m.Variants = append(m.Variants, *pendingStream)
			pendingStream = nil
			continue
		}

		seg := MediaSegment{URL: resolved}
		if pendingRange != nil {
			offset := pendingRange.offset
			if !pendingRange.hasOffset {
				if prevRangeURL != resolved {
					return nil, &ParseError{Line: lineNo, Msg: "EXT-X-BYTERANGE without offset does not follow a range of the same resource"}
				}
				offset = prevRangeEnd
			}
			seg.Offset, seg.Length = offset, pendingRange.length
			prevRangeURL, prevRangeEnd = resolved, offset+pendingRange.length
			pendingRange = nil
		} else {
			prevRangeURL = ""
		}
		m.Segments = append(m.Segments, seg)
	}

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Msg: err.Error()}
	}
	if !sawHeader {
		return nil, &ParseError{Msg: "missing #EXTM3U header"}
	}
	if pendingStream != nil {
		return nil, &ParseError{Line: lineNo, Msg: "EXT-X-STREAM-INF without URI"}
	}
	if pendingRange != nil {
		return nil, &ParseError{Line: lineNo, Msg: "EXT-X-BYTERANGE without URI"}
	}
	if len(m.Variants) > 0 && len(m.Segments) > 0 {
		return nil, &ParseError{Msg: "playlist mixes variants and media segments"}
	}

	return m, nil
}

type byteRange struct {
	length    int64
	offset    int64
	hasOffset bool
}

// parseByteRange reads "<length>[@<offset>]".
func parseByteRange(s string) (byteRange, error) {
	s = strings.TrimSpace(s)
	lengthPart, offsetPart, hasOffset := strings.Cut(s, "@")

	length, err := strconv.ParseInt(lengthPart, 10, 64)
	if err != nil || length <= 0 {
		return byteRange{}, fmt.Errorf("invalid byte range %q", s)
	}
	br := byteRange{length: length, hasOffset: hasOffset}
	if hasOffset {
		offset, err := strconv.ParseInt(offsetPart, 10, 64)
		if err != nil || offset < 0 || offset > math.MaxInt64-length {
			return byteRange{}, fmt.Errorf("invalid byte range %q", s)
		}
		br.offset = offset
	}
	return br, nil
}

func resolveRef(base *url.URL, ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URI %q: %w", ref, err)
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URI %q", ref)
	}
	return u.String(), nil
}

// parseAttributes splits an attribute list such as
// BANDWIDTH=1280000,CODECS="avc1.4d401f,mp4a.40.2" into its keys and values.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)
	var (
		key, val strings.Builder
		inKey    = true
		inQuote  bool
	)

	flush := func() {
		k := strings.TrimSpace(key.String())
		if k != "" {
			attrs[k] = strings.Trim(strings.TrimSpace(val.String()), `"`)
		}
		key.Reset()
		val.Reset()
		inKey = true
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			if !inKey {
				val.WriteRune(r)
			}
		case r == ',' && !inQuote:
			flush()
		case r == '=' && inKey:
			inKey = false
		case inKey:
			key.WriteRune(r)
		default:
			val.WriteRune(r)
		}
	}
	flush()

	return attrs
}
