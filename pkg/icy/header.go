package icy

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/zachfi/icyrip/pkg/charset"
	"github.com/zachfi/icyrip/pkg/srerror"
)

// ContentType classifies the audio payload advertised by the server.
type ContentType int

const (
	ContentUnknown ContentType = iota
	ContentMP3
	ContentAAC
	ContentOGG
	ContentNSV
)

func (c ContentType) String() string {
	switch c {
	case ContentMP3:
		return "mp3"
	case ContentAAC:
		return "aac"
	case ContentOGG:
		return "ogg"
	case ContentNSV:
		return "nsv"
	default:
		return "unknown"
	}
}

// Extension returns the file extension for tracks of this type.
func (c ContentType) Extension() string {
	switch c {
	case ContentAAC:
		return ".aac"
	case ContentOGG:
		return ".ogg"
	case ContentNSV:
		return ".nsv"
	default:
		return ".mp3"
	}
}

// MaxHeaderFieldLen bounds the station strings kept from the preamble.
// Longer values are truncated, not rejected.
const MaxHeaderFieldLen = 256

// maxHeaderLines caps the preamble so a hostile server cannot feed an
// endless header section.
const maxHeaderLines = 128

// maxHeaderLineLen caps one preamble line so a newline-free response
// cannot grow memory without bound.
const maxHeaderLineLen = 4096

// StreamHeader is the parsed response preamble. It is built once per
// connection attempt and not modified afterwards.
type StreamHeader struct {
	StatusCode  int
	ContentType ContentType
	MetaInt     int
	Bitrate     int
	Name        string
	Genre       string
	URL         string
	Server      string
}

// RedirectError reports a 3xx response. The scheme of the target is
// preserved in the code so the caller can re-dial with the right
// transport.
type RedirectError struct {
	StatusCode int
	Location   string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect %d to %s", e.StatusCode, e.Location)
}

// Code returns the https or http redirect code for the target.
func (e *RedirectError) Code() srerror.Code {
	if strings.HasPrefix(strings.ToLower(e.Location), "https://") {
		return srerror.ErrHTTPSRedirect
	}
	return srerror.ErrHTTPRedirect
}

// HTTPError reports a response with status 400 or above.
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.StatusCode, e.Code().Error())
}

func (e *HTTPError) Code() srerror.Code {
	return srerror.FromHTTPStatus(e.StatusCode)
}

// contentTypes maps the advertised content-type, lowercased and
// stripped of parameters, to a payload class. Anything else is
// Unknown and treated downstream as opaque audio.
var contentTypes = map[string]ContentType{
	"audio/mpeg":                  ContentMP3,
	"audio/mp3":                   ContentMP3,
	"audio/x-mpeg":                ContentMP3,
	"audio/aac":                   ContentAAC,
	"audio/aacp":                  ContentAAC,
	"audio/x-aac":                 ContentAAC,
	"application/ogg":             ContentOGG,
	"audio/ogg":                   ContentOGG,
	"video/nsv":                   ContentNSV,
	"application/x-winamp-stream": ContentNSV,
}

// ParseContentType classifies a raw content-type header value.
func ParseContentType(v string) ContentType {
	v = strings.ToLower(strings.TrimSpace(v))
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return contentTypes[v]
}

// ParseHeader reads the response preamble from r, leaving r positioned
// at the first audio byte. A 3xx status with a Location header returns
// a *RedirectError; a status of 400 or above returns an *HTTPError.
// Unknown header keys are ignored.
func ParseHeader(r *bufio.Reader) (*StreamHeader, error) {
	statusLine, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}

	h := &StreamHeader{}
	h.StatusCode, err = parseStatusLine(statusLine)
	if err != nil {
		return nil, err
	}

	location := ""
	for lines := 0; ; lines++ {
		if lines > maxHeaderLines {
			return nil, errors.Wrap(srerror.ErrParseFailure, "header section too long")
		}
		line, err := readHeaderLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			// Junk line; tolerated the same way unknown keys are.
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "icy-metaint", "x-audiocast-metadata-interval":
			if n, err := strconv.Atoi(value); err == nil && n >= 0 {
				h.MetaInt = n
			}
		case "icy-br", "x-audiocast-bitrate":
			if n, err := strconv.Atoi(value); err == nil && n > 0 {
				h.Bitrate = n
			}
		case "icy-name", "x-audiocast-name":
			h.Name = boundField(value)
		case "icy-genre", "x-audiocast-genre":
			h.Genre = boundField(value)
		case "icy-url", "x-audiocast-url":
			h.URL = boundField(value)
		case "server":
			h.Server = boundField(value)
		case "content-type":
			h.ContentType = ParseContentType(value)
		case "location":
			location = value
		}
	}

	switch {
	case h.StatusCode >= 300 && h.StatusCode < 400 && location != "":
		return nil, &RedirectError{StatusCode: h.StatusCode, Location: location}
	case h.StatusCode >= 400:
		return nil, &HTTPError{StatusCode: h.StatusCode}
	}

	return h, nil
}

// parseStatusLine accepts both "HTTP/1.x <code> ..." and the bare
// "ICY <code> ..." form older SHOUTcast servers answer with.
func parseStatusLine(line string) (int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, errors.Wrap(srerror.ErrParseFailure, "short status line "+strconv.Quote(line))
	}
	proto := strings.ToUpper(fields[0])
	if proto != "ICY" && !strings.HasPrefix(proto, "HTTP/") {
		return 0, errors.Wrap(srerror.ErrParseFailure, "unrecognized protocol "+strconv.Quote(fields[0]))
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || code < 100 || code > 599 {
		return 0, errors.Wrap(srerror.ErrParseFailure, "bad status code "+strconv.Quote(fields[1]))
	}
	return code, nil
}

func readHeaderLine(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		chunk, err := r.ReadSlice('\n')
		b.Write(chunk)
		if b.Len() > maxHeaderLineLen {
			return "", errors.Wrap(srerror.ErrParseFailure, "header line too long")
		}
		switch err {
		case nil:
			return strings.TrimRight(b.String(), "\r\n"), nil
		case bufio.ErrBufferFull:
			continue
		default:
			return "", errors.Wrap(srerror.ErrRecvFailed, err.Error())
		}
	}
}

// boundField truncates a station string to MaxHeaderFieldLen and
// downgrades it to a locale-safe form.
func boundField(s string) string {
	if len(s) > MaxHeaderFieldLen {
		s = s[:MaxHeaderFieldLen]
	}
	return charset.Normalize(s)
}
