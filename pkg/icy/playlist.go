package icy

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/zachfi/icyrip/pkg/srerror"
)

// ParsePLS returns the first File entry of a PLS playlist body.
func ParsePLS(body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", errors.Wrap(srerror.ErrCantParsePLS, err.Error())
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "File") {
			continue
		}
		if _, value, ok := strings.Cut(line, "="); ok {
			if u := strings.TrimSpace(value); u != "" {
				return u, nil
			}
		}
	}

	return "", errors.Wrap(srerror.ErrCantParsePLS, "no stream URL found")
}

// ParseM3U returns the first URL entry of an M3U playlist body,
// skipping #EXT directives and comments.
func ParseM3U(body io.Reader) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", errors.Wrap(srerror.ErrCantParseM3U, err.Error())
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, nil
		}
	}

	return "", errors.Wrap(srerror.ErrCantParseM3U, "no stream URL found")
}

// ResolveStreamURL follows a station link that may point at a .pls or
// .m3u playlist instead of the stream itself, returning the URL of
// the actual stream. A URL that already answers with icy-metaint is
// returned unchanged.
func ResolveStreamURL(url, userAgent string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(srerror.ErrInvalidURL, err.Error())
	}
	req.Header.Add("accept", "*/*")
	req.Header.Add("user-agent", userAgent)

	dialer := &net.Dialer{Timeout: 5 * time.Second}
	client := &http.Client{
		Transport: &http.Transport{DialContext: dialer.DialContext},
		Timeout:   10 * time.Second,
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", classifyDialError(err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("icy-metaint") != "" {
		return url, nil
	}

	contentType := resp.Header.Get("Content-Type")
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(srerror.ErrRecvFailed, err.Error())
	}
	content := string(body)

	switch {
	case isPLS(url, contentType, content):
		return ParsePLS(strings.NewReader(content))
	case isM3U(url, contentType, content):
		return ParseM3U(strings.NewReader(content))
	}

	// Not a playlist; assume the body we just consumed was the start
	// of the audio and let the caller dial it properly.
	return url, nil
}

func isPLS(url, contentType, content string) bool {
	return strings.Contains(contentType, "audio/x-scpls") ||
		strings.Contains(contentType, "application/pls+xml") ||
		strings.HasSuffix(url, ".pls") ||
		strings.Contains(content, "[playlist]") ||
		strings.Contains(content, "File1=")
}

func isM3U(url, contentType, content string) bool {
	trimmed := strings.TrimSpace(content)
	return strings.Contains(contentType, "audio/mpegurl") ||
		strings.Contains(contentType, "application/vnd.apple.mpegurl") ||
		strings.HasSuffix(url, ".m3u") ||
		strings.HasSuffix(url, ".m3u8") ||
		strings.Contains(content, "#EXTM3U") ||
		strings.HasPrefix(trimmed, "http://") ||
		strings.HasPrefix(trimmed, "https://")
}
