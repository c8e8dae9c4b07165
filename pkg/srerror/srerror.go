// Package srerror defines the closed set of status codes surfaced by the
// ripping pipeline. Zero is success, small positive values are non-fatal
// informational states, and negative values are failures.
package srerror

import "github.com/pkg/errors"

type Code int

const (
	Success          Code = 0
	SuccessBuffering Code = 1
)

const (
	ErrInvalidParam Code = -(iota + 2)
	ErrInvalidURL
	ErrCantCreateSocket
	ErrCantResolveHostname
	ErrConnectFailed
	ErrSendFailed
	ErrRecvFailed
	ErrSocketClosed
	ErrTimeout
	ErrBufferEmpty
	ErrBufferFull
	ErrBufferTooSmall
	ErrHTTP400
	ErrHTTP401
	ErrHTTP403
	ErrHTTP404
	ErrHTTP407
	ErrHTTP502
	ErrHTTPClient
	ErrHTTPServer
	ErrHTTPRedirect
	ErrHTTPSRedirect
	ErrParseFailure
	ErrInvalidMetadata
	ErrCantParsePLS
	ErrCantParseM3U
	ErrCantCreateFile
	ErrCantWriteToFile
	ErrCantCreateDir
	ErrInvalidDirectory
	ErrCantAllocMemory
	ErrCantCreateThread
	ErrCantWaitOnThread
	ErrCantCreateEvent
	ErrTLSSetup
	ErrTLSHandshake
)

var messages = map[Code]string{
	Success:                "success",
	ErrInvalidParam:        "invalid parameter",
	ErrInvalidURL:          "invalid URL",
	ErrCantCreateSocket:    "could not create socket",
	ErrCantResolveHostname: "could not resolve hostname",
	ErrConnectFailed:       "connect failed",
	ErrSendFailed:          "send failed",
	ErrRecvFailed:          "receive failed",
	ErrSocketClosed:        "socket closed",
	ErrTimeout:             "timeout",
	ErrBufferEmpty:         "buffer empty",
	ErrBufferFull:          "buffer full",
	ErrBufferTooSmall:      "buffer too small",
	ErrHTTP400:             "HTTP 400 bad request",
	ErrHTTP401:             "HTTP 401 unauthorized",
	ErrHTTP403:             "HTTP 403 forbidden",
	ErrHTTP404:             "HTTP 404 not found",
	ErrHTTP407:             "HTTP 407 proxy authentication required",
	ErrHTTP502:             "HTTP 502 bad gateway",
	ErrHTTPClient:          "HTTP client error",
	ErrHTTPServer:          "HTTP server error",
	ErrHTTPRedirect:        "HTTP redirect",
	ErrHTTPSRedirect:       "HTTPS redirect",
	ErrParseFailure:        "parse failure",
	ErrInvalidMetadata:     "invalid metadata",
	ErrCantParsePLS:        "could not parse PLS playlist",
	ErrCantParseM3U:        "could not parse M3U playlist",
	ErrCantCreateFile:      "could not create file",
	ErrCantWriteToFile:     "could not write to file",
	ErrCantCreateDir:       "could not create directory",
	ErrInvalidDirectory:    "invalid directory",
	ErrCantAllocMemory:     "out of memory",
	ErrCantCreateThread:    "could not create thread",
	ErrCantWaitOnThread:    "could not wait on thread",
	ErrCantCreateEvent:     "could not create event",
	ErrTLSSetup:            "TLS setup failed",
	ErrTLSHandshake:        "TLS handshake failed",
}

// Message returns the label for a code. Codes outside the known table, and
// positive informational codes, report ok=false so the caller can detect
// them instead of printing garbage.
func Message(c Code) (string, bool) {
	if c > 0 {
		return "", false
	}
	m, ok := messages[c]
	return m, ok
}

func (c Code) Error() string {
	if m, ok := Message(c); ok {
		return m
	}
	return "unknown status code"
}

// CodeOf unwraps err looking for a Code anywhere in its chain.
func CodeOf(err error) (Code, bool) {
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return Success, false
}

// FromHTTPStatus maps an HTTP response status to a failure code. Statuses
// below 400 are not failures and map to Success.
func FromHTTPStatus(status int) Code {
	switch status {
	case 400:
		return ErrHTTP400
	case 401:
		return ErrHTTP401
	case 403:
		return ErrHTTP403
	case 404:
		return ErrHTTP404
	case 407:
		return ErrHTTP407
	case 502:
		return ErrHTTP502
	}
	switch {
	case status >= 500:
		return ErrHTTPServer
	case status >= 400:
		return ErrHTTPClient
	}
	return Success
}
