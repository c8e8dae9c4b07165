package icy

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/zachfi/icyrip/pkg/srerror"
)

// UrlInfo is the parsed form of a stream URL. It is read-only after
// ParseURL returns it.
type UrlInfo struct {
	Scheme   string
	Host     string
	Port     int
	Path     string
	Username string
	Password string

	ProxyHost string
	ProxyPort int
}

// TLS reports whether the URL requires a TLS transport.
func (u UrlInfo) TLS() bool { return u.Scheme == "https" }

// Addr returns the host:port dial target.
func (u UrlInfo) Addr() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// String reassembles the URL without credentials.
func (u UrlInfo) String() string {
	return u.Scheme + "://" + u.Addr() + u.Path
}

// WithProxy returns a copy of u routed through the given proxy.
func (u UrlInfo) WithProxy(host string, port int) UrlInfo {
	u.ProxyHost = host
	u.ProxyPort = port
	return u
}

// ParseURL parses a stream URL. Only http and https are accepted. The
// port defaults to 80 or 443 by scheme and must land in 1..65535; the
// path defaults to "/".
func ParseURL(raw string) (UrlInfo, error) {
	var info UrlInfo

	if !strings.Contains(raw, "://") {
		// Bare host[:port][/path] is common in station lists.
		raw = "http://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return info, errors.Wrap(srerror.ErrInvalidURL, err.Error())
	}

	switch parsed.Scheme {
	case "http", "https":
		info.Scheme = parsed.Scheme
	default:
		return info, errors.Wrap(srerror.ErrInvalidURL, "unsupported scheme "+parsed.Scheme)
	}

	info.Host = parsed.Hostname()
	if info.Host == "" {
		return info, errors.Wrap(srerror.ErrInvalidURL, "missing host")
	}

	if p := parsed.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return info, errors.Wrap(srerror.ErrInvalidURL, "bad port "+p)
		}
		info.Port = port
	} else if info.Scheme == "https" {
		info.Port = 443
	} else {
		info.Port = 80
	}
	if info.Port < 1 || info.Port > 65535 {
		return info, errors.Wrapf(srerror.ErrInvalidURL, "port %d out of range", info.Port)
	}

	info.Path = parsed.RequestURI()
	if info.Path == "" || !strings.HasPrefix(info.Path, "/") {
		info.Path = "/"
	}

	if parsed.User != nil {
		info.Username = parsed.User.Username()
		info.Password, _ = parsed.User.Password()
	}

	return info, nil
}
