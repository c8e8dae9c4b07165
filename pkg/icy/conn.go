package icy

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/zachfi/icyrip/pkg/srerror"
)

const (
	defaultConnectTimeout = 15 * time.Second
	defaultReadTimeout    = 20 * time.Second
	defaultUserAgent      = "icyrip/1.0"

	// maxRedirects bounds redirect chasing so two servers pointing at
	// each other cannot loop us forever.
	maxRedirects = 5
)

// DialConfig carries the transport knobs for Dial. The zero value is
// usable; each field falls back to a package default.
type DialConfig struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	UserAgent      string
}

func (c *DialConfig) withDefaults() DialConfig {
	out := DialConfig{}
	if c != nil {
		out = *c
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = defaultConnectTimeout
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = defaultReadTimeout
	}
	if out.UserAgent == "" {
		out.UserAgent = defaultUserAgent
	}
	return out
}

// Conn is an open stream positioned at the first audio byte. Reads
// carry a rolling timeout; a stalled server surfaces ErrTimeout
// instead of hanging the producer.
type Conn struct {
	Header *StreamHeader
	URL    UrlInfo

	netConn     net.Conn
	r           *bufio.Reader
	readTimeout time.Duration
}

// Dial connects to the stream described by info, sends the ICY
// request, and parses the response preamble. Redirects are followed
// up to a fixed bound, re-dialing with the transport the target
// scheme requires. The returned Conn reads pure wire bytes; metadata
// stripping is the caller's business via an Extractor.
func Dial(ctx context.Context, info UrlInfo, cfg *DialConfig) (*Conn, error) {
	dc := cfg.withDefaults()

	target := info
	for attempt := 0; ; attempt++ {
		conn, err := dialOnce(ctx, target, dc)
		if err == nil {
			return conn, nil
		}

		var redirect *RedirectError
		if !errors.As(err, &redirect) {
			return nil, err
		}
		if attempt >= maxRedirects {
			return nil, pkgerrors.Wrapf(redirect.Code(), "redirect limit reached at %s", redirect.Location)
		}
		target, err = redirectTarget(target, redirect.Location)
		if err != nil {
			return nil, err
		}
	}
}

func dialOnce(ctx context.Context, info UrlInfo, dc DialConfig) (*Conn, error) {
	addr := info.Addr()
	if info.ProxyHost != "" {
		addr = net.JoinHostPort(info.ProxyHost, fmt.Sprintf("%d", info.ProxyPort))
	}

	dialer := &net.Dialer{Timeout: dc.ConnectTimeout}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDialError(err)
	}

	if info.TLS() {
		tlsConn := tls.Client(netConn, &tls.Config{
			ServerName: info.Host,
			MinVersion: tls.VersionTLS12,
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			netConn.Close()
			return nil, pkgerrors.Wrap(srerror.ErrTLSHandshake, err.Error())
		}
		netConn = tlsConn
	}

	netConn.SetWriteDeadline(time.Now().Add(dc.ConnectTimeout))
	if _, err := io.WriteString(netConn, buildRequest(info, dc.UserAgent)); err != nil {
		netConn.Close()
		return nil, pkgerrors.Wrap(srerror.ErrSendFailed, err.Error())
	}
	netConn.SetWriteDeadline(time.Time{})

	r := bufio.NewReader(netConn)
	netConn.SetReadDeadline(time.Now().Add(dc.ReadTimeout))
	header, err := ParseHeader(r)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	netConn.SetReadDeadline(time.Time{})

	return &Conn{
		Header:      header,
		URL:         info,
		netConn:     netConn,
		r:           r,
		readTimeout: dc.ReadTimeout,
	}, nil
}

// buildRequest assembles the GET preamble. Icy-MetaData: 1 asks the
// server to interleave metadata; servers that do not support it just
// omit icy-metaint from the response.
func buildRequest(info UrlInfo, userAgent string) string {
	var b strings.Builder

	requestURI := info.Path
	if info.ProxyHost != "" {
		// Through a proxy the request line carries the absolute URI.
		requestURI = info.String()
	}

	fmt.Fprintf(&b, "GET %s HTTP/1.0\r\n", requestURI)
	fmt.Fprintf(&b, "Host: %s\r\n", info.Addr())
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("Accept: */*\r\n")
	b.WriteString("Icy-MetaData: 1\r\n")
	if info.Username != "" {
		cred := base64.StdEncoding.EncodeToString([]byte(info.Username + ":" + info.Password))
		fmt.Fprintf(&b, "Authorization: Basic %s\r\n", cred)
	}
	b.WriteString("\r\n")

	return b.String()
}

// redirectTarget resolves a Location value against the URL that
// produced it. Relative targets keep the current host and transport.
func redirectTarget(current UrlInfo, location string) (UrlInfo, error) {
	if strings.HasPrefix(location, "/") {
		next := current
		next.Path = location
		return next, nil
	}
	next, err := ParseURL(location)
	if err != nil {
		return UrlInfo{}, err
	}
	// A proxy in use stays in use across the redirect.
	next.ProxyHost = current.ProxyHost
	next.ProxyPort = current.ProxyPort
	return next, nil
}

func classifyDialError(err error) error {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return pkgerrors.Wrap(srerror.ErrCantResolveHostname, err.Error())
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return pkgerrors.Wrap(srerror.ErrTimeout, err.Error())
	}
	return pkgerrors.Wrap(srerror.ErrConnectFailed, err.Error())
}

// Read pulls wire bytes, renewing the read deadline each call.
func (c *Conn) Read(p []byte) (int, error) {
	c.netConn.SetReadDeadline(time.Now().Add(c.readTimeout))
	n, err := c.r.Read(p)
	if err == nil || err == io.EOF {
		return n, err
	}
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return n, pkgerrors.Wrap(srerror.ErrTimeout, err.Error())
	}
	if errors.Is(err, net.ErrClosed) {
		return n, pkgerrors.Wrap(srerror.ErrSocketClosed, err.Error())
	}
	return n, pkgerrors.Wrap(srerror.ErrRecvFailed, err.Error())
}

func (c *Conn) Close() error {
	return c.netConn.Close()
}
