package srerror

import (
	"testing"

	"github.com/pkg/errors"
)

func TestMessageKnownCode(t *testing.T) {
	m, ok := Message(Success)
	if !ok {
		t.Fatal("expected success to have a label")
	}
	if m != "success" {
		t.Fatalf("unexpected label: %q", m)
	}
}

func TestMessagePositiveCodeAbsent(t *testing.T) {
	if _, ok := Message(SuccessBuffering); ok {
		t.Fatal("positive informational codes have no label")
	}
}

func TestMessageOutOfRangeAbsent(t *testing.T) {
	for _, c := range []Code{-100, -1000, 42} {
		if m, ok := Message(c); ok {
			t.Fatalf("code %d should be absent, got %q", c, m)
		}
	}
}

func TestEveryFailureCodeHasNonEmptyLabel(t *testing.T) {
	for c, m := range messages {
		if m == "" {
			t.Errorf("code %d has an empty label", c)
		}
	}
	// Historically easy to leave uninitialized.
	for _, c := range []Code{ErrTLSSetup, ErrTLSHandshake, ErrHTTPRedirect, ErrHTTPSRedirect} {
		m, ok := Message(c)
		if !ok || m == "" {
			t.Errorf("code %d missing label", c)
		}
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		status int
		want   Code
	}{
		{400, ErrHTTP400},
		{401, ErrHTTP401},
		{403, ErrHTTP403},
		{404, ErrHTTP404},
		{407, ErrHTTP407},
		{502, ErrHTTP502},
		{410, ErrHTTPClient},
		{500, ErrHTTPServer},
		{503, ErrHTTPServer},
		{200, Success},
		{302, Success},
	}
	for _, tc := range cases {
		if got := FromHTTPStatus(tc.status); got != tc.want {
			t.Errorf("status %d: got %d, want %d", tc.status, got, tc.want)
		}
	}
}

func TestCodeOfUnwraps(t *testing.T) {
	err := errors.Wrap(ErrConnectFailed, "dial upstream")
	c, ok := CodeOf(err)
	if !ok || c != ErrConnectFailed {
		t.Fatalf("got %d, %v", c, ok)
	}
	if _, ok := CodeOf(errors.New("plain")); ok {
		t.Fatal("plain error should carry no code")
	}
}
