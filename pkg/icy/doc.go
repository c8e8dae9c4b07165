// Package icy speaks the SHOUTcast/Icecast side of HTTP: it dials a
// stream URL over plain TCP or TLS, parses the ICY response preamble,
// and strips the interleaved metadata blocks out of the audio bytes.
//
// The package handles the wire only. It performs no retries and keeps
// no recording state; the caller decides what to do with redirects,
// HTTP errors, and extracted metadata.
package icy
