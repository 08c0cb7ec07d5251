// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"time"

	"golang.org/x/net/publicsuffix"
)

// BrowserUserAgent is sent on document downloads. Publisher asset servers
// commonly refuse non-browser clients.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// ErrIdleTimeout reports a response body that delivered no bytes within the
// idle limit.
var ErrIdleTimeout = errors.New("no data received within idle timeout")

// NewSessionClient returns a client that keeps cookies across requests, so a
// visit to an article page can establish the session a later asset request
// needs.
//
// timeout bounds connecting, the TLS handshake and waiting for response
// headers. It does not bound reading the body; wrap the body with
// IdleTimeoutBody for that. A non-positive timeout leaves these unbounded.
func NewSessionClient(timeout time.Duration) *http.Client {
	// cookiejar.New never returns a non-nil error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if timeout > 0 {
		dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
		transport.DialContext = dialer.DialContext
		transport.TLSHandshakeTimeout = timeout
		transport.ResponseHeaderTimeout = timeout
	}
	return &http.Client{
		Transport: transport,
		Jar:       jar,
	}
}

// SetBrowserHeaders decorates req so it resembles a browser navigation that
// originated from referer. An empty referer is omitted.
func SetBrowserHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
}

// IdleTimeoutBody wraps body so that cancel is called once idle passes
// without a successful read. cancel must cancel the request's context; the
// pending Read then fails and reports ErrIdleTimeout. A slow body that keeps
// delivering bytes is never cut off. A non-positive idle returns body as is.
func IdleTimeoutBody(body io.ReadCloser, idle time.Duration, cancel context.CancelFunc) io.ReadCloser {
	if idle <= 0 {
		return body
	}
	b := &idleBody{body: body, idle: idle}
	b.timer = time.AfterFunc(idle, func() {
		b.expired.Store(true)
		cancel()
	})
	return b
}

type idleBody struct {
	body    io.ReadCloser
	idle    time.Duration
	timer   *time.Timer
	expired atomic.Bool
}

func (b *idleBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	if b.expired.Load() {
		if err == nil {
			err = ErrIdleTimeout
		} else if err != io.EOF {
			err = errors.Join(ErrIdleTimeout, err)
		}
		return n, err
	}
	if n > 0 {
		b.timer.Reset(b.idle)
	}
	return n, err
}

func (b *idleBody) Close() error {
	b.timer.Stop()
	return b.body.Close()
}
