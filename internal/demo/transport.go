package demo

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// BaseURL is the API base the demo transport answers for.
const BaseURL = "http://demo.subsentry.local/api"

// Transport routes requests to a Backend without touching the network.
type Transport struct {
	Backend *Backend
}

// responseBuffer collects what a handler writes so it can be returned as an http.Response.
type responseBuffer struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (rb *responseBuffer) Header() http.Header { return rb.header }

func (rb *responseBuffer) WriteHeader(code int) {
	if rb.status == 0 {
		rb.status = code
	}
}

func (rb *responseBuffer) Write(p []byte) (int, error) {
	rb.WriteHeader(http.StatusOK)
	return rb.body.Write(p)
}

func (rb *responseBuffer) response(req *http.Request) *http.Response {
	rb.WriteHeader(http.StatusOK)
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", rb.status, http.StatusText(rb.status)),
		StatusCode:    rb.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        rb.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(rb.body.Bytes())),
		ContentLength: int64(rb.body.Len()),
		Request:       req,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}
	inner := req.Clone(req.Context())
	if inner.Body == nil {
		inner.Body = http.NoBody
	}
	rb := &responseBuffer{header: http.Header{}}
	t.Backend.ServeHTTP(rb, inner)
	return rb.response(req), nil
}

// HTTPClient returns an http.Client backed by the demo transport.
func (b *Backend) HTTPClient() *http.Client {
	return &http.Client{Transport: &Transport{Backend: b}}
}
