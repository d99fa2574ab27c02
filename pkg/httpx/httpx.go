// Package httpx abstracts the tiny handler surface the health sidecar
// needs, so the same probe handlers can run on either net/http or fasthttp.
package httpx

import (
	"context"
	"io"
	"net/http"
)

// Request is the unified request representation used by sidecar handlers.
type Request struct {
	Ctx        context.Context
	Method     string
	Path       string
	Header     http.Header
	Body       io.ReadCloser
	RemoteAddr string
}

// ResponseWriter is the subset of http.ResponseWriter semantics adapters
// must provide.
type ResponseWriter interface {
	Header() http.Header
	Write([]byte) (int, error)
	WriteHeader(status int)
}

// HandlerFunc is the handler signature shared across adapters.
type HandlerFunc func(w ResponseWriter, r *Request)
