// Package api assembles the versioned HTTP surface of the board.
package api

import (
	"net/http"

	"whisperboard/pkg/api/handlers"
	"whisperboard/pkg/auth"
	"whisperboard/pkg/blob"
	"whisperboard/pkg/board"
	"whisperboard/pkg/notify"

	"github.com/gorilla/mux"
)

// Deps carries the wired components the handlers need.
type Deps struct {
	Service *board.Service
	Hub     *notify.Hub
	Blobs   blob.Provider
}

// Handler returns the /v1 API handler. Mutating routes require a verified
// principal signature; reads and the event stream do not.
func Handler(d Deps) http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(auth.RequireSignedMutations)

	handlers.RegisterThreads(v1, d.Service)
	handlers.RegisterAttachments(v1, d.Blobs)
	handlers.RegisterEvents(v1, d.Hub)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
	return r
}
