package handlers

import (
	"encoding/json"
	"net/http"

	"whisperboard/pkg/auth"
	"whisperboard/pkg/board"
	"whisperboard/pkg/models"
	"whisperboard/pkg/utils"

	"github.com/gorilla/mux"
)

// RegisterThreads registers all thread and node routes on the router.
func RegisterThreads(r *mux.Router, svc *board.Service) {
	// Collection routes
	r.HandleFunc("/threads", createThread(svc)).Methods(http.MethodPost)
	r.HandleFunc("/threads", listThreads(svc)).Methods(http.MethodGet)

	// Single resource routes
	r.HandleFunc("/threads/{id}", getThread(svc)).Methods(http.MethodGet)

	// Node-scoped routes; the root node is addressed like any other node
	r.HandleFunc("/threads/{threadID}/replies", createReply(svc)).Methods(http.MethodPost)
	r.HandleFunc("/threads/{threadID}/nodes/{nodeID}/reactions", toggleReaction(svc)).Methods(http.MethodPost)
	r.HandleFunc("/threads/{threadID}/nodes/{nodeID}", editNode(svc)).Methods(http.MethodPatch)
	r.HandleFunc("/threads/{threadID}/nodes/{nodeID}", deleteNode(svc)).Methods(http.MethodDelete)

	// Topic overview
	r.HandleFunc("/topics/counts", topicCounts(svc)).Methods(http.MethodGet)
}

type createThreadReq struct {
	Topic       string              `json:"topic"`
	Text        string              `json:"text"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	ClientToken string              `json:"client_token,omitempty"`
}

// createThread handles POST /threads. The author is always taken from the
// verified signature middleware, never from the body.
func createThread(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createThreadReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		author := auth.PrincipalFromContext(r.Context())
		t, err := svc.CreateRoot(r.Context(), req.Topic, author, req.Text, req.Attachments, req.ClientToken)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSONWrite(w, http.StatusCreated, t)
	}
}

// listThreads handles GET /threads?topic=<name>. The topic parameter is
// required; an unknown topic returns an empty list.
func listThreads(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		topic := r.URL.Query().Get("topic")
		if topic == "" {
			utils.JSONError(w, http.StatusBadRequest, "topic query parameter is required")
			return
		}
		threads, err := svc.ListTopic(r.Context(), topic)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSONWrite(w, http.StatusOK, struct {
			Topic   string          `json:"topic"`
			Threads []models.Thread `json:"threads"`
		}{Topic: topic, Threads: threads})
	}
}

// getThread handles GET /threads/{id}. Returns the full aggregate.
func getThread(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		t, err := svc.GetThread(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSONWrite(w, http.StatusOK, t)
	}
}

type createReplyReq struct {
	ParentID    string              `json:"parent_id,omitempty"`
	Text        string              `json:"text"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
	ClientToken string              `json:"client_token,omitempty"`
}

// createReply handles POST /threads/{threadID}/replies. An empty parent_id
// attaches the reply directly under the root.
func createReply(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threadID := mux.Vars(r)["threadID"]
		var req createReplyReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		author := auth.PrincipalFromContext(r.Context())
		t, err := svc.CreateReply(r.Context(), threadID, req.ParentID, author, req.Text, req.Attachments, req.ClientToken)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSONWrite(w, http.StatusCreated, t)
	}
}

type reactionReq struct {
	Kind string `json:"kind"`
}

// toggleReaction handles POST /threads/{threadID}/nodes/{nodeID}/reactions
// with body {"kind":"like"|"dislike"}.
func toggleReaction(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		var req reactionReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		principal := auth.PrincipalFromContext(r.Context())
		t, err := svc.ToggleReaction(r.Context(), vars["threadID"], vars["nodeID"], principal, board.ReactionKind(req.Kind))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSONWrite(w, http.StatusOK, t)
	}
}

type editNodeReq struct {
	Text string `json:"text"`
}

// editNode handles PATCH /threads/{threadID}/nodes/{nodeID} replacing the
// node text. Only the node's author may edit.
func editNode(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		var req editNodeReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			utils.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		author := auth.PrincipalFromContext(r.Context())
		t, err := svc.EditText(r.Context(), vars["threadID"], vars["nodeID"], author, req.Text)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSONWrite(w, http.StatusOK, t)
	}
}

// deleteNode handles DELETE /threads/{threadID}/nodes/{nodeID}. Deleting
// the root node destroys the whole thread.
func deleteNode(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		author := auth.PrincipalFromContext(r.Context())
		res, err := svc.DeleteNode(r.Context(), vars["threadID"], vars["nodeID"], author)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSONWrite(w, http.StatusOK, struct {
			RootDeleted bool `json:"root_deleted"`
			Removed     int  `json:"removed"`
		}{RootDeleted: res.RootDeleted, Removed: res.Removed})
	}
}

// topicCounts handles GET /topics/counts with a topic to thread-count map.
func topicCounts(svc *board.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := svc.TopicCounts(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		utils.JSONWrite(w, http.StatusOK, struct {
			Counts map[string]int `json:"counts"`
		}{Counts: counts})
	}
}
