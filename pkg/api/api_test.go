package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"whisperboard/pkg/auth"
	"whisperboard/pkg/blob"
	"whisperboard/pkg/board"
	"whisperboard/pkg/config"
	"whisperboard/pkg/logger"
	"whisperboard/pkg/models"
	"whisperboard/pkg/notify"
	"whisperboard/pkg/store"
)

const signKey = "test-signing-key"

type fixture struct {
	srv   *httptest.Server
	hub   *notify.Hub
	blobs *blob.MemoryProvider
	svc   *board.Service
}

func setupServer(t *testing.T) *fixture {
	t.Helper()
	logger.Init("error")
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	config.SetRuntime(&config.RuntimeConfig{SigningKeys: map[string]struct{}{signKey: {}}})

	hub := notify.NewHub(16)
	t.Cleanup(hub.Close)
	blobs := blob.NewMemory()
	svc := board.New(blobs, hub)

	srv := httptest.NewServer(Handler(Deps{Service: svc, Hub: hub, Blobs: blobs}))
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, hub: hub, blobs: blobs, svc: svc}
}

func signedReq(t *testing.T, method, url, user string, body any) *http.Request {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user)
	req.Header.Set("X-User-Signature", auth.SignPrincipal(signKey, user))
	return req
}

func doJSON(t *testing.T, req *http.Request, want int, out any) {
	t.Helper()
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != want {
		t.Fatalf("expected %d got %v", want, res.Status)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
}

func createThread(t *testing.T, f *fixture, user, topic, text string) *models.Thread {
	t.Helper()
	var th models.Thread
	req := signedReq(t, http.MethodPost, f.srv.URL+"/v1/threads", user, map[string]any{
		"topic": topic, "text": text,
	})
	doJSON(t, req, http.StatusCreated, &th)
	return &th
}

func TestMutationRequiresSignature(t *testing.T) {
	f := setupServer(t)
	body, _ := json.Marshal(map[string]any{"topic": "life", "text": "hi"})
	res, err := http.Post(f.srv.URL+"/v1/threads", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %v", res.Status)
	}

	// a forged signature is rejected too
	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/v1/threads", bytes.NewReader(body))
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", "deadbeef")
	res2, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res2.Body.Close()
	if res2.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %v", res2.Status)
	}
}

func TestThreadLifecycleOverHTTP(t *testing.T) {
	f := setupServer(t)

	th := createThread(t, f, "alice", "life", "T1")
	if th.ID() == "" || th.Root.Author != "alice" {
		t.Fatalf("unexpected thread: %+v", th)
	}

	// reply under the root
	var withReply models.Thread
	req := signedReq(t, http.MethodPost, f.srv.URL+"/v1/threads/"+th.ID()+"/replies", "bob", map[string]any{
		"text": "R1",
	})
	doJSON(t, req, http.StatusCreated, &withReply)
	if len(withReply.Root.Children) != 1 {
		t.Fatalf("reply missing: %+v", withReply.Root)
	}
	r1 := withReply.Root.Children[0].ID

	// react on the reply
	var reacted models.Thread
	req = signedReq(t, http.MethodPost, f.srv.URL+"/v1/threads/"+th.ID()+"/nodes/"+r1+"/reactions", "carol", map[string]any{
		"kind": "like",
	})
	doJSON(t, req, http.StatusOK, &reacted)
	if !reacted.Root.Children[0].Liked("carol") {
		t.Fatalf("reaction not applied: %+v", reacted.Root.Children[0])
	}

	// edit by someone else is forbidden
	req = signedReq(t, http.MethodPatch, f.srv.URL+"/v1/threads/"+th.ID()+"/nodes/"+r1, "mallory", map[string]any{
		"text": "hacked",
	})
	doJSON(t, req, http.StatusForbidden, nil)

	// edit by the author succeeds
	var edited models.Thread
	req = signedReq(t, http.MethodPatch, f.srv.URL+"/v1/threads/"+th.ID()+"/nodes/"+r1, "bob", map[string]any{
		"text": "R1 edited",
	})
	doJSON(t, req, http.StatusOK, &edited)
	if edited.Root.Children[0].Text != "R1 edited" {
		t.Fatalf("edit not applied: %+v", edited.Root.Children[0])
	}

	// delete the reply
	var delRes struct {
		RootDeleted bool `json:"root_deleted"`
		Removed     int  `json:"removed"`
	}
	req = signedReq(t, http.MethodDelete, f.srv.URL+"/v1/threads/"+th.ID()+"/nodes/"+r1, "bob", nil)
	doJSON(t, req, http.StatusOK, &delRes)
	if delRes.RootDeleted || delRes.Removed != 1 {
		t.Fatalf("unexpected delete result: %+v", delRes)
	}
}

func TestListAndCounts(t *testing.T) {
	f := setupServer(t)
	createThread(t, f, "alice", "life", "T1")
	createThread(t, f, "bob", "life", "T2")
	createThread(t, f, "carol", "work", "W1")

	var listing struct {
		Topic   string          `json:"topic"`
		Threads []models.Thread `json:"threads"`
	}
	res, err := http.Get(f.srv.URL + "/v1/threads?topic=life")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 got %v", res.Status)
	}
	if err := json.NewDecoder(res.Body).Decode(&listing); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(listing.Threads) != 2 {
		t.Fatalf("expected 2 life threads, got %d", len(listing.Threads))
	}

	var counts struct {
		Counts map[string]int `json:"counts"`
	}
	res2, err := http.Get(f.srv.URL + "/v1/topics/counts")
	if err != nil {
		t.Fatalf("counts failed: %v", err)
	}
	defer res2.Body.Close()
	if err := json.NewDecoder(res2.Body).Decode(&counts); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if counts.Counts["life"] != 2 || counts.Counts["work"] != 1 {
		t.Fatalf("unexpected counts: %+v", counts.Counts)
	}

	// missing topic param is a 400
	res3, err := http.Get(f.srv.URL + "/v1/threads")
	if err != nil {
		t.Fatalf("threads failed: %v", err)
	}
	defer res3.Body.Close()
	if res3.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 got %v", res3.Status)
	}
}

func TestAttachmentUpload(t *testing.T) {
	f := setupServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "pic.png")
	if err != nil {
		t.Fatalf("form build failed: %v", err)
	}
	_, _ = fw.Write([]byte("png-bytes"))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, f.srv.URL+"/v1/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-User-ID", "alice")
	req.Header.Set("X-User-Signature", auth.SignPrincipal(signKey, "alice"))

	var out struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		StorageRef string `json:"storage_ref"`
	}
	doJSON(t, req, http.StatusCreated, &out)
	if out.ID == "" || out.StorageRef == "" {
		t.Fatalf("upload response incomplete: %+v", out)
	}
	if !f.blobs.Has(out.StorageRef) {
		t.Fatal("uploaded object missing from provider")
	}
}

func TestEventStreamDeliversBroadcasts(t *testing.T) {
	f := setupServer(t)

	wsURL := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/v1/topics/life/events"
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	defer conn.Close()

	// wait for the subscription to attach before mutating
	deadline := time.Now().Add(2 * time.Second)
	for f.hub.SubscriberCount("life") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := f.svc.CreateRoot(context.Background(), "life", "alice", "hello", nil, "tok-1"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev models.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	if ev.Kind != models.EventNewMessage || ev.Thread == nil || ev.Thread.Root.ClientToken != "tok-1" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
