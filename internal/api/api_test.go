package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/irislabs/iris/internal/models"
)

type fakeDialog struct {
	intent  models.Intent
	err     error
	events  int
	started int
}

func (f *fakeDialog) HandleEvent(ctx context.Context, ch models.Channel, recipientID, text, localeHint string) (models.Intent, error) {
	f.events++
	return f.intent, f.err
}

func (f *fakeDialog) HandleConversationStarted(ctx context.Context, ch models.Channel, recipientID, localeHint string) error {
	f.started++
	return f.err
}

func post(t *testing.T, srv *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHandleEvent(t *testing.T) {
	d := &fakeDialog{intent: models.IntentGreeting}
	srv := NewServer(d)

	w := post(t, srv, "/v1/events", `{"channel":"slack","recipient_id":"U1","message":"hola"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Status string `json:"status"`
		Result struct {
			Intent models.Intent `json:"intent"`
		} `json:"result"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Result.Intent != models.IntentGreeting {
		t.Errorf("response = %+v", resp)
	}
	if d.events != 1 {
		t.Errorf("dialog calls = %d", d.events)
	}
}

func TestHandleEventValidation(t *testing.T) {
	srv := NewServer(&fakeDialog{})

	if w := post(t, srv, "/v1/events", `not json`); w.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON status = %d", w.Code)
	}
	if w := post(t, srv, "/v1/events", `{"channel":"slack","message":"x"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing recipient status = %d", w.Code)
	}
	if w := post(t, srv, "/v1/events", `{"channel":"slack","recipient_id":"U1"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing message status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d", w.Code)
	}
}

func TestHandleEventUnknownChannel(t *testing.T) {
	srv := NewServer(&fakeDialog{err: models.ErrUnknownChannel})
	w := post(t, srv, "/v1/events", `{"channel":"telegram","recipient_id":"U1","message":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown channel status = %d", w.Code)
	}
}

func TestConversationStarted(t *testing.T) {
	d := &fakeDialog{}
	srv := NewServer(d)

	w := post(t, srv, "/v1/events/conversation-started", `{"channel":"slack","recipient_id":"U1","locale":"en_US"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if d.started != 1 {
		t.Errorf("started calls = %d", d.started)
	}

	if w := post(t, srv, "/v1/events/conversation-started", `{"channel":"slack"}`); w.Code != http.StatusBadRequest {
		t.Errorf("missing recipient status = %d", w.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := NewServer(&fakeDialog{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "healthy") {
		t.Errorf("health body = %s", w.Body.String())
	}
}
