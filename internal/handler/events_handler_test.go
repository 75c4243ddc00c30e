package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"inputfeed/internal/repository"
	"inputfeed/internal/transport/httpdto"
	"inputfeed/internal/websocket"

	"github.com/gin-gonic/gin"
)

type stubEvents struct {
	rows []repository.EventRow
	err  error
	tag  string
}

func (s *stubEvents) Insert(context.Context, ...repository.EventRow) error { return nil }

func (s *stubEvents) Recent(_ context.Context, tag string, limit int) ([]repository.EventRow, error) {
	s.tag = tag
	if s.err != nil {
		return nil, s.err
	}
	if len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func (s *stubEvents) Count(context.Context) (int, error) { return len(s.rows), nil }

func serveEvents(t *testing.T, repo repository.EventRepository, target string) (*httptest.ResponseRecorder, httpdto.Response[json.RawMessage]) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/events", NewEventsHandler(repo, websocket.NewAuthorizer(nil)).List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))

	var body httpdto.Response[json.RawMessage]
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return w, body
}

func TestListRepositoryFailure(t *testing.T) {
	w, body := serveEvents(t, &stubEvents{err: errors.New("db gone")}, "/v1/events")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if body.Success || body.Code != "INTERNAL_ERROR" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestListFiltersAndLimits(t *testing.T) {
	repo := &stubEvents{rows: []repository.EventRow{
		{Tag: "KeyPress", Payload: json.RawMessage(`{"n":1}`)},
		{Tag: "KeyPress", Payload: json.RawMessage(`{"n":2}`)},
	}}
	w, body := serveEvents(t, repo, "/v1/events?type=KeyPress&limit=1")
	if w.Code != http.StatusOK || !body.Success {
		t.Fatalf("status = %d body %+v", w.Code, body)
	}
	if repo.tag != "KeyPress" {
		t.Fatalf("tag filter not passed through: %q", repo.tag)
	}
	var events httpdto.EventsResponse
	if err := json.Unmarshal(body.Data, &events); err != nil {
		t.Fatalf("decode events: %v", err)
	}
	if events.Count != 1 || string(events.Events[0]) != `{"n":1}` {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestListRejectsUnknownType(t *testing.T) {
	w, body := serveEvents(t, &stubEvents{}, "/v1/events?type=Pen")
	if w.Code != http.StatusBadRequest || body.Code != "INVALID_TYPES" {
		t.Fatalf("status = %d body %+v", w.Code, body)
	}
}
