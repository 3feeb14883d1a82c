package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/repcoach/internal/analysis"
	"github.com/ayusman/repcoach/internal/pose"
	"github.com/ayusman/repcoach/internal/source"
)

func pressFrames() []source.Frame {
	return source.Sequence(
		[][]pose.Keypoint{
			source.ElbowAt(60), source.ElbowAt(90), source.ElbowAt(172),
			source.ElbowAt(120), source.ElbowAt(65),
		},
		[]float64{0, 1, 2, 2.1, 2.2},
	)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("encoding body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func createSession(t *testing.T, s *Server, exercise string) createSessionResponse {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/api/sessions", map[string]string{"exercise": exercise})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session status = %d, want %d: %s", rec.Code, http.StatusCreated, rec.Body)
	}
	return decode[createSessionResponse](t, rec)
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/api/health", nil)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}

		response := decode[map[string]any](t, rec)
		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}
		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
			rec := do(t, s, method, "/api/health", nil)
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	rec := do(t, s, http.MethodGet, "/api/nonexistent", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	s := New(Config{})

	rec := do(t, s, http.MethodOptions, "/api/sessions", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("expected permissive Access-Control-Allow-Origin")
	}
}

func TestServer_RequestLogging(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := New(Config{Logger: log})

	rec := do(t, s, http.MethodGet, "/api/sessions/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	out := buf.String()
	for _, want := range []string{"route=/api/sessions/{id}", "status=404", "method=GET", "request_id="} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q:\n%s", want, out)
		}
	}
}

func TestServer_Exercises(t *testing.T) {
	t.Run("lists every registered profile", func(t *testing.T) {
		s := New(Config{})
		rec := do(t, s, http.MethodGet, "/api/exercises", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		resp := decode[listExercisesResponse](t, rec)
		if len(resp.Exercises) != s.Registry().Len() {
			t.Errorf("expected %d exercises, got %d", s.Registry().Len(), len(resp.Exercises))
		}
	})

	t.Run("restricted to the configured catalog", func(t *testing.T) {
		s := New(Config{Exercises: []string{"squat", "plank"}})
		resp := decode[listExercisesResponse](t, do(t, s, http.MethodGet, "/api/exercises", nil))
		if len(resp.Exercises) != 2 || resp.Exercises[0].ID != "squat" || resp.Exercises[1].ID != "plank" {
			t.Errorf("unexpected exercises: %+v", resp.Exercises)
		}

		if rec := do(t, s, http.MethodGet, "/api/exercises/pushup", nil); rec.Code != http.StatusNotFound {
			t.Errorf("unoffered exercise: expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("returns the full profile", func(t *testing.T) {
		s := New(Config{})
		rec := do(t, s, http.MethodGet, "/api/exercises/military-press", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		p := decode[map[string]any](t, rec)
		if p["primary_joint"] != pose.ElbowFlexion {
			t.Errorf("primary_joint = %v, want %s", p["primary_joint"], pose.ElbowFlexion)
		}
	})

	t.Run("unknown exercise is 404", func(t *testing.T) {
		s := New(Config{})
		if rec := do(t, s, http.MethodGet, "/api/exercises/moonwalk", nil); rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_SessionLifecycle(t *testing.T) {
	s := New(Config{})
	created := createSession(t, s, "military-press")

	if !created.Known || created.Exercise != "military-press" || created.ID == "" {
		t.Fatalf("unexpected create response: %+v", created)
	}

	base := "/api/sessions/" + created.ID
	var results []analysis.Result
	for _, f := range pressFrames() {
		rec := do(t, s, http.MethodPost, base+"/frames", f)
		if rec.Code != http.StatusOK {
			t.Fatalf("frame status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body)
		}
		results = append(results, decode[analysis.Result](t, rec))
	}

	for i, res := range results {
		if res.RepCompleted != (i == 3) {
			t.Errorf("frame %d: rep_completed = %v", i, res.RepCompleted)
		}
	}
	if results[4].Count != 1 {
		t.Errorf("rep_count = %d, want 1", results[4].Count)
	}

	status := decode[sessionStatus](t, do(t, s, http.MethodGet, base, nil))
	if status.Count != 1 || status.Phase != analysis.Eccentric {
		t.Errorf("unexpected status: %+v", status)
	}

	rec := do(t, s, http.MethodPost, base+"/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d, want %d", rec.Code, http.StatusOK)
	}
	if status := decode[sessionStatus](t, rec); status.Count != 0 || status.Phase != analysis.None {
		t.Errorf("status after reset: %+v", status)
	}

	if rec := do(t, s, http.MethodDelete, base, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec := do(t, s, http.MethodGet, base, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if rec := do(t, s, http.MethodDelete, base, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestServer_UnknownExerciseIsNeutral(t *testing.T) {
	s := New(Config{})
	created := createSession(t, s, "moonwalk")
	if created.Known {
		t.Fatal("moonwalk should not be known")
	}

	for _, f := range pressFrames() {
		rec := do(t, s, http.MethodPost, "/api/sessions/"+created.ID+"/frames", f)
		res := decode[analysis.Result](t, rec)
		if res.Count != 0 || len(res.Violations) != 0 || res.Engagement != analysis.NeutralEngagement {
			t.Errorf("neutral session produced %+v", res)
		}
	}
}

func TestServer_UnofferedExerciseIsNeutral(t *testing.T) {
	s := New(Config{Exercises: []string{"squat"}})
	if created := createSession(t, s, "military-press"); created.Known {
		t.Error("exercise outside the catalog should use the neutral profile")
	}
}

func TestServer_CreateSessionValidation(t *testing.T) {
	s := New(Config{})

	if rec := do(t, s, http.MethodPost, "/api/sessions", "{"); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if rec := do(t, s, http.MethodPost, "/api/sessions", map[string]string{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing exercise: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestServer_SessionLimit(t *testing.T) {
	s := New(Config{MaxSessions: 1})
	createSession(t, s, "squat")

	rec := do(t, s, http.MethodPost, "/api/sessions", map[string]string{"exercise": "squat"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestServer_FrameErrors(t *testing.T) {
	s := New(Config{})
	created := createSession(t, s, "military-press")
	path := "/api/sessions/" + created.ID + "/frames"

	t.Run("malformed keypoint buffer", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, path, source.Frame{Keypoints: []float64{0.5, 0.5}, TimestampMS: 10})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
		resp := decode[map[string]string](t, rec)
		if !strings.Contains(resp["error"], "multiple of 3") {
			t.Errorf("error = %q", resp["error"])
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		if rec := do(t, s, http.MethodPost, path, "not json"); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		rec := do(t, s, http.MethodPost, "/api/sessions/nope/frames", pressFrames()[0])
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})

	if got := s.sessions.len(); got != 1 {
		t.Errorf("sessions = %d, want 1", got)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := New(Config{})
	created := createSession(t, s, "military-press")
	for _, f := range pressFrames() {
		do(t, s, http.MethodPost, "/api/sessions/"+created.ID+"/frames", f)
	}
	do(t, s, http.MethodPost, "/api/sessions/"+created.ID+"/frames", source.Frame{Keypoints: []float64{1}})

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`repcoach_frames_total{exercise="military-press"} 5`,
		`repcoach_reps_total{exercise="military-press"} 1`,
		`repcoach_frame_errors_total{reason="input_shape"} 1`,
		`repcoach_active_sessions 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestSessionManager_Expire(t *testing.T) {
	s := New(Config{IdleTimeout: time.Minute})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.sessions.now = func() time.Time { return now }

	stale := createSession(t, s, "squat")
	staleLive, err := s.sessions.get(stale.ID)
	if err != nil {
		t.Fatalf("get stale session: %v", err)
	}
	now = now.Add(45 * time.Second)
	fresh := createSession(t, s, "squat")
	now = now.Add(30 * time.Second)

	expired := s.sessions.expire()
	if len(expired) != 1 || expired[0] != stale.ID {
		t.Fatalf("expired = %v, want [%s]", expired, stale.ID)
	}
	if !staleLive.closed() {
		t.Error("expired session should be closed")
	}
	freshLive, err := s.sessions.get(fresh.ID)
	if err != nil {
		t.Fatalf("fresh session should survive: %v", err)
	}
	if freshLive.closed() {
		t.Error("fresh session should stay open")
	}
}

func TestSessionManager_NoIdleTimeout(t *testing.T) {
	s := New(Config{})
	createSession(t, s, "squat")
	s.sessions.now = func() time.Time { return time.Now().Add(24 * time.Hour) }

	if expired := s.sessions.expire(); len(expired) != 0 {
		t.Errorf("expired = %v, want none", expired)
	}
}
