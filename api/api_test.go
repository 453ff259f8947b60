package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"newsdesk/logging"
	"newsdesk/orchestrator"
	"newsdesk/schedule"
	"newsdesk/types"

	"github.com/gin-gonic/gin"
)

type fakeRuns struct {
	inFlight map[string]bool
	known    map[string]bool
	broken   bool
}

func (f *fakeRuns) RunClient(ctx context.Context, clientID string) (string, error) {
	switch {
	case f.broken:
		return "", errors.New("registry unreachable")
	case !f.known[clientID]:
		return "", fmt.Errorf("client %q: %w", clientID, types.ErrUnknownClient)
	case f.inFlight[clientID]:
		return "run-0", fmt.Errorf("client %s: %w", clientID, orchestrator.ErrRunInFlight)
	}
	f.inFlight[clientID] = true
	return "run-1", nil
}

type fakeStatus struct{}

func (fakeStatus) Status() types.StatusResponse {
	return types.StatusResponse{
		Active: []types.RunSnapshot{{RunID: "run-1", ClientID: "acme", State: types.StateFetching}},
		Recent: []types.RunSnapshot{},
	}
}

type fakeSchedule struct {
	rebuilds int
	fail     bool
}

func (f *fakeSchedule) Rebuild(ctx context.Context) ([]error, error) {
	if f.fail {
		return nil, errors.New("registry unreachable")
	}
	f.rebuilds++
	return []error{errors.New(`client "broken": bad spec`)}, nil
}

func (f *fakeSchedule) Entries() []schedule.Entry {
	return []schedule.Entry{{TaskName: "task_for_acme", ClientID: "acme", Spec: "0 7 * * *", Next: time.Date(2024, 5, 2, 7, 0, 0, 0, time.UTC)}}
}

func newTestRouter(runs RunService, sched ScheduleService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(Deps{Runs: runs, Status: fakeStatus{}, Schedule: sched, Log: logging.Discard()})
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestHealth(t *testing.T) {
	w := do(newTestRouter(&fakeRuns{}, &fakeSchedule{}), http.MethodGet, "/api/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
}

func TestRunClient(t *testing.T) {
	runs := &fakeRuns{known: map[string]bool{"acme": true}, inFlight: map[string]bool{}}
	r := newTestRouter(runs, &fakeSchedule{})

	w := do(r, http.MethodPost, "/api/clients/acme/run")
	if w.Code != http.StatusAccepted {
		t.Fatalf("first run status %d: %s", w.Code, w.Body)
	}
	var res RunResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.RunID != "run-1" || res.Status != "started" {
		t.Errorf("response %+v", res)
	}

	if w := do(r, http.MethodPost, "/api/clients/acme/run"); w.Code != http.StatusConflict {
		t.Errorf("second run status %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/clients/ghost/run"); w.Code != http.StatusNotFound {
		t.Errorf("unknown client status %d", w.Code)
	}

	runs.broken = true
	if w := do(r, http.MethodPost, "/api/clients/acme/run"); w.Code != http.StatusInternalServerError {
		t.Errorf("broken registry status %d", w.Code)
	}
}

func TestStatus(t *testing.T) {
	w := do(newTestRouter(&fakeRuns{}, &fakeSchedule{}), http.MethodGet, "/api/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var res types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Active) != 1 || res.Active[0].State != types.StateFetching {
		t.Errorf("response %+v", res)
	}
}

func TestSchedule(t *testing.T) {
	sched := &fakeSchedule{}
	r := newTestRouter(&fakeRuns{}, sched)

	w := do(r, http.MethodGet, "/api/schedule")
	if w.Code != http.StatusOK {
		t.Fatalf("list status %d", w.Code)
	}
	var list struct {
		Entries []schedule.Entry `json:"entries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Entries) != 1 || list.Entries[0].TaskName != "task_for_acme" {
		t.Errorf("entries %+v", list.Entries)
	}

	w = do(r, http.MethodPost, "/api/schedule/rebuild")
	if w.Code != http.StatusOK || sched.rebuilds != 1 {
		t.Fatalf("rebuild status %d, rebuilds %d", w.Code, sched.rebuilds)
	}
	var rebuilt struct {
		Rejected []string `json:"rejected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rebuilt); err != nil {
		t.Fatal(err)
	}
	if len(rebuilt.Rejected) != 1 {
		t.Errorf("rejected %v", rebuilt.Rejected)
	}

	sched.fail = true
	if w := do(r, http.MethodPost, "/api/schedule/rebuild"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("failed rebuild status %d", w.Code)
	}
}
