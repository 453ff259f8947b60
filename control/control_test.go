package control

import (
	"context"
	"errors"
	"testing"

	"newsdesk/logging"
	"newsdesk/orchestrator"
	"newsdesk/types"
)

type fakeRebuilder struct{ calls int }

func (f *fakeRebuilder) Rebuild(ctx context.Context) ([]error, error) {
	f.calls++
	return nil, nil
}

type fakeRunner struct {
	err  error
	runs []string
}

func (f *fakeRunner) RunClient(ctx context.Context, clientID string) (string, error) {
	f.runs = append(f.runs, clientID)
	return "run-1", f.err
}

func TestControlMessages(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		runErr   error
		mark     bool
		wantErr  bool
		rebuilds int
		runs     int
	}{
		{"rebuild", `{"action":"rebuild"}`, nil, true, false, 1, 0},
		{"run", `{"action":"run","client_id":"acme"}`, nil, true, false, 0, 1},
		{"run in flight", `{"action":"run","client_id":"acme"}`, orchestrator.ErrRunInFlight, true, false, 0, 1},
		{"unknown client", `{"action":"run","client_id":"nope"}`, types.ErrUnknownClient, true, false, 0, 1},
		{"store down", `{"action":"run","client_id":"acme"}`, errors.New("registry unreachable"), false, true, 0, 1},
		{"run without client", `{"action":"run"}`, nil, true, false, 0, 0},
		{"unknown action", `{"action":"explode"}`, nil, true, false, 0, 0},
		{"garbage", `not json`, nil, true, false, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sched := &fakeRebuilder{}
			runner := &fakeRunner{err: tt.runErr}
			h := NewHandler(sched, runner, logging.Discard())

			mark, err := h.HandleMessage(context.Background(), []byte(tt.message))
			if mark != tt.mark {
				t.Errorf("mark = %v, want %v", mark, tt.mark)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v", err)
			}
			if sched.calls != tt.rebuilds || len(runner.runs) != tt.runs {
				t.Errorf("rebuilds %d runs %d", sched.calls, len(runner.runs))
			}
		})
	}
}
