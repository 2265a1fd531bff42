package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-xcede/internal/command"
	"github.com/tendant/simple-xcede/internal/orchestrator"
	"github.com/tendant/simple-xcede/internal/process"
	"github.com/tendant/simple-xcede/pkg/schema"
)

type fakeController struct {
	started  []schema.ActionRequest
	startErr error
	stopped  int
	status   schema.StatusResponse
	debugDir string
}

func (f *fakeController) Start(req schema.ActionRequest) (schema.ActionResponse, error) {
	f.started = append(f.started, req)
	if f.startErr != nil {
		return schema.ActionResponse{}, f.startErr
	}
	return schema.ActionResponse{Handle: "h-1", Action: req.Action, Command: "xcede " + req.Action}, nil
}

func (f *fakeController) Stop() { f.stopped++ }

func (f *fakeController) Status() schema.StatusResponse { return f.status }

func (f *fakeController) DebugInfo(dir string) (command.DebugInfo, error) {
	f.debugDir = dir
	return command.DebugInfo{Executable: "xcede", ProjectRoot: dir, State: process.StateIdle, Status: "Idle"}, nil
}

func serve(t *testing.T, ctl Controller, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	NewServer(ctl, nil).Router().ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	code := 0
	ctl := &fakeController{status: schema.StatusResponse{
		State:  "succeeded",
		Status: "Succeeded",
		Job:    &schema.JobInfo{Handle: "h-1", Action: "build", ExitCode: &code},
	}}

	rec := serve(t, ctl, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got schema.StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "succeeded", got.State)
	require.NotNil(t, got.Job)
	assert.Equal(t, "build", got.Job.Action)
}

func TestStartAction(t *testing.T) {
	ctl := &fakeController{}
	rec := serve(t, ctl, http.MethodPost, "/actions/build", `{"dir":"/src/app","settings":{"scheme":"App"}}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, ctl.started, 1)
	assert.Equal(t, "build", ctl.started[0].Action)
	assert.Equal(t, "/src/app", ctl.started[0].Dir)
	assert.Equal(t, "App", ctl.started[0].Settings["scheme"])

	var got schema.ActionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "h-1", got.Handle)
}

func TestStartActionWithoutBody(t *testing.T) {
	ctl := &fakeController{}
	rec := serve(t, ctl, http.MethodPost, "/actions/test", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, ctl.started, 1)
	assert.Equal(t, "test", ctl.started[0].Action)
}

func TestStartActionBadBody(t *testing.T) {
	ctl := &fakeController{}
	rec := serve(t, ctl, http.MethodPost, "/actions/build", "{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ctl.started)
}

func TestStartActionErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown action", fmt.Errorf("%w: deploy", command.ErrUnknownAction), http.StatusNotFound},
		{"missing cli", &orchestrator.CommandNotFoundError{Name: "xcede"}, http.StatusFailedDependency},
		{"closed", orchestrator.ErrClosed, http.StatusServiceUnavailable},
		{"unsafe setting name", fmt.Errorf("%w: %q", command.ErrInvalidSetting, "scheme;id"), http.StatusBadRequest},
		{"other", fmt.Errorf("load project: boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctl := &fakeController{startErr: tt.err}
			rec := serve(t, ctl, http.MethodPost, "/actions/deploy", "")
			assert.Equal(t, tt.want, rec.Code)

			var got schema.ActionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.err.Error(), got.Error)
		})
	}
}

func TestStop(t *testing.T) {
	ctl := &fakeController{}
	rec := serve(t, ctl, http.MethodPost, "/stop", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 1, ctl.stopped)
}

func TestDebug(t *testing.T) {
	ctl := &fakeController{}
	rec := serve(t, ctl, http.MethodGet, "/debug?dir=/src/app", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/src/app", ctl.debugDir)

	var got command.DebugInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "xcede", got.Executable)
}

func TestWrongMethod(t *testing.T) {
	rec := serve(t, &fakeController{}, http.MethodGet, "/stop", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
