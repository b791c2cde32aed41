package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanpawarit/Chative-Travel-Router/agent/agents/router"
	contractx "github.com/tanpawarit/Chative-Travel-Router/agent/contract"
	"github.com/tanpawarit/Chative-Travel-Router/agent/ledger"
	statex "github.com/tanpawarit/Chative-Travel-Router/agent/state"
)

type fakeStepper struct {
	mu    sync.Mutex
	out   router.TurnOutput
	err   error
	keys  []statex.Key
	texts []string
}

func (f *fakeStepper) Step(_ context.Context, key statex.Key, text string) (router.TurnOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.texts = append(f.texts, text)
	return f.out, f.err
}

type fakeHistory struct {
	entries []ledger.Entry
	err     error
	limit   int
}

func (f *fakeHistory) List(_ context.Context, key statex.Key, limit int) ([]ledger.Entry, error) {
	f.limit = limit
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return f.entries, f.err
}

const messagesPath = "/v1/tenants/acme/users/u1/sessions/s1/messages"

func serve(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := NewServer(h)
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestPostMessage(t *testing.T) {
	t.Parallel()

	stepper := &fakeStepper{out: router.TurnOutput{
		Messages:     []contractx.Message{{Role: contractx.RoleAssistant, Content: "Here are three hotels.", Worker: "hotel"}},
		Halted:       true,
		State:        "await_input",
		ActiveWorker: "hotel",
	}}
	rec := serve(t, NewHandler(stepper, &fakeHistory{}), http.MethodPost, messagesPath, `{"text":"hotels in Kyoto"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages     []contractx.Message `json:"messages"`
		Halted       bool                `json:"halted"`
		Paused       bool                `json:"paused"`
		ActiveWorker string              `json:"active_worker"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Halted)
	assert.False(t, resp.Paused)
	assert.Equal(t, "hotel", resp.ActiveWorker)
	require.Len(t, resp.Messages, 1)
	assert.Equal(t, "Here are three hotels.", resp.Messages[0].Content)

	require.Len(t, stepper.keys, 1)
	assert.Equal(t, statex.NewKey("acme", "u1", "s1"), stepper.keys[0])
	assert.Equal(t, "hotels in Kyoto", stepper.texts[0])
}

func TestPostMessagePaused(t *testing.T) {
	t.Parallel()

	stepper := &fakeStepper{out: router.TurnOutput{State: "dining"}}
	rec := serve(t, NewHandler(stepper, &fakeHistory{}), http.MethodPost, messagesPath, `{}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paused":true`)
	assert.Equal(t, "", stepper.texts[0])
}

func TestPostMessageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", fmt.Errorf("%w: tenant id is empty", contractx.ErrValidation), http.StatusBadRequest, "tenant id is empty"},
		{"nothing to resume", router.ErrNothingToResume, http.StatusConflict, router.ErrNothingToResume.Error()},
		{"turn failed", fmt.Errorf("%w: step=hotel: %w", contractx.ErrTurnFailed, errors.New("connection reset")), http.StatusInternalServerError, contractx.FailureReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := serve(t, NewHandler(&fakeStepper{err: tt.err}, &fakeHistory{}), http.MethodPost, messagesPath, `{"text":"hi"}`)
			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}

func TestPostMessageBadBody(t *testing.T) {
	t.Parallel()

	stepper := &fakeStepper{}
	rec := serve(t, NewHandler(stepper, &fakeHistory{}), http.MethodPost, messagesPath, `{"text":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stepper.keys)
}

func TestListMessages(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{entries: []ledger.Entry{
		{Seq: 1, Role: contractx.RoleUser, Content: "hotels in Kyoto"},
		{Seq: 2, Role: contractx.RoleAssistant, Worker: "hotel", Content: "Here are three hotels."},
	}}
	rec := serve(t, NewHandler(&fakeStepper{}, history), http.MethodGet, messagesPath+"?limit=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Messages []ledger.Entry `json:"messages"`
		HasMore  bool           `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Messages, 2)
	assert.True(t, resp.HasMore)
	assert.Equal(t, 2, history.limit)
}

func TestListMessagesDefaultsAndFailures(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{}
	rec := serve(t, NewHandler(&fakeStepper{}, history), http.MethodGet, messagesPath+"?limit=abc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, history.limit)
	assert.Contains(t, rec.Body.String(), `"messages":[]`)

	failing := &fakeHistory{err: errors.New("db down")}
	rec = serve(t, NewHandler(&fakeStepper{}, failing), http.MethodGet, messagesPath, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestListMessagesInvalidKey(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewHandler(&fakeStepper{}, &fakeHistory{}), http.MethodGet, "/v1/tenants/%20/users/u1/sessions/s1/messages", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewHandler(&fakeStepper{}, &fakeHistory{}), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}
