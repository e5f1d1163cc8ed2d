package orchestrator

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voletro/fleet/pkg/a2a"
	"github.com/voletro/fleet/pkg/agent"
)

// receivedCall is one request observed by a fake agent.
type receivedCall struct {
	Method    string
	MessageID string
	TaskID    string
	Text      string
	Files     []a2a.FilePart
	At        time.Time
}

// fakeAgent is an httptest-backed remote agent. respond maps the
// one-based call number to a JSON-RPC result object.
type fakeAgent struct {
	name string
	srv  *httptest.Server

	mu    sync.Mutex
	calls []receivedCall

	respond func(n int, call receivedCall) any
}

func newFakeAgent(t *testing.T, name string, respond func(n int, call receivedCall) any) *fakeAgent {
	t.Helper()
	fa := &fakeAgent{name: name, respond: respond}
	fa.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
			Params struct {
				Message a2a.Message `json:"message"`
			} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		text := ""
		var files []a2a.FilePart
		for _, part := range req.Params.Message.Parts {
			switch part.Kind {
			case a2a.PartKindText:
				text += part.Text
			case a2a.PartKindFile:
				if part.File != nil {
					files = append(files, *part.File)
				}
			}
		}
		call := receivedCall{
			Method:    req.Method,
			MessageID: req.Params.Message.MessageID,
			TaskID:    req.Params.Message.TaskID,
			Text:      text,
			Files:     files,
			At:        time.Now(),
		}

		fa.mu.Lock()
		fa.calls = append(fa.calls, call)
		n := len(fa.calls)
		fa.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]any{
			"jsonrpc": "2.0",
			"id":      "1",
			"result":  fa.respond(n, call),
		})
		require.NoError(t, err)
	}))
	t.Cleanup(fa.srv.Close)
	return fa
}

func (fa *fakeAgent) Calls() []receivedCall {
	fa.mu.Lock()
	defer fa.mu.Unlock()
	out := make([]receivedCall, len(fa.calls))
	copy(out, fa.calls)
	return out
}

// connect builds a non-streaming connection to the fake agent.
func (fa *fakeAgent) connect(t *testing.T) *agent.Connection {
	t.Helper()
	conn, err := agent.NewConnection(agent.ConnectionConfig{
		Card:   &a2a.AgentCard{Name: fa.name, URL: fa.srv.URL, Description: fa.name + " agent"},
		Client: a2a.NewClient(a2a.ClientConfig{Endpoint: fa.srv.URL}),
	})
	require.NoError(t, err)
	return conn
}

// registryWith registers fake agents under their names.
func registryWith(t *testing.T, fakes ...*fakeAgent) *agent.Registry {
	t.Helper()
	reg := agent.NewRegistry()
	for _, fa := range fakes {
		require.NoError(t, reg.Register(fa.name, fa.connect(t)))
	}
	return reg
}

// taskResult builds a task-shaped JSON-RPC result.
func taskResult(id string, state a2a.TaskState, text string) map[string]any {
	return map[string]any{
		"kind": "task",
		"id":   id,
		"status": map[string]any{
			"state": string(state),
			"message": map[string]any{
				"kind":      "message",
				"messageId": "resp-" + id,
				"role":      "agent",
				"parts":     []map[string]any{{"kind": "text", "text": text}},
			},
		},
	}
}

// withFileArtifact attaches a file artifact to a task-shaped result.
func withFileArtifact(result map[string]any, name, mimeType string) map[string]any {
	result["artifacts"] = []map[string]any{{
		"artifactId": "art-1",
		"name":       name,
		"parts": []map[string]any{{
			"kind": "file",
			"file": map[string]any{"name": name, "mimeType": mimeType, "uri": "file:///" + name},
		}},
	}}
	return result
}

// completed responds with the same completed task on every call.
func completed(id, text string) func(int, receivedCall) any {
	return func(int, receivedCall) any {
		return taskResult(id, a2a.TaskStateCompleted, text)
	}
}
