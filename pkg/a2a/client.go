package a2a

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/voletro/fleet/pkg/httpclient"
)

// ErrInvalidStream is returned when an agent that advertises streaming
// replies with something other than an SSE response. Callers downgrade
// the agent to non-streaming on this error.
var ErrInvalidStream = errors.New("invalid streaming response")

// AgentCardPath is the well-known discovery path on an agent's base URL.
const AgentCardPath = "/.well-known/agent-card.json"

// Client is an A2A protocol client bound to one agent endpoint.
type Client struct {
	endpoint string
	http     *httpclient.Client
	auth     *AuthCredentials
}

// AuthCredentials holds optional request authentication.
type AuthCredentials struct {
	Type         string // "bearer" or "apiKey"
	Token        string
	APIKey       string
	APIKeyHeader string // default "X-API-Key"
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Endpoint is the agent's JSON-RPC base URL. Required.
	Endpoint string

	// MaxRetries bounds transport-level retries (HTTP 5xx/429).
	MaxRetries int

	Auth *AuthCredentials
}

// NewClient creates a client for one agent endpoint.
func NewClient(cfg ClientConfig) *Client {
	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		http: httpclient.New(
			httpclient.WithMaxRetries(cfg.MaxRetries),
		),
		auth: cfg.Auth,
	}
}

// Endpoint returns the agent's base URL.
func (c *Client) Endpoint() string { return c.endpoint }

// ============================================================================
// DISCOVERY
// ============================================================================

// Discover fetches the agent card from the well-known path.
func (c *Client) Discover(ctx context.Context) (*AgentCard, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+AgentCardPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch agent card: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("agent card fetch failed: %s - %s", resp.Status, string(body))
	}

	var card AgentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("failed to decode agent card: %w", err)
	}
	return &card, nil
}

// ============================================================================
// MESSAGE SENDING
// ============================================================================

// SendMessage sends a message via message/send and returns the decoded
// result union. The context deadline bounds the whole call.
func (c *Client) SendMessage(ctx context.Context, params *MessageSendParams) (*SendResult, error) {
	raw, err := c.call(ctx, MethodMessageSend, params)
	if err != nil {
		return nil, err
	}
	return decodeResult(raw)
}

// StreamMessage sends a message via message/stream and returns a channel
// of decoded events. The channel is closed after the final event, on
// stream error, or when ctx is cancelled.
func (c *Client) StreamMessage(ctx context.Context, params *MessageSendParams) (<-chan StreamEvent, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: jsonrpcVersion,
		ID:      uuid.NewString(),
		Method:  MethodMessageStream,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	c.setAuthHeaders(req)

	// Streaming bypasses the retrying client: a half-consumed stream
	// cannot be replayed.
	resp, err := c.http.Unwrap().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("stream request failed: %s - %s", resp.Status, string(body))
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: content-type %q", ErrInvalidStream, ct)
	}

	events := make(chan StreamEvent, 16)
	go c.consumeStream(ctx, resp, events)
	return events, nil
}

// consumeStream parses SSE frames into decoded events until the stream
// terminates. Each data frame carries a full JSON-RPC response.
func (c *Client) consumeStream(ctx context.Context, resp *http.Response, events chan<- StreamEvent) {
	defer close(events)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case line == "" && data.Len() > 0:
			event := c.decodeFrame(data.String())
			data.Reset()

			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
			if event.Final() {
				return
			}
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		select {
		case events <- StreamEvent{Err: fmt.Errorf("stream read failed: %w", err)}:
		case <-ctx.Done():
		}
	}
}

func (c *Client) decodeFrame(data string) StreamEvent {
	var rpcResp rpcResponse
	if err := json.Unmarshal([]byte(data), &rpcResp); err != nil {
		return StreamEvent{Err: fmt.Errorf("%w: %v", ErrInvalidStream, err)}
	}
	if rpcResp.Error != nil {
		return StreamEvent{Err: rpcResp.Error}
	}

	event, err := decodeStreamEvent(rpcResp.Result)
	if err != nil {
		return StreamEvent{Err: fmt.Errorf("%w: %v", ErrInvalidStream, err)}
	}
	return event
}

// ============================================================================
// TASK OPERATIONS
// ============================================================================

// GetTask fetches the current state of a task.
func (c *Client) GetTask(ctx context.Context, taskID string) (*Task, error) {
	raw, err := c.call(ctx, MethodTasksGet, TaskQueryParams{ID: taskID})
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

// CancelTask requests cancellation of a running task.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*Task, error) {
	raw, err := c.call(ctx, MethodTasksCancel, TaskIDParams{ID: taskID})
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

// ============================================================================
// TRANSPORT
// ============================================================================

// call executes one JSON-RPC request/response round-trip.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: jsonrpcVersion,
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s failed: %s - %s", method, resp.Status, string(respBody))
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	if c.auth == nil {
		return
	}

	switch c.auth.Type {
	case "bearer":
		if c.auth.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.auth.Token)
		}
	case "apiKey":
		header := c.auth.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		if c.auth.APIKey != "" {
			req.Header.Set(header, c.auth.APIKey)
		}
	}
}

// NewUserMessage builds a user message with a fresh message id.
func NewUserMessage(contextID, taskID, text string) Message {
	return Message{
		Kind:      KindMessage,
		MessageID: uuid.NewString(),
		ContextID: contextID,
		TaskID:    taskID,
		Role:      RoleUser,
		Parts:     []Part{{Kind: PartKindText, Text: text}},
	}
}
