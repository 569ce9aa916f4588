package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/model"
)

func newTestModel(serverURL string) *Model {
	client := anthropic.NewClient(
		option.WithAPIKey("test-key"),
		option.WithBaseURL(serverURL),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client)
}

func TestGenerate_NonStreaming(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "messages")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "Hi there"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 5, "output_tokens": 2}
		}`))
	}))
	defer server.Close()

	m := newTestModel(server.URL)

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Contents: []core.Content{
			{Role: "system", Parts: []core.Part{core.TextPart{Text: "Be terse."}}},
			{Role: "user", Parts: []core.Part{core.TextPart{Text: "hello"}}},
		},
	})

	var responses []model.Response
	for r := range respCh {
		responses = append(responses, r)
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Len(t, responses, 1)
	assert.Equal(t, "msg_1", responses[0].ID)
	assert.Equal(t, "Hi there", responses[0].Content.Text())
	assert.Equal(t, "end_turn", responses[0].FinishReason)
	require.NotNil(t, responses[0].Usage)
	assert.Equal(t, 5, responses[0].Usage.PromptTokens)
	assert.Equal(t, 2, responses[0].Usage.CompletionTokens)
	assert.Equal(t, 7, responses[0].Usage.TotalTokens)

	// System prompts ride the dedicated field, not the message list.
	system, _ := received["system"].([]any)
	require.Len(t, system, 1)
	messages, _ := received["messages"].([]any)
	require.Len(t, messages, 1)
}

func TestGenerate_NonStreaming_ToolUse(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_2",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [
				{"type": "text", "text": "Listing now."},
				{"type": "tool_use", "id": "toolu_1", "name": "ls", "input": {"path": "."}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 9, "output_tokens": 4}
		}`))
	}))
	defer server.Close()

	m := newTestModel(server.URL)

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Contents: []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: "list files"}}}},
		Tools: []model.ToolDefinition{{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        "ls",
				Description: "List directory entries",
				Parameters: map[string]any{
					"type":       "object",
					"properties": map[string]any{"path": map[string]any{"type": "string"}},
					"required":   []string{"path"},
				},
			},
		}},
	})

	var final model.Response
	for r := range respCh {
		final = r
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	assert.Equal(t, "Listing now.", final.Content.Text())
	calls := []core.FunctionCall{}
	for _, p := range final.Content.Parts {
		if fc, ok := p.(core.FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	require.Len(t, calls, 1)
	assert.Equal(t, "toolu_1", calls[0].ID)
	assert.Equal(t, "ls", calls[0].Name)
	assert.JSONEq(t, `{"path":"."}`, calls[0].Arguments)
	assert.Equal(t, "tool_use", final.FinishReason)

	tools, _ := received["tools"].([]any)
	require.Len(t, tools, 1)
	tool, _ := tools[0].(map[string]any)
	assert.Equal(t, "ls", tool["name"])
}

func TestGenerate_ToolResultEmbedding(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_3",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "main.go is the entry point"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 12, "output_tokens": 6}
		}`))
	}))
	defer server.Close()

	m := newTestModel(server.URL)

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Contents: []core.Content{
			{Role: "user", Parts: []core.Part{core.TextPart{Text: "list files"}}},
			{Role: "assistant", Parts: []core.Part{
				core.FunctionCallPart{FunctionCall: core.FunctionCall{
					ID: "toolu_1", Name: "ls", Arguments: `{"path":"."}`,
				}},
			}},
			{Role: "tool", Parts: []core.Part{
				core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{
					ID: "toolu_1", Name: "ls", Response: "main.go",
				}},
			}},
		},
	})

	for range respCh {
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	// The tool result is embedded into the assistant turn right after its
	// tool_use block, so only two messages go out.
	messages, _ := received["messages"].([]any)
	require.Len(t, messages, 2)
	second, _ := messages[1].(map[string]any)
	assert.Equal(t, "assistant", second["role"])
	blocks, _ := second["content"].([]any)
	require.Len(t, blocks, 2)
	use, _ := blocks[0].(map[string]any)
	assert.Equal(t, "tool_use", use["type"])
	result, _ := blocks[1].(map[string]any)
	assert.Equal(t, "tool_result", result["type"])
	assert.Equal(t, "toolu_1", result["tool_use_id"])
}

func TestGenerate_Streaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		write := func(event, data string) {
			_, _ = w.Write([]byte("event: " + event + "\ndata: " + data + "\n\n"))
		}
		write("message_start", `{"type":"message_start","message":{"id":"msg_4","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022","content":[],"stop_reason":null,"usage":{"input_tokens":5,"output_tokens":0}}}`)
		write("content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
		write("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`)
		write("content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}`)
		write("content_block_stop", `{"type":"content_block_stop","index":0}`)
		write("message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`)
		write("message_stop", `{"type":"message_stop"}`)
	}))
	defer server.Close()

	m := newTestModel(server.URL)

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Stream:   true,
		Contents: []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: "hello"}}}},
	})

	var partials []string
	var final *model.Response
	for r := range respCh {
		if r.Partial {
			partials = append(partials, r.Content.Text())
			continue
		}
		final = &r
	}
	for err := range errCh {
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"Hel", "lo"}, partials)
	require.NotNil(t, final)
	assert.Equal(t, "msg_4", final.ID)
	assert.Equal(t, "Hello", final.Content.Text())
	assert.Equal(t, "end_turn", final.FinishReason)
	require.NotNil(t, final.Usage)
	assert.Equal(t, 5, final.Usage.PromptTokens)
	assert.Equal(t, 2, final.Usage.CompletionTokens)
}

func TestGenerate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type": "error", "error": {"type": "rate_limit_error", "message": "quota exceeded"}}`))
	}))
	defer server.Close()

	m := newTestModel(server.URL)

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Contents: []core.Content{{Role: "user", Parts: []core.Part{core.TextPart{Text: "hello"}}}},
	})

	for range respCh {
		t.Fatal("expected no responses")
	}
	err := <-errCh
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic api error")
}
