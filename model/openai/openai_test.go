package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	client := openai.NewClient(
		option.WithBaseURL(ts.URL+"/v1/"),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	return NewModelFromClient(&client, func(o *Options) { o.Model = "deepseek-chat" })
}

func drain(t *testing.T, m *Model, req model.Request) ([]model.Response, error) {
	t.Helper()
	respCh, errCh := m.Generate(context.Background(), req)
	var out []model.Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func TestModel_Generate(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cmpl-1","object":"chat.completion","created":0,"model":"deepseek-chat",
"choices":[{"index":0,"message":{"role":"assistant","content":"你好"},"finish_reason":"stop"}],
"usage":{"prompt_tokens":9,"completion_tokens":2,"total_tokens":11}}`)
	})

	resps, err := drain(t, m, model.Request{
		Instructions: "你是测试助手",
		Messages:     []core.Message{core.UserMessage("hi")},
	})
	require.NoError(t, err)
	require.Len(t, resps, 1)
	assert.Equal(t, "你好", resps[0].Text)
	assert.False(t, resps[0].Partial)
	require.NotNil(t, resps[0].Usage)
	assert.Equal(t, 11, resps[0].Usage.TotalTokens)

	assert.Equal(t, "deepseek-chat", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "deepseek-chat", m.Info().Name)
}

func TestModel_GenerateStreaming(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			`{"id":"c1","object":"chat.completion.chunk","created":0,"model":"deepseek-chat","choices":[{"index":0,"delta":{"content":"你"}}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":0,"model":"deepseek-chat","choices":[{"index":0,"delta":{"content":"好"},"finish_reason":"stop"}]}`,
			`{"id":"c1","object":"chat.completion.chunk","created":0,"model":"deepseek-chat","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
			`[DONE]`,
		} {
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
	})

	resps, err := drain(t, m, model.Request{Messages: []core.Message{core.UserMessage("hi")}, Stream: true})
	require.NoError(t, err)
	require.Len(t, resps, 3)
	assert.True(t, resps[0].Partial)
	assert.Equal(t, "你", resps[0].Text)
	assert.Equal(t, "好", resps[1].Text)

	final := resps[2]
	assert.False(t, final.Partial)
	assert.Equal(t, "你好", final.Text)
	assert.Equal(t, "stop", final.FinishReason)
	require.NotNil(t, final.Usage)
	assert.Equal(t, 7, final.Usage.TotalTokens)
}

func TestModel_GenerateAPIError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
	})

	resps, err := drain(t, m, model.Request{Messages: []core.Message{core.UserMessage("hi")}})
	assert.Empty(t, resps)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai api error")
}
