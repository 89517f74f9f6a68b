package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/model"
)

func TestModel_Generate(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest",
"content":[{"type":"text","text":"评审通过"}],"stop_reason":"end_turn",
"usage":{"input_tokens":12,"output_tokens":4}}`)
	}))
	defer ts.Close()

	client := anthropic.NewClient(
		option.WithBaseURL(ts.URL),
		option.WithAPIKey("test-key"),
		option.WithMaxRetries(0),
	)
	m := NewModelFromClient(&client, func(o *Options) { o.Model = anthropic.ModelClaude3_5HaikuLatest })

	respCh, errCh := m.Generate(context.Background(), model.Request{
		Instructions: "你是评审专家",
		Messages: []core.Message{
			{Role: core.RoleSystem, Text: "简洁回答"},
			core.UserMessage("请评审"),
		},
	})
	var resps []model.Response
	for r := range respCh {
		resps = append(resps, r)
	}
	require.NoError(t, <-errCh)

	require.Len(t, resps, 1)
	assert.Equal(t, "评审通过", resps[0].Text)
	assert.Equal(t, "end_turn", resps[0].FinishReason)
	require.NotNil(t, resps[0].Usage)
	assert.Equal(t, 16, resps[0].Usage.TotalTokens)

	// system messages are lifted out of the message list
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 1)
	system, ok := body["system"].([]any)
	require.True(t, ok)
	assert.Len(t, system, 2)
	assert.Equal(t, "anthropic", m.Info().Provider)
}
