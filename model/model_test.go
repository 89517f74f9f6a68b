package model

import (
	"context"
	"testing"

	"github.com/hupe1980/agentrelay/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generate(t *testing.T, m Model, req Request) ([]Response, error) {
	t.Helper()
	respCh, errCh := m.Generate(context.Background(), req)
	var out []Response
	for r := range respCh {
		out = append(out, r)
	}
	return out, <-errCh
}

func TestMockModel_Streaming(t *testing.T) {
	m := NewMockModel("mock")
	m.AddResponse("hi", "hello there friend")

	resps, err := generate(t, m, Request{
		Messages: []core.Message{core.UserMessage("hi")},
		Stream:   true,
	})
	require.NoError(t, err)

	require.Len(t, resps, 4)
	assert.True(t, resps[0].Partial)
	assert.Equal(t, "hello ", resps[0].Text)
	last := resps[len(resps)-1]
	assert.False(t, last.Partial)
	assert.Equal(t, "hello there friend", last.Text)
}

func TestMockModel_DefaultReply(t *testing.T) {
	m := NewMockModel("mock")

	resps, err := generate(t, m, Request{
		Messages: []core.Message{core.UserMessage("unknown"), core.AgentMessage("a", "ignored")},
	})
	require.NoError(t, err)
	require.Len(t, resps, 1)
	assert.Equal(t, "Mock response to: unknown", resps[0].Text)
	assert.Equal(t, Info{Name: "mock", Provider: "mock"}, m.Info())
}

func TestMockModel_NoMessages(t *testing.T) {
	_, err := generate(t, NewMockModel("mock"), Request{})
	assert.Error(t, err)
}

func TestMockModel_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMockModel("mock")
	m.AddResponse("hi", "a b c d e f g h i j k l m n o p q r s t u v w x y z")

	respCh, errCh := m.Generate(ctx, Request{Messages: []core.Message{core.UserMessage("hi")}, Stream: true})
	for range respCh {
	}
	// either everything fit in the buffer before cancellation was seen or
	// the context error is reported
	if err := <-errCh; err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
}
