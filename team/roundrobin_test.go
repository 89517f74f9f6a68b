package team

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hupe1980/agentrelay/agent"
	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/testutil"
	"github.com/hupe1980/agentrelay/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPair(t *testing.T, producer, reviewer *testutil.ScriptedModel, optFns ...func(o *Options)) *RoundRobin {
	t.Helper()
	rr, err := NewRoundRobin([]Participant{
		agent.NewEndpoint("primary", producer),
		agent.NewEndpoint("critic", reviewer),
	}, optFns...)
	require.NoError(t, err)
	return rr
}

func kinds(events []core.RawEvent) []core.RawKind {
	out := make([]core.RawKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestNewRoundRobin_Empty(t *testing.T) {
	_, err := NewRoundRobin(nil)
	assert.ErrorIs(t, err, core.ErrEmptyTeam)
}

func TestRoundRobin_ReviewerTerminates(t *testing.T) {
	producer := testutil.NewScriptedModel(testutil.Stream("用例", "一"))
	reviewer := testutil.NewScriptedModel(testutil.Stream("评审", "通过"))
	rr := newPair(t, producer, reviewer, func(o *Options) { o.Termination = SourceMatch("critic") })

	assert.Equal(t, StateReady, rr.State())
	assert.Equal(t, []string{"primary", "critic"}, rr.Participants())

	events := testutil.CollectRaw(t, rr.Run(context.Background(), "设计登录测试用例"))

	assert.Equal(t, []core.RawKind{
		core.RawFragment, core.RawFragment, core.RawFinal,
		core.RawFragment, core.RawFragment, core.RawFinal,
	}, kinds(events))
	assert.Equal(t, "primary", events[2].Source)
	assert.Equal(t, "用例一", events[2].Text)
	assert.Equal(t, "critic", events[5].Source)
	assert.Equal(t, StateDone, rr.State())

	msgs := rr.Transcript().Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "设计登录测试用例", msgs[0].Text)
	assert.Equal(t, "primary", msgs[1].Author)
	assert.Equal(t, "critic", msgs[2].Author)

	// the reviewer sees the producer's turn as attributed user input
	reqs := reviewer.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, "[primary]\n用例一", reqs[0].Messages[1].Text)
}

func TestRoundRobin_LoopsUntilTextMention(t *testing.T) {
	producer := testutil.NewScriptedModel(testutil.Reply("draft 1"), testutil.Reply("draft 2"))
	reviewer := testutil.NewScriptedModel(testutil.Reply("needs work"), testutil.Reply("APPROVE"))
	rr := newPair(t, producer, reviewer, func(o *Options) { o.Termination = TextMention("APPROVE") })

	events := testutil.CollectRaw(t, rr.Run(context.Background(), "task"))

	var sources []string
	for _, ev := range events {
		if ev.Kind == core.RawFinal {
			sources = append(sources, ev.Source)
		}
	}
	assert.Equal(t, []string{"primary", "critic", "primary", "critic"}, sources)
	assert.Equal(t, StateDone, rr.State())
}

func TestRoundRobin_Liveness(t *testing.T) {
	producer := testutil.NewScriptedModel()
	reviewer := testutil.NewScriptedModel()
	rr := newPair(t, producer, reviewer, func(o *Options) {
		o.Termination = Never()
		o.MaxTurns = 5
	})

	events := testutil.CollectRaw(t, rr.Run(context.Background(), "task"))

	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, core.RawFailure, last.Kind)
	assert.ErrorIs(t, last.Err, core.ErrLivenessViolation)
	assert.Equal(t, core.CodeLiveness, core.ErrorCode(last.Err))
	assert.Equal(t, 5, producer.Calls()+reviewer.Calls())
	assert.Equal(t, StateFailed, rr.State())
}

func TestRoundRobin_ZeroMaxTurnsKeepsCap(t *testing.T) {
	producer := testutil.NewScriptedModel()
	reviewer := testutil.NewScriptedModel()
	rr := newPair(t, producer, reviewer, func(o *Options) {
		o.Termination = SourceMatch("reviewer") // matches nobody
		o.MaxTurns = 0
	})

	events := testutil.CollectRaw(t, rr.Run(context.Background(), "task"))

	require.NotEmpty(t, events)
	assert.ErrorIs(t, events[len(events)-1].Err, core.ErrLivenessViolation)
	assert.Equal(t, core.DefaultMaxTurns, producer.Calls()+reviewer.Calls())
}

func TestRoundRobin_ParticipantFailure(t *testing.T) {
	producer := testutil.NewScriptedModel(testutil.Fail(errors.New("upstream 502"), "half"))
	reviewer := testutil.NewScriptedModel()
	rr := newPair(t, producer, reviewer, func(o *Options) { o.Termination = SourceMatch("critic") })

	events := testutil.CollectRaw(t, rr.Run(context.Background(), "task"))

	assert.Equal(t, []core.RawKind{core.RawFragment, core.RawFailure}, kinds(events))
	assert.Equal(t, "primary", events[1].Source)
	assert.Zero(t, reviewer.Calls())
	assert.Equal(t, StateFailed, rr.State())
}

func TestRoundRobin_TranscriptPersistsAcrossRuns(t *testing.T) {
	producer := testutil.NewScriptedModel()
	reviewer := testutil.NewScriptedModel()
	rr := newPair(t, producer, reviewer, func(o *Options) { o.Termination = SourceMatch("critic") })

	testutil.CollectRaw(t, rr.Run(context.Background(), "first"))
	testutil.CollectRaw(t, rr.Run(context.Background(), "second"))

	assert.Equal(t, 6, rr.Transcript().Len())

	// each run restarts with the first participant
	reqs := producer.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "second", reqs[1].LastUserText())
	assert.Len(t, reqs[1].Messages, 4)
}

func TestRoundRobin_Canceled(t *testing.T) {
	producer := testutil.NewScriptedModel(testutil.Hang())
	reviewer := testutil.NewScriptedModel()
	rr := newPair(t, producer, reviewer)

	ctx, cancel := context.WithCancel(context.Background())
	ch := rr.Run(ctx, "task")
	cancel()

	testutil.CollectRaw(t, ch)
	assert.Equal(t, StateFailed, rr.State())
}

func TestTerminations(t *testing.T) {
	turn := Turn{Agent: "critic", Text: "LGTM, APPROVE", Index: 4, TeamSize: 2}

	assert.True(t, SourceMatch("critic").ShouldStop(turn))
	assert.False(t, SourceMatch("primary").ShouldStop(turn))
	assert.True(t, TextMention("APPROVE").ShouldStop(turn))
	assert.False(t, TextMention("").ShouldStop(turn))
	assert.True(t, MaxRounds(2).ShouldStop(turn))
	assert.False(t, MaxRounds(3).ShouldStop(turn))
	assert.True(t, Any(nil, Never(), TextMention("LGTM")).ShouldStop(turn))
	assert.False(t, Any().ShouldStop(turn))
	assert.Equal(t, 2, turn.Round())
}

func TestRoundRobin_LogsTurns(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})

	producer := testutil.NewScriptedModel(testutil.Reply("用例"))
	reviewer := testutil.NewScriptedModel(testutil.Fail(errors.New("overloaded")))
	rr := newPair(t, producer, reviewer, func(o *Options) {
		o.Termination = SourceMatch("critic")
		o.Logger = logger
	})

	testutil.CollectRaw(t, rr.Run(context.Background(), "设计登录测试用例"))

	var turns []map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var rec map[string]any
		require.NoError(t, dec.Decode(&rec))
		if _, ok := rec["turn"]; ok {
			turns = append(turns, rec)
		}
	}
	require.Len(t, turns, 2)

	assert.Equal(t, "Agent turn completed", turns[0]["msg"])
	assert.Equal(t, "primary", turns[0]["agent"])
	assert.EqualValues(t, 1, turns[0]["turn"])

	assert.Equal(t, "Agent turn failed", turns[1]["msg"])
	assert.Equal(t, "critic", turns[1]["agent"])
	assert.EqualValues(t, 2, turns[1]["turn"])
	assert.Contains(t, turns[1]["error"], "overloaded")
}
