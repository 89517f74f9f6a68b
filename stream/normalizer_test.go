package stream

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/agentrelay/core"
	"github.com/hupe1980/agentrelay/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDirectory = core.NewDirectory(map[string]core.AgentInfo{
	"primary": {Name: "测试用例设计师", Description: "负责设计测试用例", Avatar: "🧪", Color: "#1890ff"},
	"critic":  {Name: "质量评审专家", Description: "负责评审测试用例质量", Avatar: "🔍", Color: "#52c41a"},
})

func feed(n *Normalizer, raw []core.RawEvent) []core.Event {
	var out []core.Event
	for _, ev := range raw {
		out = append(out, n.Push(ev)...)
	}
	return append(out, n.Finish()...)
}

func TestNormalizer_HandOff(t *testing.T) {
	raw := testutil.NewRawBuilder().
		Fragments("primary", "用例", "一").
		Final("primary", "用例一").
		Fragments("critic", "通过").
		Final("critic", "通过").
		Build()

	events := feed(NewNormalizer(ModeAttributed, testDirectory, ""), raw)

	testutil.AssertWellFormed(t, events, true)
	assert.Equal(t, []core.EventType{
		core.EventAgentStart, core.EventChunk, core.EventChunk, core.EventAgentEnd,
		core.EventAgentStart, core.EventChunk, core.EventAgentEnd,
		core.EventComplete,
	}, testutil.Types(events))

	require.NotNil(t, events[0].AgentInfo)
	assert.Equal(t, "测试用例设计师", events[0].AgentInfo.Name)
	assert.Equal(t, "用例一", events[3].Content)
	assert.Equal(t, "critic", events[4].Agent)
	assert.Equal(t, "通过", events[6].Content)
	assert.Equal(t, "用例一", testutil.Text(events, "primary"))
}

func TestNormalizer_FinalWithoutFragments(t *testing.T) {
	raw := testutil.NewRawBuilder().Final("primary", "  whole answer ").Build()

	events := feed(NewNormalizer(ModeAttributed, testDirectory, ""), raw)

	testutil.AssertWellFormed(t, events, true)
	assert.Equal(t, []core.EventType{core.EventAgentStart, core.EventChunk, core.EventAgentEnd, core.EventComplete}, testutil.Types(events))
	assert.Equal(t, "  whole answer ", events[1].Content)
	assert.Equal(t, "whole answer", events[2].Content)
}

func TestNormalizer_FinalCompletesStreamedPrefix(t *testing.T) {
	raw := testutil.NewRawBuilder().Fragment("primary", "Hello").Final("primary", "Hello world").Build()

	events := feed(NewNormalizer(ModeAttributed, testDirectory, ""), raw)

	assert.Equal(t, "Hello world", testutil.Text(events, ""))
	assert.Equal(t, "Hello world", events[len(events)-2].Content)
}

func TestNormalizer_FinalDivergesFromFragments(t *testing.T) {
	raw := testutil.NewRawBuilder().Fragment("primary", "draft").Final("primary", "rewritten").Build()

	events := feed(NewNormalizer(ModeAttributed, testDirectory, ""), raw)

	testutil.AssertWellFormed(t, events, true)

	// chunks carry the draft and the replacement; agent_end wins
	assert.Equal(t, "draftrewritten", testutil.Text(events, "primary"))
	end := events[len(events)-2]
	assert.Equal(t, core.EventAgentEnd, end.Type)
	assert.Equal(t, "rewritten", end.Content)
}

func TestNormalizer_SameAgentConsecutiveTurns(t *testing.T) {
	raw := testutil.NewRawBuilder().
		Fragment("primary", "a").Final("primary", "a").
		Fragment("primary", "b").Final("primary", "b").
		Build()

	events := feed(NewNormalizer(ModeAttributed, testDirectory, ""), raw)

	testutil.AssertWellFormed(t, events, true)
	assert.Equal(t, []string{"primary"}, testutil.Runs(events))
	assert.Equal(t, "ab", events[len(events)-2].Content)
}

func TestNormalizer_FailureClosesRun(t *testing.T) {
	raw := testutil.NewRawBuilder().
		Final("primary", "draft").
		Fragment("critic", "half").
		Failure("critic", core.ErrGeneration).
		Final("critic", "ignored").
		Build()

	n := NewNormalizer(ModeAttributed, testDirectory, "")
	events := feed(n, raw)

	testutil.AssertWellFormed(t, events, true)
	assert.True(t, n.Done())

	last := events[len(events)-1]
	assert.Equal(t, core.EventError, last.Type)
	assert.Equal(t, "critic", last.Agent)
	assert.Equal(t, core.CodeGeneration, last.Code)
	assert.Equal(t, core.EventAgentEnd, events[len(events)-2].Type)
	assert.Equal(t, "half", events[len(events)-2].Content)
	assert.NotContains(t, testutil.Types(events), core.EventComplete)
}

func TestNormalizer_UnknownAgentFallsBack(t *testing.T) {
	events := feed(NewNormalizer(ModeAttributed, nil, ""), testutil.NewRawBuilder().Final("mystery", "x").Build())

	require.NotNil(t, events[0].AgentInfo)
	assert.Equal(t, core.FallbackInfo("mystery"), *events[0].AgentInfo)
}

func TestNormalizer_Plain(t *testing.T) {
	raw := testutil.NewRawBuilder().Fragments("chat_assistant", "Hi", " there").Final("chat_assistant", "Hi there").Build()

	events := feed(NewNormalizer(ModePlain, testDirectory, ""), raw)

	testutil.AssertWellFormed(t, events, false)
	assert.Equal(t, []core.EventType{core.EventChunk, core.EventChunk, core.EventComplete}, testutil.Types(events))
	assert.Empty(t, events[0].Agent)
}

func TestNormalizer_PlainIdentity(t *testing.T) {
	events := feed(NewNormalizer(ModePlain, nil, "file_analysis_assistant"), testutil.NewRawBuilder().Final("x", "y").Build())

	assert.Equal(t, "file_analysis_assistant", events[0].Agent)
}

func TestNormalizer_NothingAfterTerminal(t *testing.T) {
	n := NewNormalizer(ModeAttributed, nil, "")
	require.Len(t, n.Finish(), 1)

	assert.Nil(t, n.Push(core.NewFragment("a", "b")))
	assert.Nil(t, n.Finish())
	assert.Nil(t, n.Fail(errors.New("late")))
}

// Any sequence of raw events, however interleaved, must normalize into a
// well-formed canonical stream.
func TestNormalizer_RandomSequencesAreWellFormed(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sources := []string{"primary", "critic", "third"}

	for i := 0; i < 500; i++ {
		b := testutil.NewRawBuilder()
		for j := rng.Intn(20); j > 0; j-- {
			src := sources[rng.Intn(len(sources))]
			switch rng.Intn(10) {
			case 0:
				b.Failure(src, core.ErrGeneration)
			case 1, 2, 3:
				b.Final(src, strings.Repeat("x", rng.Intn(3)))
			default:
				b.Fragment(src, strings.Repeat("y", rng.Intn(3)))
			}
		}
		raw := b.Build()

		attributed := feed(NewNormalizer(ModeAttributed, testDirectory, ""), raw)
		testutil.AssertWellFormed(t, attributed, true)

		plain := feed(NewNormalizer(ModePlain, nil, ""), raw)
		testutil.AssertWellFormed(t, plain, false)
	}
}

func TestAttributed_Channel(t *testing.T) {
	raw := testutil.NewRawBuilder().Final("primary", "a").Final("critic", "b").Channel()

	events := testutil.Collect(t, Attributed(context.Background(), raw, testDirectory))

	testutil.AssertWellFormed(t, events, true)
	assert.Equal(t, []string{"primary", "critic"}, testutil.Runs(events))
}

func TestRun_CancelEndsStream(t *testing.T) {
	raw := make(chan core.RawEvent)
	ctx, cancel := context.WithCancel(context.Background())

	out := Plain(ctx, raw, func(o *Options) { o.BufferSize = 4 })
	raw <- core.NewFragment("chat_assistant", "partial")
	cancel()

	events := testutil.Collect(t, out)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, core.EventError, last.Type)
	assert.Equal(t, core.CodeCanceled, last.Code)

	// the producer must not be stuck after cancellation
	select {
	case raw <- core.NewFragment("chat_assistant", "late"):
	case <-time.After(time.Second):
		t.Fatal("raw channel is no longer drained")
	}
	close(raw)
}

func TestWriteNDJSONAndSSE(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteNDJSON(&buf, core.NewChunkEvent("primary", "hi")))
	assert.Equal(t, `{"type":"chunk","agent":"primary","content":"hi"}`+"\n", buf.String())

	rec := httptest.NewRecorder()
	require.NoError(t, WriteSSE(rec, core.NewCompleteEvent()))
	assert.Equal(t, "data: {\"type\":\"complete\"}\n\n", rec.Body.String())
	assert.True(t, rec.Flushed)

	assert.NotNil(t, Writer(ContentTypeSSE))
}
