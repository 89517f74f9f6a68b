package intent

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrelay/logging"
)

func TestPhraseClassifier_DefaultPhrases(t *testing.T) {
	c := NewPhraseClassifier(DefaultPhrases())

	tests := []struct {
		name    string
		message string
		want    Route
	}{
		{"no trigger", "今天天气怎么样", RouteSolo},
		{"action and subject", "请帮我设计测试用例", RoutePipeline},
		{"demo message", "帮我设计一个登录功能的测试用例", RoutePipeline},
		{"exclusion wins", "请分析这个文档内容", RouteSolo},
		{"exclusion with trigger", "帮我看看这份测试工程师的简历", RouteSolo},
		{"trigger without action", "测试用例", RouteSolo},
		{"english", "Please help me write a Test Plan", RoutePipeline},
		{"empty", "", RouteSolo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.message))
		})
	}
}

func TestPhraseClassifier_Update(t *testing.T) {
	c := NewPhraseClassifier(DefaultPhrases())
	require.Equal(t, RouteSolo, c.Classify("plan the rollout"))

	c.Update(Phrases{
		Triggers: []string{"rollout"},
		Actions:  []string{"plan"},
		Subjects: []string{"ROLLOUT"},
	})

	assert.Equal(t, RoutePipeline, c.Classify("Plan the Rollout"))
	assert.Equal(t, []string{"rollout"}, c.Phrases().Subjects)
}

func TestStatic(t *testing.T) {
	assert.Equal(t, RoutePipeline, Static(RoutePipeline).Classify("anything"))
}

func TestLoadPhrases(t *testing.T) {
	p, err := LoadPhrases(filepath.Join("testdata", "phrases.yaml"))
	require.NoError(t, err)

	assert.Equal(t, []string{"deploy", "rollout"}, p.Triggers)

	c := NewPhraseClassifier(p)
	assert.Equal(t, RoutePipeline, c.Classify("帮我 deploy it"))
	assert.Equal(t, RouteSolo, c.Classify("plan a rollback of the rollout"))
}

func TestParsePhrases_Rejects(t *testing.T) {
	_, err := ParsePhrases([]byte("trigers: [x]\n"))
	assert.Error(t, err)

	_, err = ParsePhrases([]byte("actions: [x]\n"))
	assert.Error(t, err)
}

func TestWatch_ReloadsAndKeepsPreviousOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "phrases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("triggers: [alpha]\nactions: [do]\nsubjects: [alpha]\n"), 0o600))

	p, err := LoadPhrases(path)
	require.NoError(t, err)
	c := NewPhraseClassifier(p)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, Watch(ctx, path, c, func(o *WatchOptions) { o.Debounce = 10 * time.Millisecond }))

	require.NoError(t, os.WriteFile(path, []byte("triggers: [beta]\nactions: [do]\nsubjects: [beta]\n"), 0o600))
	assert.Eventually(t, func() bool {
		return c.Classify("do beta") == RoutePipeline
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("::: not yaml"), 0o600))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, RoutePipeline, c.Classify("do beta"))
}

func TestPhraseClassifier_EmptyPhrasesRouteSolo(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelWarn, Format: "text", Output: &buf})

	c := NewPhraseClassifier(Phrases{Actions: []string{"设计"}}, func(o *PhraseClassifierOptions) { o.Logger = logger })

	assert.True(t, c.Phrases().Empty())
	assert.Equal(t, RouteSolo, c.Classify("请帮我设计测试用例"))
	assert.Contains(t, buf.String(), "intent.phrases.empty")

	buf.Reset()
	c.Update(DefaultPhrases())
	assert.False(t, c.Phrases().Empty())
	assert.Empty(t, buf.String())
}
