package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate_NoMarkers(t *testing.T) {
	out, err := RenderTemplate("plain <text> & more", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain <text> & more", out)
}

func TestRenderTemplate_Values(t *testing.T) {
	out, err := RenderTemplate(`Document:
{{.document}}
Owner: {{default "unknown" .owner}} {{upper .tag}}`, map[string]any{
		"document": "<a> & b",
		"tag":      "x",
	})
	require.NoError(t, err)
	assert.Equal(t, "Document:\n<a> & b\nOwner: unknown X", out)
}

func TestRenderTemplate_Truncate(t *testing.T) {
	out, err := RenderTemplate(`{{truncate 2 .s}}`, map[string]any{"s": "测试用例"})
	require.NoError(t, err)
	assert.Equal(t, "测试", out)
}

func TestRenderTemplate_ParseError(t *testing.T) {
	_, err := RenderTemplate("{{ .unclosed", nil)
	assert.Error(t, err)
}
