package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	text string
	err  error
}

func (m mockProvider) Instruction(context.Context) (string, error) { return m.text, m.err }

func TestInstruction_Static(t *testing.T) {
	inst := NewInstructionFromText("static instruction")
	assert.True(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static instruction", got)
}

func TestInstruction_NewInstructionFromFunc(t *testing.T) {
	inst := NewInstructionFromFunc(func(context.Context) (string, error) { return "dynamic via func", nil })
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dynamic via func", got)
}

func TestInstruction_NewInstructionFromProvider(t *testing.T) {
	inst := NewInstructionFromProvider(mockProvider{text: "provider text"})
	assert.False(t, inst.IsStatic())

	got, err := inst.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "provider text", got)
}

func TestInstruction_FromTemplate(t *testing.T) {
	inst := NewInstructionFromTemplate("Document:\n{{.document}}", map[string]any{"document": "a < b"})

	got, err := inst.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Document:\na < b", got)
}

func TestInstruction_ErrorPropagation(t *testing.T) {
	expectedErr := errors.New("boom")
	inst := NewInstructionFromProvider(mockProvider{err: expectedErr})

	_, err := inst.Resolve(context.Background())
	assert.ErrorIs(t, err, expectedErr)
}
