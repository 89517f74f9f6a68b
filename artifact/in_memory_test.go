package artifact

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/agentrelay/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var _ Store = (*InMemoryStore)(nil)

func TestInMemoryStore_SaveGetIsolation(t *testing.T) {
	s := NewInMemoryStore()
	meta := map[string]any{"lines": 2}

	saved, err := s.Save("s1", Document{Name: "a.txt", Type: document.TypeText, Content: "hello", Metadata: meta})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "s1", saved.Scope)
	assert.False(t, saved.Created.IsZero())

	// mutate the caller's metadata
	meta["lines"] = 99

	got, err := s.Get("s1", saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Equal(t, 2, got.Metadata["lines"])

	// mutate the returned copy
	got.Metadata["lines"] = 7
	again, _ := s.Get("s1", saved.ID)
	assert.Equal(t, 2, again.Metadata["lines"])

	_, err = s.Get("other", saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInMemoryStore_ListAndDelete(t *testing.T) {
	s := NewInMemoryStore()
	a, _ := s.Save("s1", Document{Name: "a"})
	b, _ := s.Save("s1", Document{Name: "b"})

	docs, err := s.List("s1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].Name)

	require.NoError(t, s.Delete("s1", a.ID))
	assert.ErrorIs(t, s.Delete("s1", a.ID), ErrNotFound)
	assert.ErrorIs(t, s.Delete("nope", a.ID), ErrNotFound)

	docs, _ = s.List("s1")
	require.Len(t, docs, 1)
	assert.Equal(t, b.ID, docs[0].ID)

	empty, err := s.List("unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestInMemoryStore_EvictsOldest(t *testing.T) {
	s := NewInMemoryStore(func(o *InMemoryOptions) { o.MaxPerScope = 2 })

	first, _ := s.Save("s1", Document{Name: "1"})
	_, _ = s.Save("s1", Document{Name: "2"})
	_, _ = s.Save("s1", Document{Name: "3"})

	_, err := s.Get("s1", first.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	docs, _ := s.List("s1")
	require.Len(t, docs, 2)
	assert.Equal(t, "2", docs[0].Name)
	assert.Equal(t, "3", docs[1].Name)
}

func TestInMemoryStore_Clear(t *testing.T) {
	s := NewInMemoryStore()
	_, _ = s.Save("s1", Document{Name: "a"})
	_, _ = s.Save("s1", Document{Name: "b"})
	_, _ = s.Save("s2", Document{Name: "c"})

	assert.Equal(t, 2, s.Clear("s1"))
	assert.Equal(t, 0, s.Clear("s1"))

	docs, _ := s.List("s2")
	assert.Len(t, docs, 1)
}

func TestInMemoryStore_Concurrency(t *testing.T) {
	s := NewInMemoryStore(func(o *InMemoryOptions) { o.MaxPerScope = 10 })
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Save("s1", Document{Name: fmt.Sprintf("d%d", i)}); err != nil {
				t.Errorf("save err: %v", err)
			}
			_, _ = s.List("s1")
		}()
	}
	wg.Wait()

	docs, err := s.List("s1")
	require.NoError(t, err)
	assert.Len(t, docs, 10)
}
