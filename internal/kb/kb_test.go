package kb

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSource serves fixed documents per slug and counts reads.
type countingSource struct {
	mu    sync.Mutex
	docs  map[string]string
	err   error
	reads map[string]int
}

func newCountingSource(docs map[string]string) *countingSource {
	return &countingSource{docs: docs, reads: make(map[string]int)}
}

func (c *countingSource) Read(_ context.Context, slug string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads[slug]++
	if c.err != nil {
		return nil, c.err
	}
	doc, ok := c.docs[slug]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(doc), nil
}

func (c *countingSource) set(slug, doc string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[slug] = doc
}

func (c *countingSource) count(slug string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads[slug]
}

func TestNormalize_BothShapes(t *testing.T) {
	raw := `[
		{"question": "Opening hours", "answer": "Mon–Fri 09–17"},
		{"q": "Phone", "a": "22 33 44 55"},
		{"question": "Founded", "answer": 1987},
		{"q": "Open on Sundays", "a": false},
		{"question": "Mixed", "a": "not a shape"},
		{"question": "", "answer": "blank question"},
		{"question": "Null", "answer": null},
		{"question": ["list"], "answer": "x"},
		{"question": "Nested", "answer": {"text": "no"}},
		"just a string",
		42
	]`

	got := Normalize([]byte(raw))

	assert.Equal(t, []Entry{
		{Question: "Opening hours", Answer: "Mon–Fri 09–17"},
		{Question: "Phone", Answer: "22 33 44 55"},
		{Question: "Founded", Answer: "1987"},
		{Question: "Open on Sundays", Answer: "false"},
	}, got)
}

func TestNormalize_ShapeAPreferredOverB(t *testing.T) {
	got := Normalize([]byte(`[{"question": "A", "answer": "a", "q": "B", "a": "b"}]`))
	assert.Equal(t, []Entry{{Question: "A", Answer: "a"}}, got)

	// Falls through to shape B when shape A is incomplete.
	got = Normalize([]byte(`[{"question": "A", "q": "B", "a": "b"}]`))
	assert.Equal(t, []Entry{{Question: "B", Answer: "b"}}, got)
}

func TestNormalize_NonArrayIsEmpty(t *testing.T) {
	for _, raw := range []string{``, `{}`, `{"question":"q","answer":"a"}`, `not json`, `null`} {
		got := Normalize([]byte(raw))
		assert.NotNil(t, got, "input %q", raw)
		assert.Empty(t, got, "input %q", raw)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	first := Normalize([]byte(`[
		{"q": "Parking", "a": "Free after 18:00"},
		{"question": "Price", "answer": 499.5},
		{"question": "  padded  ", "answer": " kept verbatim "}
	]`))

	encoded, err := json.Marshal(first)
	require.NoError(t, err)
	second := Normalize(encoded)

	assert.Equal(t, first, second)
}

func TestStore_CachesWithinTTL(t *testing.T) {
	src := newCountingSource(map[string]string{
		"acme": `[{"question": "Opening hours", "answer": "09–17"}]`,
	})
	s := NewStore(src, time.Minute)
	ctx := context.Background()

	first := s.Get(ctx, "acme")
	src.set("acme", `[{"question": "Changed", "answer": "x"}]`)
	second := s.Get(ctx, "acme")

	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.count("acme"))
	assert.True(t, s.Cached("acme"))
}

func TestStore_RefetchesAfterExpiry(t *testing.T) {
	src := newCountingSource(map[string]string{
		"acme": `[{"question": "Old", "answer": "x"}]`,
	})
	s := NewStore(src, 20*time.Millisecond)
	ctx := context.Background()

	require.Equal(t, "Old", s.Get(ctx, "acme")[0].Question)
	src.set("acme", `[{"question": "New", "answer": "y"}]`)

	require.Eventually(t, func() bool {
		return s.Get(ctx, "acme")[0].Question == "New"
	}, time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, src.count("acme"), 2)
}

func TestStore_TenantIsolationAndInvalidate(t *testing.T) {
	src := newCountingSource(map[string]string{
		"acme": `[{"question": "Acme Q", "answer": "Acme A"}]`,
		"beta": `[{"question": "Beta Q", "answer": "Beta A"}]`,
	})
	s := NewStore(src, time.Minute)
	ctx := context.Background()

	assert.Equal(t, "Acme A", s.Get(ctx, "acme")[0].Answer)
	assert.Equal(t, "Beta A", s.Get(ctx, "beta")[0].Answer)

	s.Invalidate("acme")
	assert.False(t, s.Cached("acme"))
	assert.True(t, s.Cached("beta"))

	s.Get(ctx, "acme")
	s.Get(ctx, "beta")
	assert.Equal(t, 2, src.count("acme"))
	assert.Equal(t, 1, src.count("beta"))

	s.Purge()
	assert.False(t, s.Cached("beta"))
}

func TestStore_CallerMutationDoesNotLeakIntoCache(t *testing.T) {
	src := newCountingSource(map[string]string{
		"acme": `[{"question": "Q", "answer": "A"}]`,
	})
	s := NewStore(src, time.Minute)
	ctx := context.Background()

	got := s.Get(ctx, "acme")
	got[0].Answer = "tampered"

	assert.Equal(t, "A", s.Get(ctx, "acme")[0].Answer)
}

func TestStore_FailSoft(t *testing.T) {
	src := newCountingSource(map[string]string{"broken": `{oops`})
	s := NewStore(src, time.Minute)
	ctx := context.Background()

	assert.Empty(t, s.Get(ctx, "missing"))
	assert.Empty(t, s.Get(ctx, "broken"))

	src.err = errors.New("disk on fire")
	s.Purge()
	assert.Empty(t, s.Get(ctx, "anything"))
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "acme.json"), []byte(`[{"q":"Hi","a":"Hello"}]`), 0o644))

	s := NewStore(DirSource{Dir: dir}, time.Minute)
	ctx := context.Background()

	assert.Equal(t, []Entry{{Question: "Hi", Answer: "Hello"}}, s.Get(ctx, "acme"))
	assert.Empty(t, s.Get(ctx, "nobody"))

	_, err := DirSource{Dir: dir}.Read(ctx, "")
	assert.Error(t, err)
}
