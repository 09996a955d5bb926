package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder returns a fixed vector per known text and counts calls.
type stubEmbedder struct {
	vectors map[string][]float32
	deflt   []float32
	calls   int
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := s.vectors[text]; ok {
			out[i] = v
		} else {
			out[i] = s.deflt
		}
	}
	return out, nil
}

func TestSplitterSizesAndOverlap(t *testing.T) {
	s := NewSplitter(10, 3)
	text := strings.Repeat("abcdefg", 5) // 35 runes

	chunks := s.Split(text, "doc.txt", 2)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 10)
		assert.Equal(t, "doc.txt", c.Source)
		assert.Equal(t, 2, c.Page)
	}

	// Consecutive chunks share the 3-rune overlap.
	first := []rune(chunks[0].Text)
	second := []rune(chunks[1].Text)
	assert.Equal(t, string(first[len(first)-3:]), string(second[:3]))
}

func TestSplitterClampsOversizedOverlap(t *testing.T) {
	// overlap >= chunkSize would stall the scan without clamping.
	s := NewSplitter(4, 10)
	chunks := s.Split("abcdefgh", "doc.txt", 1)
	require.NotEmpty(t, chunks)
	assert.Equal(t, "abcd", chunks[0].Text)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 4)
	}
}

func TestSplitterEmptyText(t *testing.T) {
	s := NewSplitter(900, 150)
	assert.Nil(t, s.Split("", "doc.txt", 1))
	assert.Nil(t, s.Split("   \n  ", "doc.txt", 1))
}

func TestIndexSearchRanksByCosine(t *testing.T) {
	embedder := &stubEmbedder{deflt: []float32{1, 0}}
	ix := NewIndex(embedder)
	ix.Add([]EmbeddedChunk{
		{Chunk: Chunk{Text: "orthogonal", Source: "a.txt", Page: 1}, Vector: []float32{0, 1}},
		{Chunk: Chunk{Text: "aligned", Source: "b.txt", Page: 2}, Vector: []float32{2, 0}},
		{Chunk: Chunk{Text: "diagonal", Source: "c.txt", Page: 3}, Vector: []float32{1, 1}},
	})

	results, err := ix.Search(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "aligned", results[0].Text)
	assert.Equal(t, "diagonal", results[1].Text)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestIndexSearchEmpty(t *testing.T) {
	ix := NewIndex(&stubEmbedder{deflt: []float32{1}})
	results, err := ix.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

// lockProbeEmbedder takes the index write lock from inside Embed. It can only
// make progress when Search embeds before locking the index.
type lockProbeEmbedder struct {
	ix *Index
}

func (p *lockProbeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	p.ix.Add(nil)
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestSearchDoesNotHoldLockDuringEmbed(t *testing.T) {
	probe := &lockProbeEmbedder{}
	ix := NewIndex(probe)
	probe.ix = ix
	ix.Add([]EmbeddedChunk{{Chunk: Chunk{Text: "x", Source: "a.txt", Page: 1}, Vector: []float32{1, 0}}})

	done := make(chan error, 1)
	go func() {
		_, err := ix.Search(context.Background(), "query", 1)
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("search blocked while embedding the query")
	}
}

func TestCosineSimilarityMismatch(t *testing.T) {
	_, err := cosineSimilarity([]float32{1, 2}, []float32{1})
	assert.Error(t, err)

	_, err = cosineSimilarity([]float32{0, 0}, []float32{1, 1})
	assert.Error(t, err)
}

func TestExtractPages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "guide.txt")
	content := "page one text\fpage two text\f\f"
	require.NoError(t, writeFile(path, content))

	pages, err := ExtractPages(path)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, 2, pages[1].Number)
	assert.Equal(t, "guide.txt", pages[0].Source)
}

func TestCacheRoundTrip(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	chunks := []EmbeddedChunk{
		{Chunk: Chunk{Text: "alpha", Source: "doc.txt", Page: 1}, Vector: []float32{0.1, 0.2}},
		{Chunk: Chunk{Text: "beta", Source: "doc.txt", Page: 2}, Vector: []float32{0.3, 0.4}},
	}
	require.NoError(t, cache.Put("doc.txt", "hash-v1", chunks))

	got, hit, err := cache.Get("doc.txt", "hash-v1")
	require.NoError(t, err)
	require.True(t, hit)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Text)
	assert.Equal(t, []float32{0.3, 0.4}, got[1].Vector)

	// A changed hash is a miss.
	_, hit, err = cache.Get("doc.txt", "hash-v2")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCorpusBuildUsesCache(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, "rules.txt"), strings.Repeat("contribution limits apply. ", 10)))

	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer cache.Close()

	embedder := &stubEmbedder{deflt: []float32{1, 0}}
	builder := NewCorpusBuilder(NewSplitter(100, 20), embedder, cache)

	ix, err := builder.Build(context.Background(), dir)
	require.NoError(t, err)
	require.Greater(t, ix.Len(), 0)
	firstCalls := embedder.calls
	require.Greater(t, firstCalls, 0)

	// Second build of the unchanged corpus embeds nothing.
	ix2, err := builder.Build(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, ix.Len(), ix2.Len())
	assert.Equal(t, firstCalls, embedder.calls)
}

func TestCorpusBuildMissingDir(t *testing.T) {
	builder := NewCorpusBuilder(NewSplitter(900, 150), &stubEmbedder{deflt: []float32{1}}, nil)
	ix, err := builder.Build(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Equal(t, 0, ix.Len())
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
