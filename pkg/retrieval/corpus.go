package retrieval

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nestwise/pkg/logx"
)

// Page is one page of a source document, the unit of extraction before
// splitting.
type Page struct {
	Text   string
	Source string
	Number int
}

// pageDelimiter separates pages in extracted text documents. Files without it
// are treated as a single page.
const pageDelimiter = "\f"

// corpusExtensions are the file types loaded from the corpus directory.
var corpusExtensions = map[string]bool{
	".txt": true,
	".md":  true,
}

// ExtractPages reads a document into per-page text.
func ExtractPages(path string) ([]Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}

	source := filepath.Base(path)
	var pages []Page
	for i, text := range strings.Split(string(data), pageDelimiter) {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Text: text, Source: source, Number: i + 1})
	}
	return pages, nil
}

// CorpusBuilder loads a document directory into an Index, consulting the
// cache to skip re-embedding unchanged files.
type CorpusBuilder struct {
	splitter *Splitter
	embedder Embedder
	cache    *Cache // optional
	logger   *logx.Logger
}

// NewCorpusBuilder creates a builder. cache may be nil.
func NewCorpusBuilder(splitter *Splitter, embedder Embedder, cache *Cache) *CorpusBuilder {
	return &CorpusBuilder{
		splitter: splitter,
		embedder: embedder,
		cache:    cache,
		logger:   logx.NewLogger("corpus"),
	}
}

// Build walks dir, chunks and embeds every supported document, and returns
// the populated index. A missing or empty directory yields an empty index;
// retrieval then degrades to empty context rather than failing startup.
func (b *CorpusBuilder) Build(ctx context.Context, dir string) (*Index, error) {
	index := NewIndex(b.embedder)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			b.logger.Warn("corpus directory %s does not exist, starting with empty index", dir)
			return index, nil
		}
		return nil, fmt.Errorf("read corpus dir %s: %w", dir, err)
	}

	total := 0
	for _, entry := range entries {
		if entry.IsDir() || !corpusExtensions[filepath.Ext(entry.Name())] {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		chunks, err := b.loadDocument(ctx, path)
		if err != nil {
			return nil, err
		}
		index.Add(chunks)
		total += len(chunks)
		b.logger.Info("loaded %s: %d chunks", entry.Name(), len(chunks))
	}

	b.logger.Info("corpus ready: %d chunks indexed from %s", total, dir)
	return index, nil
}

func (b *CorpusBuilder) loadDocument(ctx context.Context, path string) ([]EmbeddedChunk, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	source := filepath.Base(path)

	if b.cache != nil {
		cached, hit, err := b.cache.Get(source, hash)
		if err != nil {
			b.logger.Warn("cache read failed for %s: %v", source, err)
		} else if hit {
			b.logger.Debug("cache hit for %s (%d chunks)", source, len(cached))
			return cached, nil
		}
	}

	pages, err := ExtractPages(path)
	if err != nil {
		return nil, err
	}

	var chunks []Chunk
	for _, page := range pages {
		chunks = append(chunks, b.splitter.Split(page.Text, page.Source, page.Number)...)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	vectors, err := b.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", source, err)
	}

	embedded := make([]EmbeddedChunk, len(chunks))
	for i := range chunks {
		embedded[i] = EmbeddedChunk{Chunk: chunks[i], Vector: vectors[i]}
	}

	if b.cache != nil {
		if err := b.cache.Put(source, hash, embedded); err != nil {
			b.logger.Warn("cache write failed for %s: %v", source, err)
		}
	}
	return embedded, nil
}
