// Package indexer turns files and raw text into chunked, embedded documents.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/lexembed/internal/extract"
	"github.com/hyperjump/lexembed/internal/fileid"
	"github.com/hyperjump/lexembed/internal/models"
	"go.uber.org/zap"
)

// DefaultBatchSize is how many chunks are sent per embedding request.
const DefaultBatchSize = 32

// Embedder produces one vector per text, in order. *client.Client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts ...string) ([][]float32, error)
}

// Indexer extracts, cleans, chunks and embeds documents.
type Indexer struct {
	extractor *extract.Extractor
	chunker   *Chunker
	embedder  Embedder
	batchSize int
	now       func() time.Time
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithBatchSize sets how many chunks go into one embedding request.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// NewIndexer creates an indexer. embedder may be nil when only chunking is needed.
func NewIndexer(extractor *extract.Extractor, chunker *Chunker, embedder Embedder, opts ...IndexerOption) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		batchSize: DefaultBatchSize,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// ProcessText builds a document from raw text. Whitespace is collapsed and the id is random.
func (idx *Indexer) ProcessText(text string, kind models.Kind, meta models.Metadata) (*models.Document, error) {
	content := Preprocess(text)
	if content == "" {
		return nil, extract.ErrEmpty
	}
	doc := &models.Document{
		ID:        fileid.NewDocID(),
		Kind:      kind,
		Content:   content,
		Metadata:  mergeMetadata(meta, ExtractMetadata(text)),
		Hash:      fileid.Hash(content),
		CreatedAt: idx.now(),
	}
	idx.logger.Debug("processed text document", zap.String("doc_id", doc.ID), zap.Int("chars", len(content)))
	return doc, nil
}

// ProcessFile builds a document from the file at path. Plain text is cleaned like
// ProcessText; PDF, DOCX and Excel keep their paragraph layout for the chunker. The
// document id is derived from the absolute path.
func (idx *Indexer) ProcessFile(path string, kind models.Kind, meta models.Metadata) (*models.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	extracted, err := idx.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}

	content := extracted.Text
	if extracted.Format == extract.FormatText {
		content = Preprocess(content)
	}
	if kind == "" {
		kind = models.KindText
		if extracted.Format == extract.FormatPDF {
			kind = models.KindPDF
		}
	}
	meta.Source = absPath
	meta = mergeMetadata(meta, models.Metadata{
		Title:  extracted.Title,
		Author: extracted.Author,
		Pages:  extracted.Pages,
	})
	meta = mergeMetadata(meta, ExtractMetadata(extracted.Text))
	if meta.Title == "" {
		meta.Title = filepath.Base(absPath)
	}

	doc := &models.Document{
		ID:        fileid.FileDocID(absPath),
		Kind:      kind,
		Content:   content,
		Metadata:  meta,
		Hash:      fileid.Hash(content),
		CreatedAt: idx.now(),
	}
	idx.logger.Debug("processed file",
		zap.String("path", absPath),
		zap.String("doc_id", doc.ID),
		zap.String("format", string(extracted.Format)),
	)
	return doc, nil
}

// Chunk splits a document into chunks carrying the document's kind and metadata.
func (idx *Indexer) Chunk(doc *models.Document) []*models.DocumentChunk {
	texts := idx.chunker.Split(doc.Content)
	chunks := make([]*models.DocumentChunk, len(texts))
	for i, text := range texts {
		chunks[i] = &models.DocumentChunk{
			ID:          models.ChunkID(doc.ID, i),
			DocumentID:  doc.ID,
			Kind:        doc.Kind,
			Content:     text,
			ChunkIndex:  i,
			TotalChunks: len(texts),
			Hash:        fileid.Hash(text),
			Metadata:    doc.Metadata,
			CreatedAt:   doc.CreatedAt,
		}
	}
	if len(chunks) > 0 {
		minLen, maxLen, sum := math.MaxInt, 0, 0
		for _, t := range texts {
			n := len([]rune(t))
			minLen, maxLen, sum = min(minLen, n), max(maxLen, n), sum+n
		}
		idx.logger.Debug("document chunked",
			zap.String("doc_id", doc.ID),
			zap.Int("chunks", len(chunks)),
			zap.Int("min", minLen),
			zap.Int("max", maxLen),
			zap.Int("avg", sum/len(chunks)),
		)
	}
	return chunks
}

// Embed fills the Embedding of every chunk, batchSize chunks per request.
func (idx *Indexer) Embed(ctx context.Context, chunks []*models.DocumentChunk) error {
	if idx.embedder == nil {
		return errors.New("no embedder configured")
	}
	for start := 0; start < len(chunks); start += idx.batchSize {
		end := min(start+idx.batchSize, len(chunks))
		texts := make([]string, end-start)
		for i, ch := range chunks[start:end] {
			texts[i] = ch.Content
		}
		vecs, err := idx.embedder.Embed(ctx, texts...)
		if err != nil {
			return fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(vecs) != len(texts) {
			return fmt.Errorf("got %d embeddings for %d chunks", len(vecs), len(texts))
		}
		for i, v := range vecs {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// IndexFile processes, chunks and embeds one file.
func (idx *Indexer) IndexFile(ctx context.Context, path string, kind models.Kind, meta models.Metadata) (*models.Document, []*models.DocumentChunk, error) {
	doc, err := idx.ProcessFile(path, kind, meta)
	if err != nil {
		return nil, nil, err
	}
	chunks := idx.Chunk(doc)
	if err := idx.Embed(ctx, chunks); err != nil {
		return nil, nil, err
	}
	idx.logger.Debug("indexer file indexed", zap.String("path", path), zap.String("doc_id", doc.ID))
	return doc, chunks, nil
}

// IndexDirectory walks dir recursively, indexes each regular file whose extension is
// in allowedExts (all files when empty) and hands the result to fn. Files without text
// are skipped. It returns the number of files indexed and stops at the first error.
func (idx *Indexer) IndexDirectory(
	ctx context.Context,
	dir string,
	allowedExts []string,
	kind models.Kind,
	fn func(*models.Document, []*models.DocumentChunk) error,
) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if len(allowedExts) > 0 && !extensionAllowed(filepath.Ext(path), allowedExts) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		doc, chunks, indexErr := idx.IndexFile(ctx, path, kind, models.Metadata{})
		if indexErr != nil {
			if errors.Is(indexErr, extract.ErrEmpty) {
				idx.logger.Debug("skipping file without text", zap.String("path", path))
				return nil
			}
			return fmt.Errorf("%s: %w", path, indexErr)
		}
		if err := fn(doc, chunks); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
