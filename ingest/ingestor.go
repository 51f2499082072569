// Package ingest turns uploaded PDF documents into embedded memory chunks.
// Pages are extracted concurrently through the inference layer, stitched back
// together in page order, split into overlapping chunks, and written to the
// vector store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/inquiro/inquiro/inference"
	"github.com/inquiro/inquiro/log"
	"github.com/inquiro/inquiro/store"
)

// ErrInvalidInput indicates the upload is not a usable PDF.
var ErrInvalidInput = errors.New("invalid input")

// ErrPageExtraction indicates a single page failed extraction. It is logged
// and the page skipped; the document as a whole still ingests.
var ErrPageExtraction = errors.New("page extraction failed")

const (
	// maxUploadBytes caps uploads at 2.5 MB.
	maxUploadBytes = int64(2.5 * 1024 * 1024)
	// defaultWorkers bounds concurrent page extractions.
	defaultWorkers = 5
)

const extractSystemPrompt = `You are a document transcription assistant. Convert the given page of a document into clean markdown. Preserve headings, lists and tables. Output only the markdown content, nothing else.`

// PageExtractor converts one page of raw text into clean markdown.
type PageExtractor interface {
	Extract(ctx context.Context, pageNumber int, pageText string) (string, error)
}

// PageExtractorFunc adapts a function to the PageExtractor interface.
type PageExtractorFunc func(ctx context.Context, pageNumber int, pageText string) (string, error)

// Extract calls f.
func (f PageExtractorFunc) Extract(ctx context.Context, pageNumber int, pageText string) (string, error) {
	return f(ctx, pageNumber, pageText)
}

// VectorWriter is the slice of the store facade the ingestor writes through.
type VectorWriter interface {
	WriteVector(ctx context.Context, rec store.Record) error
}

// visionExtractor sends pages through the pooled inference client using the
// vision-capable model.
type visionExtractor struct {
	pool *inference.Pool
}

func (v *visionExtractor) Extract(ctx context.Context, pageNumber int, pageText string) (string, error) {
	parts := []openai.ChatMessagePart{
		{
			Type: openai.ChatMessagePartTypeText,
			Text: fmt.Sprintf("Page %d:\n\n%s", pageNumber, pageText),
		},
	}
	return v.pool.ExtractPage(ctx, extractSystemPrompt, parts)
}

// Ingestor processes PDF uploads into vector store chunks.
type Ingestor struct {
	extractor PageExtractor
	writer    VectorWriter
	splitter  *Splitter
	workers   int
	maxBytes  int64
	logger    log.Logger
}

// IngestorOption configures the Ingestor.
type IngestorOption func(*Ingestor)

// WithExtractor replaces the default vision-backed page extractor.
func WithExtractor(e PageExtractor) IngestorOption {
	return func(ing *Ingestor) {
		ing.extractor = e
	}
}

// WithWorkers sets the extraction concurrency bound.
func WithWorkers(n int) IngestorOption {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.workers = n
		}
	}
}

// WithSplitter replaces the default chunk splitter.
func WithSplitter(s *Splitter) IngestorOption {
	return func(ing *Ingestor) {
		ing.splitter = s
	}
}

// WithMaxBytes sets the upload size cap.
func WithMaxBytes(n int64) IngestorOption {
	return func(ing *Ingestor) {
		if n > 0 {
			ing.maxBytes = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger log.Logger) IngestorOption {
	return func(ing *Ingestor) {
		ing.logger = logger
	}
}

// NewIngestor creates an ingestor that extracts pages through pool and
// persists chunks through writer.
func NewIngestor(pool *inference.Pool, writer VectorWriter, opts ...IngestorOption) *Ingestor {
	ing := &Ingestor{
		extractor: &visionExtractor{pool: pool},
		writer:    writer,
		splitter:  NewSplitter(),
		workers:   defaultWorkers,
		maxBytes:  maxUploadBytes,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// Ingest processes one uploaded document and returns the number of chunks
// written. Individual page failures are skipped; a document where no page
// yields content reports zero chunks without error.
func (ing *Ingestor) Ingest(ctx context.Context, filename string, data []byte) (int, error) {
	if int64(len(data)) > ing.maxBytes {
		return 0, fmt.Errorf("%w: file exceeds %d bytes", ErrInvalidInput, ing.maxBytes)
	}
	if !isPDF(data) {
		return 0, fmt.Errorf("%w: not a PDF document", ErrInvalidInput)
	}

	// A corrupt or empty document past the magic-byte check yields zero
	// chunks rather than an error.
	pages, err := readPages(data)
	if err != nil {
		ing.logger.Warn("%s: unreadable document: %v", filename, err)
		return 0, nil
	}
	return ing.ingestPages(ctx, filename, pages)
}

// ingestPages extracts, chunks and persists the given page texts.
func (ing *Ingestor) ingestPages(ctx context.Context, filename string, pages []string) (int, error) {
	if len(pages) == 0 {
		return 0, nil
	}

	extracted := make([]string, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.workers)
	for i, pageText := range pages {
		if strings.TrimSpace(pageText) == "" {
			continue
		}
		g.Go(func() error {
			content, err := ing.extractor.Extract(gctx, i+1, pageText)
			if err != nil {
				ing.logger.Warn("%s page %d: %v", filename,
					i+1, fmt.Errorf("%w: %v", ErrPageExtraction, err))
				return nil
			}
			extracted[i] = strings.TrimSpace(content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var kept []string
	for _, content := range extracted {
		if content != "" {
			kept = append(kept, content)
		}
	}
	if len(kept) == 0 {
		ing.logger.Warn("%s: no page yielded content", filename)
		return 0, nil
	}

	document := strings.Join(kept, "\n\n")
	chunks := ing.splitter.Split(document)

	written := 0
	for i, chunk := range chunks {
		rec := store.NewRecord(store.KindVector,
			fmt.Sprintf("%s#%d", filename, i+1), "", chunk, filename, "")
		if err := ing.writer.WriteVector(ctx, rec); err != nil {
			return written, fmt.Errorf("write chunk %d: %w", i+1, err)
		}
		written++
	}

	ing.logger.Info("ingested %s: %d pages, %d chunks", filename, len(kept), written)
	return written, nil
}
