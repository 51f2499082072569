package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inquiro/inquiro/log"
	"github.com/inquiro/inquiro/store"
)

type captureWriter struct {
	mu      sync.Mutex
	records []store.Record
	err     error
}

func (w *captureWriter) WriteVector(_ context.Context, rec store.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.records = append(w.records, rec)
	return nil
}

func upperExtractor() PageExtractor {
	return PageExtractorFunc(func(_ context.Context, _ int, pageText string) (string, error) {
		return strings.ToUpper(pageText), nil
	})
}

func newTestIngestor(writer VectorWriter, opts ...IngestorOption) *Ingestor {
	base := []IngestorOption{
		WithExtractor(upperExtractor()),
		WithLogger(log.NopLogger{}),
	}
	return NewIngestor(nil, writer, append(base, opts...)...)
}

func TestIngestRejectsNonPDF(t *testing.T) {
	ing := newTestIngestor(&captureWriter{})

	_, err := ing.Ingest(context.Background(), "notes.txt", []byte("plain text"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIngestRejectsOversized(t *testing.T) {
	ing := newTestIngestor(&captureWriter{}, WithMaxBytes(16))

	data := append([]byte(pdfMagic), bytes.Repeat([]byte("x"), 32)...)
	_, err := ing.Ingest(context.Background(), "big.pdf", data)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestIngestPages(t *testing.T) {
	writer := &captureWriter{}
	ing := newTestIngestor(writer)

	n, err := ing.ingestPages(context.Background(), "doc.pdf",
		[]string{"first page", "second page"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.Len(t, writer.records, 1)
	rec := writer.records[0]
	assert.Equal(t, store.KindVector, rec.Kind)
	assert.Equal(t, "doc.pdf", rec.OriginQuery)
	assert.Equal(t, "doc.pdf#1", rec.Name)
	assert.Contains(t, rec.Content, "FIRST PAGE")
	assert.Contains(t, rec.Content, "SECOND PAGE")
}

func TestIngestPagesEmptyDocument(t *testing.T) {
	ing := newTestIngestor(&captureWriter{})

	n, err := ing.ingestPages(context.Background(), "empty.pdf", nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = ing.ingestPages(context.Background(), "blank.pdf", []string{"", "  "})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIngestCorruptDocument(t *testing.T) {
	writer := &captureWriter{}
	ing := newTestIngestor(writer)

	// Valid magic bytes but no readable page structure.
	n, err := ing.Ingest(context.Background(), "broken.pdf", []byte("%PDF-1.7 garbage"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, writer.records)
}

func TestIngestPagesSkipsFailedPages(t *testing.T) {
	extractor := PageExtractorFunc(func(_ context.Context, pageNumber int, pageText string) (string, error) {
		if pageNumber == 2 {
			return "", errors.New("model timeout")
		}
		return pageText, nil
	})
	writer := &captureWriter{}
	ing := newTestIngestor(writer, WithExtractor(extractor))

	n, err := ing.ingestPages(context.Background(), "doc.pdf",
		[]string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, writer.records, 1)
	assert.Contains(t, writer.records[0].Content, "alpha")
	assert.NotContains(t, writer.records[0].Content, "beta")
	assert.Contains(t, writer.records[0].Content, "gamma")
}

func TestIngestPagesPreservesPageOrder(t *testing.T) {
	writer := &captureWriter{}
	ing := newTestIngestor(writer)

	pages := make([]string, 10)
	for i := range pages {
		pages[i] = fmt.Sprintf("page-%02d", i)
	}

	_, err := ing.ingestPages(context.Background(), "doc.pdf", pages)
	require.NoError(t, err)
	require.Len(t, writer.records, 1)

	content := writer.records[0].Content
	last := -1
	for i := range pages {
		pos := strings.Index(content, fmt.Sprintf("PAGE-%02d", i))
		require.GreaterOrEqual(t, pos, 0)
		assert.Greater(t, pos, last)
		last = pos
	}
}

func TestIngestPagesBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	extractor := PageExtractorFunc(func(_ context.Context, _ int, pageText string) (string, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		defer inFlight.Add(-1)
		return pageText, nil
	})

	writer := &captureWriter{}
	ing := newTestIngestor(writer, WithExtractor(extractor), WithWorkers(3))

	pages := make([]string, 40)
	for i := range pages {
		pages[i] = fmt.Sprintf("page %d", i)
	}

	_, err := ing.ingestPages(context.Background(), "doc.pdf", pages)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestIngestPagesWriterFailure(t *testing.T) {
	writer := &captureWriter{err: errors.New("store down")}
	ing := newTestIngestor(writer)

	_, err := ing.ingestPages(context.Background(), "doc.pdf", []string{"content"})
	assert.Error(t, err)
}

func TestSplitterShortText(t *testing.T) {
	s := NewSplitter()
	chunks := s.Split("short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0])

	assert.Nil(t, s.Split("   "))
}

func TestSplitterRespectsChunkSize(t *testing.T) {
	s := NewSplitter(WithChunkSize(50), WithChunkOverlap(10))

	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "sentence number %d keeps going on.\n\n", i)
	}

	chunks := s.Split(b.String())
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 50)
	}
}

func TestSplitterUnbrokenText(t *testing.T) {
	s := NewSplitter(WithChunkSize(10), WithChunkOverlap(2))
	text := strings.Repeat("a", 25)

	chunks := s.Split(text)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 10)
	}
	// Overlap means adjacent chunks share a 2-byte boundary.
	assert.Equal(t, chunks[0][8:], chunks[1][:2])
}

func TestSplitterSeparatorPreference(t *testing.T) {
	s := NewSplitter(WithChunkSize(12), WithChunkOverlap(0))
	chunks := s.Split("first part\n\nsecond part\n\nthird part")

	require.Len(t, chunks, 3)
	assert.Equal(t, "first part", chunks[0])
	assert.Equal(t, "second part", chunks[1])
	assert.Equal(t, "third part", chunks[2])
}

func TestIsPDF(t *testing.T) {
	assert.True(t, isPDF([]byte("%PDF-1.7\n...")))
	assert.False(t, isPDF([]byte("GIF89a")))
	assert.False(t, isPDF(nil))
}
