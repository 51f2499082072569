package ingest

import "strings"

// Splitter divides extracted document text into overlapping chunks sized for
// embedding. It tries coarse separators first and falls back to finer ones
// only for pieces that are still too large.
type Splitter struct {
	separators   []string
	chunkSize    int
	chunkOverlap int
}

// SplitterOption configures the Splitter.
type SplitterOption func(*Splitter)

// WithChunkSize sets the maximum chunk length in bytes.
func WithChunkSize(size int) SplitterOption {
	return func(s *Splitter) {
		s.chunkSize = size
	}
}

// WithChunkOverlap sets the overlap carried between adjacent chunks.
func WithChunkOverlap(overlap int) SplitterOption {
	return func(s *Splitter) {
		s.chunkOverlap = overlap
	}
}

// WithSeparators sets custom separators, coarsest first.
func WithSeparators(separators []string) SplitterOption {
	return func(s *Splitter) {
		s.separators = separators
	}
}

// NewSplitter creates a splitter with chunk size 1000 and overlap 100.
func NewSplitter(opts ...SplitterOption) *Splitter {
	s := &Splitter{
		separators:   []string{"\n\n", "\n", " ", ""},
		chunkSize:    1000,
		chunkOverlap: 100,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.chunkOverlap >= s.chunkSize {
		s.chunkOverlap = s.chunkSize / 4
	}
	return s
}

// Split divides text into chunks no longer than the configured size.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.splitRecursive(text, s.separators)
}

func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return s.splitByWidth(text)
	}

	separator := separators[0]
	rest := separators[1:]
	if separator == "" {
		return s.splitByWidth(text)
	}

	var pieces []string
	for _, piece := range strings.Split(text, separator) {
		if strings.TrimSpace(piece) == "" {
			continue
		}
		if len(piece) <= s.chunkSize {
			pieces = append(pieces, piece)
		} else {
			pieces = append(pieces, s.splitRecursive(piece, rest)...)
		}
	}
	return s.merge(pieces, separator)
}

// splitByWidth cuts text at fixed offsets, carrying the configured overlap.
func (s *Splitter) splitByWidth(text string) []string {
	var chunks []string
	step := s.chunkSize - s.chunkOverlap
	for i := 0; i < len(text); i += step {
		end := i + s.chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[i:end])
		if end == len(text) {
			break
		}
	}
	return chunks
}

// merge packs adjacent pieces back together up to the chunk size.
func (s *Splitter) merge(pieces []string, separator string) []string {
	var merged []string
	var current string

	for _, piece := range pieces {
		if current == "" {
			current = piece
			continue
		}
		proposed := current + separator + piece
		if len(proposed) <= s.chunkSize {
			current = proposed
		} else {
			merged = append(merged, current)
			current = piece
		}
	}
	if current != "" {
		merged = append(merged, current)
	}
	return merged
}
