// Package textsplit splits extracted document text into overlapping chunks,
// preferring paragraph, line, sentence and word boundaries in that order.
package textsplit

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried coarsest first. The empty separator splits
// between runes and guarantees every piece fits.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Span is a half-open byte range [Start, End) of the source text.
type Span struct {
	Start int
	End   int
}

// Splitter is safe for concurrent use; it holds no state between calls.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

func New(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// Split returns the trimmed, non-empty chunk texts in document order.
func (s *Splitter) Split(text string) []string {
	spans := s.Spans(text)
	chunks := make([]string, 0, len(spans))
	for _, sp := range spans {
		if chunk := strings.TrimSpace(text[sp.Start:sp.End]); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

// Spans returns the untrimmed chunk ranges. Each span holds at most
// ChunkSize runes, consecutive spans touch or overlap by at most
// ChunkOverlap runes, and together they cover the whole text.
func (s *Splitter) Spans(text string) []Span {
	if text == "" {
		return nil
	}
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, 0, seps)
}

type piece struct {
	start  int
	end    int
	length int // runes
}

func (s *Splitter) split(text string, base int, seps []string) []Span {
	sep, rest := pickSeparator(text, seps)
	pieces := splitKeep(text, base, sep)

	var out []Span
	var good []piece
	for _, p := range pieces {
		if p.length < s.ChunkSize {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, Span{Start: p.start, End: p.end})
			continue
		}
		out = append(out, s.split(text[p.start-base:p.end-base], p.start, rest)...)
	}
	if len(good) > 0 {
		out = append(out, s.merge(good)...)
	}
	return out
}

// merge packs contiguous pieces into windows of at most ChunkSize runes,
// starting each new window with a tail of the previous one.
func (s *Splitter) merge(pieces []piece) []Span {
	var out []Span
	var current []piece
	total := 0
	for _, p := range pieces {
		if total+p.length > s.ChunkSize && len(current) > 0 {
			out = append(out, Span{Start: current[0].start, End: current[len(current)-1].end})
			for total > s.ChunkOverlap || (total+p.length > s.ChunkSize && total > 0) {
				total -= current[0].length
				current = current[1:]
			}
		}
		current = append(current, p)
		total += p.length
	}
	if len(current) > 0 {
		out = append(out, Span{Start: current[0].start, End: current[len(current)-1].end})
	}
	return out
}

func pickSeparator(text string, seps []string) (string, []string) {
	for i, sep := range seps {
		if sep == "" || strings.Contains(text, sep) {
			return sep, seps[i+1:]
		}
	}
	return "", nil
}

// splitKeep cuts text after every occurrence of sep, so the pieces
// concatenate back to text exactly.
func splitKeep(text string, base int, sep string) []piece {
	var pieces []piece
	if sep == "" {
		for i := 0; i < len(text); {
			_, size := utf8.DecodeRuneInString(text[i:])
			pieces = append(pieces, piece{start: base + i, end: base + i + size, length: 1})
			i += size
		}
		return pieces
	}
	offset := 0
	for offset < len(text) {
		idx := strings.Index(text[offset:], sep)
		end := len(text)
		if idx >= 0 {
			end = offset + idx + len(sep)
		}
		pieces = append(pieces, piece{
			start:  base + offset,
			end:    base + end,
			length: utf8.RuneCountInString(text[offset:end]),
		})
		offset = end
	}
	return pieces
}
