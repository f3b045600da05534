// Package rag implements the retrieval pipeline: chunking, embedding,
// vector storage, and the three-step query flow of reformulation,
// retrieval, and synthesis.
package rag

import "strings"

// Splitter breaks documents into overlapping chunks sized for embedding.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter creates a recursive character splitter. Splits prefer
// paragraph breaks, then line breaks, then spaces, then hard character
// cuts.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   []string{"\n\n", "\n", " ", ""},
	}
}

// Split chunks text into pieces at most chunkSize runes long, with
// chunkOverlap runes carried between adjacent chunks. Empty input yields
// no chunks.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	if len([]rune(text)) <= s.chunkSize {
		return []string{text}
	}

	separator := separators[len(separators)-1]
	rest := separators
	for i, sep := range separators {
		if sep == "" || strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var parts []string
	if separator == "" {
		parts = splitRunes(text, s.chunkSize)
	} else {
		parts = strings.Split(text, separator)
	}

	var chunks []string
	var pending []string
	pendingLen := 0

	flush := func() {
		if len(pending) == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(pending, separator))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		// Retain a tail of parts to overlap into the next chunk.
		for pendingLen > s.chunkOverlap && len(pending) > 0 {
			pendingLen -= len([]rune(pending[0])) + len(separator)
			pending = pending[1:]
		}
	}

	for _, part := range parts {
		partLen := len([]rune(part))
		if partLen > s.chunkSize {
			flush()
			pending = nil
			pendingLen = 0
			chunks = append(chunks, s.split(part, rest)...)
			continue
		}
		if pendingLen+partLen+len(separator) > s.chunkSize {
			flush()
		}
		pending = append(pending, part)
		pendingLen += partLen + len(separator)
	}
	if len(pending) > 0 {
		chunk := strings.TrimSpace(strings.Join(pending, separator))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	return chunks
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	var parts []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[start:end]))
	}
	return parts
}
