package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitterShortText(t *testing.T) {
	s := NewSplitter(100, 20)
	chunks := s.Split("hello world")
	require.Len(t, chunks, 1)
	assert.Equal(t, "hello world", chunks[0])
}

func TestSplitterEmptyText(t *testing.T) {
	s := NewSplitter(100, 20)
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n  "))
}

func TestSplitterLongText(t *testing.T) {
	s := NewSplitter(100, 20)

	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog.\n\n")
	}

	chunks := s.Split(b.String())
	require.GreaterOrEqual(t, len(chunks), 3)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, len([]rune(chunk)), 100)
		assert.NotEmpty(t, chunk)
	}
}

func TestSplitterOverlap(t *testing.T) {
	s := NewSplitter(50, 20)

	text := strings.Repeat("alpha beta gamma delta epsilon ", 10)
	chunks := s.Split(text)
	require.GreaterOrEqual(t, len(chunks), 2)

	// Adjacent chunks share trailing words through the overlap window.
	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])
	require.NotEmpty(t, first)
	assert.Contains(t, second, first[len(first)-1])
}

func TestSplitterUnbreakableRun(t *testing.T) {
	s := NewSplitter(10, 0)
	chunks := s.Split(strings.Repeat("x", 35))
	require.Len(t, chunks, 4)
	assert.Equal(t, strings.Repeat("x", 10), chunks[0])
	assert.Equal(t, strings.Repeat("x", 5), chunks[3])
}
