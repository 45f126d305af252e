package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
)

func TestChunkTextSlidingWindow(t *testing.T) {
	text := strings.Repeat("a", 2500)
	chunks, err := ChunkText(text, 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, 0, chunks[0].SpanStart)
	assert.Equal(t, 1000, chunks[0].SpanEnd)
	assert.Equal(t, 800, chunks[1].SpanStart)
	assert.Equal(t, 1800, chunks[1].SpanEnd)
	assert.Equal(t, 1600, chunks[2].SpanStart)
	assert.Equal(t, 2500, chunks[2].SpanEnd)

	for i, c := range chunks {
		assert.Equal(t, i, c.Ordinal)
	}
}

func TestChunkTextOverlapInvariant(t *testing.T) {
	// 片段 i+1 的开头 overlap 个字符等于片段 i 的末尾
	var sb strings.Builder
	for i := 0; i < 1000; i++ {
		sb.WriteRune(rune('a' + i%26))
	}
	text := sb.String()

	const size, overlap = 300, 50
	chunks, err := ChunkText(text, size, overlap)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Content)
		curr := []rune(chunks[i].Content)
		assert.Equal(t, string(prev[len(prev)-overlap:]), string(curr[:overlap]))
	}

	// 各片段去掉重叠前缀后拼接还原原文
	var rebuilt strings.Builder
	rebuilt.WriteString(chunks[0].Content)
	for i := 1; i < len(chunks); i++ {
		curr := []rune(chunks[i].Content)
		rebuilt.WriteString(string(curr[overlap:]))
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkTextShorterThanWindow(t *testing.T) {
	chunks, err := ChunkText("short", 1000, 200)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short", chunks[0].Content)
	assert.Equal(t, 0, chunks[0].SpanStart)
	assert.Equal(t, 5, chunks[0].SpanEnd)
}

func TestChunkTextEmpty(t *testing.T) {
	chunks, err := ChunkText("", 1000, 200)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkTextMultibyte(t *testing.T) {
	// 窗口按 rune 而不是字节滑动
	text := strings.Repeat("中文字符测试", 100)
	chunks, err := ChunkText(text, 100, 10)
	require.NoError(t, err)

	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Content)), 100)
	}
	assert.Equal(t, 600, chunks[len(chunks)-1].SpanEnd)
}

func TestChunkTextInvalidParams(t *testing.T) {
	_, err := ChunkText("text", 0, 0)
	assert.ErrorIs(t, err, domainKnowledge.ErrInvalidChunkParams)

	_, err = ChunkText("text", 100, 100)
	assert.ErrorIs(t, err, domainKnowledge.ErrInvalidChunkParams)

	_, err = ChunkText("text", 100, 150)
	assert.ErrorIs(t, err, domainKnowledge.ErrInvalidChunkParams)

	_, err = ChunkText("text", 100, -1)
	assert.ErrorIs(t, err, domainKnowledge.ErrInvalidChunkParams)
}
