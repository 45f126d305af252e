package ingest

import (
	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
)

// ChunkText 按固定窗口切分文本
// 窗口按 rune 计数滑动，步长为 size-overlap：除首个片段外，
// 每个片段的开头 overlap 个字符与前一片段的末尾重合；
// 末尾不足一个窗口时产出截短片段。Span 记录片段在原文中的 rune 偏移。
func ChunkText(text string, size, overlap int) ([]*domainKnowledge.Chunk, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, domainKnowledge.ErrInvalidChunkParams
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []*domainKnowledge.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		chunks = append(chunks, &domainKnowledge.Chunk{
			Ordinal:   len(chunks),
			Content:   string(runes[start:end]),
			SpanStart: start,
			SpanEnd:   end,
		})

		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
