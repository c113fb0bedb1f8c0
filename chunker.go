package examgen

import "strings"

// PageText is one page of already-extracted chapter text.
type PageText struct {
	PageNumber int
	Text       string
}

// SplitPages splits extracted chapter text into pages on form feeds, the
// conventional page separator emitted by text extractors. Text without form
// feeds becomes a single page 1.
func SplitPages(text string) []PageText {
	parts := strings.Split(text, "\f")
	pages := make([]PageText, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, PageText{PageNumber: i + 1, Text: part})
	}
	return pages
}

// ChunkPages slices each page into overlapping fixed-size chunks and assigns
// chapter-wide chunk indices. Whitespace-only chunks are dropped.
func ChunkPages(pages []PageText, chapterID, chunkSize, overlap int) []ChunkMeta {
	if chunkSize < 1 {
		return nil
	}
	step := chunkSize - overlap
	if step < 1 {
		step = 1
	}

	var chunks []ChunkMeta
	for _, page := range pages {
		runes := []rune(page.Text)
		for start := 0; start < len(runes); start += step {
			end := start + chunkSize
			if end > len(runes) {
				end = len(runes)
			}
			text := strings.TrimSpace(string(runes[start:end]))
			if text != "" {
				chunks = append(chunks, ChunkMeta{
					ChapterID:  chapterID,
					PageNumber: page.PageNumber,
					Text:       text,
					ChunkIndex: len(chunks),
				})
			}
			if end == len(runes) {
				break
			}
		}
	}
	return chunks
}
