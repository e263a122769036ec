package render

import "unicode/utf8"

// MaxChunkLen keeps every text send under Telegram's 4096-character ceiling.
const MaxChunkLen = 3900

// Chunk slices text into consecutive pieces of at most limit characters.
// Slicing is fixed-width and not word-aware. Boundaries always fall between
// runes, so every piece is valid UTF-8. Empty text yields no chunks.
func Chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = MaxChunkLen
	}

	chunks := make([]string, 0, utf8.RuneCountInString(text)/limit+1)
	start, count := 0, 0
	for i := range text {
		if count == limit {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}
