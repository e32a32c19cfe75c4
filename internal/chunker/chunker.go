package chunker

import "strings"

const (
	// ChunkSize is the sliding window width in bytes.
	ChunkSize = 1000
	// ChunkOverlap is how far the window rewinds after each chunk so
	// adjacent chunks share context.
	ChunkOverlap = 200
)

// Piece is one window of the source text. Start/End are offsets into the
// original text and are recorded before Content is trimmed.
type Piece struct {
	Content    string
	Start      int
	End        int
	TokenCount int
}

// Split cuts text into overlapping pieces. A window boundary that would land
// mid-text is snapped back to just after the last sentence terminator or
// newline, but only when that break point falls in the second half of the
// window, so chunks never shrink below ChunkSize/2.
func Split(text string) []Piece {
	if len(text) <= ChunkSize {
		return []Piece{{
			Content:    strings.TrimSpace(text),
			Start:      0,
			End:        len(text),
			TokenCount: EstimateTokens(text),
		}}
	}

	var pieces []Piece
	start := 0
	for {
		end := start + ChunkSize
		last := false
		if end >= len(text) {
			end = len(text)
			last = true
		} else {
			for i := end - 1; i > start+ChunkSize/2; i-- {
				if text[i] == '.' || text[i] == '\n' {
					end = i + 1
					break
				}
			}
		}
		content := strings.TrimSpace(text[start:end])
		pieces = append(pieces, Piece{
			Content:    content,
			Start:      start,
			End:        end,
			TokenCount: EstimateTokens(content),
		})
		if last {
			break
		}
		start = end - ChunkOverlap
	}
	return pieces
}

// EstimateTokens is a cheap token-count heuristic: one token per word for
// latin text plus one per rune for CJK and other non-ASCII content.
func EstimateTokens(text string) int {
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}
