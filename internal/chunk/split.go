// Package chunk splits oversized source text into overlapping chunks and
// condenses per-chunk key points into a fixed-size list.
package chunk

// Default split parameters.
const (
	DefaultSize    = 4000
	DefaultOverlap = 200
)

// Chunk is one bounded, ordered slice of the source text.
type Chunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Split cuts text into runs of at most size runes. Each chunk starts
// size-overlap runes after the previous one and the last chunk ends at the end
// of the text. An overlap outside [0, size) is treated as zero.
func Split(text string, size, overlap int) []Chunk {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	step := size - overlap

	var chunks []Chunk
	for start := 0; ; start += step {
		end := min(start+size, len(runes))
		chunks = append(chunks, Chunk{Index: len(chunks), Text: string(runes[start:end])})
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// Reassemble rebuilds the text Split was given, dropping the leading overlap
// of every chunk after the first.
func Reassemble(chunks []Chunk, overlap int) string {
	var out []rune
	for i, c := range chunks {
		r := []rune(c.Text)
		if i > 0 && overlap > 0 {
			r = r[min(overlap, len(r)):]
		}
		out = append(out, r...)
	}
	return string(out)
}

// Previews returns the first perChunk runes of each non-blank chunk, stopping
// once total runes have been collected.
func Previews(chunks []Chunk, perChunk, total int) []string {
	var out []string
	used := 0
	for _, c := range chunks {
		if isBlank(c.Text) {
			continue
		}
		r := []rune(c.Text)
		if len(r) > perChunk {
			r = r[:perChunk]
		}
		out = append(out, string(r))
		used += len(r)
		if used >= total {
			break
		}
	}
	return out
}
