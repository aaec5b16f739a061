package ingest

import "strings"

// Markers used to assemble a chunk with its neighbor context. The
// central chunk stays recoverable from the combined block so the
// unmodified chunk remains the unit of storage and citation.
const (
	centralOpen  = "<central>"
	centralClose = "</central>"
	joinerOpen   = "<joiner>"
	joinerClose  = "</joiner>"
)

// DefaultContextWindow is the number of neighbor chunks included on
// each side when combining.
const DefaultContextWindow = 2

// Combine builds one context-enriched text block per chunk: the chunk
// itself wrapped in central markers, with up to window neighbors on
// each side wrapped in joiner markers. At sequence boundaries only the
// chunks that exist are included.
func Combine(chunks []string, window int) []string {
	if window < 0 {
		window = 0
	}

	combined := make([]string, 0, len(chunks))
	for i := range chunks {
		var b strings.Builder

		lo := i - window
		if lo < 0 {
			lo = 0
		}
		hi := i + window
		if hi > len(chunks)-1 {
			hi = len(chunks) - 1
		}

		for j := lo; j <= hi; j++ {
			if b.Len() > 0 {
				b.WriteString(" ")
			}
			if j == i {
				b.WriteString(centralOpen)
				b.WriteString(chunks[j])
				b.WriteString(centralClose)
			} else {
				b.WriteString(joinerOpen)
				b.WriteString(chunks[j])
				b.WriteString(joinerClose)
			}
		}

		combined = append(combined, b.String())
	}

	return combined
}

// StripContext recovers the original chunk from a combined block. A
// block without central markers is returned unchanged.
func StripContext(block string) string {
	start := strings.Index(block, centralOpen)
	if start < 0 {
		return block
	}
	rest := block[start+len(centralOpen):]
	end := strings.Index(rest, centralClose)
	if end < 0 {
		return block
	}
	return rest[:end]
}
