// Package chunker splits free-form property descriptions into pieces small
// enough to embed individually.
package chunker

import "strings"

// DefaultMaxLen is the chunk budget in characters.
const DefaultMaxLen = 400

// Split packs whole sentences into chunks of at most maxLen characters.
// Sentences longer than the budget are split on word boundaries instead of
// being dropped. Chunk order follows text order.
func Split(text string, maxLen int) []string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLen
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, sentence := range sentences(text) {
		if len(sentence) > maxLen {
			flush()
			chunks = append(chunks, splitWords(sentence, maxLen)...)
			continue
		}

		if current.Len() > 0 && current.Len()+1+len(sentence) > maxLen {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()

	return chunks
}

// sentences splits on terminal punctuation, keeping the punctuation attached.
func sentences(text string) []string {
	var out []string
	var current strings.Builder

	for _, r := range strings.TrimSpace(text) {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(current.String()); s != "" {
				out = append(out, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// splitWords packs words of an oversized sentence into maxLen windows.
func splitWords(sentence string, maxLen int) []string {
	var out []string
	var current strings.Builder

	for _, word := range strings.Fields(sentence) {
		if current.Len() > 0 && current.Len()+1+len(word) > maxLen {
			out = append(out, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		out = append(out, current.String())
	}
	return out
}
