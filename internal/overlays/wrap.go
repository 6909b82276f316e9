package overlays

import "strings"

// Wrap breaks text into lines of at most maxChars runes. Whitespace
// separated words are kept whole when they fit on a line; a run longer than
// a line, which is the normal case for Japanese text, is cut every
// maxChars runes.
func Wrap(text string, maxChars int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if maxChars <= 0 {
		return []string{strings.Join(words, " ")}
	}

	var (
		lines []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, string(cur))
			cur = nil
		}
	}

	for _, word := range words {
		w := []rune(word)

		need := len(w)
		if len(cur) > 0 {
			need++
		}
		if len(cur)+need <= maxChars {
			if len(cur) > 0 {
				cur = append(cur, ' ')
			}
			cur = append(cur, w...)
			continue
		}

		flush()
		for len(w) > maxChars {
			lines = append(lines, string(w[:maxChars]))
			w = w[maxChars:]
		}
		cur = w
	}
	flush()

	return lines
}
