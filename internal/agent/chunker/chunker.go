// Package chunker splits long replies into platform-sized messages.
package chunker

import (
	"strings"
	"unicode"
)

// TelegramLimit is the maximum length of a single Telegram text message.
const TelegramLimit = 4096

// Split cuts text into ordered chunks of at most limit runes.
//
// Text that already fits is returned trimmed as a single chunk, and blank
// text yields no chunks. Otherwise each cut is
// made at the rightmost newline in the window, then after the rightmost
// sentence end (". "), then at the rightmost space, and only as a last resort
// exactly at limit. Chunks are trimmed and never empty. A limit <= 0 disables
// splitting.
func Split(text string, limit int) []string {
	rest := []rune(text)
	if limit <= 0 || len(rest) <= limit {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			return []string{trimmed}
		}
		return nil
	}

	var chunks []string
	rest = trimLeft(rest)
	for len(rest) > 0 {
		if len(rest) <= limit {
			if chunk := strings.TrimSpace(string(rest)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			break
		}
		at := splitPoint(rest, limit)
		if chunk := strings.TrimSpace(string(rest[:at])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		rest = trimLeft(rest[at:])
	}
	return chunks
}

// splitPoint returns the cut offset for text, which is longer than limit and
// starts with a non-space rune. The result is in (0, limit].
func splitPoint(text []rune, limit int) int {
	window := text[:min(len(text), limit)]

	if i := lastIndex(window, '\n'); i > 0 {
		return i
	}
	for i := len(window) - 2; i >= 0; i-- {
		if window[i] == '.' && window[i+1] == ' ' {
			return i + 1
		}
	}
	if i := lastIndex(window, ' '); i > 0 {
		return i
	}
	return limit
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

func trimLeft(runes []rune) []rune {
	i := 0
	for i < len(runes) && unicode.IsSpace(runes[i]) {
		i++
	}
	return runes[i:]
}
