package console

import "strings"

// TokenizerOptions are the special characters of Tokenize.
type TokenizerOptions struct {
	Escape    rune
	Separator rune
	Joiner    rune
}

// DefaultTokenizer splits on spaces, joins with double quotes and escapes
// with a backslash.
var DefaultTokenizer = TokenizerOptions{Escape: '\\', Separator: ' ', Joiner: '"'}

// Tokenize splits text with DefaultTokenizer.
func Tokenize(text string) []string {
	return DefaultTokenizer.Tokenize(text)
}

// Tokenize splits text on the separator. Text between joiners is kept as a
// single token, even when empty. A joiner only opens when a matching
// unescaped joiner follows; otherwise it is a regular character.
func (o TokenizerOptions) Tokenize(text string) []string {
	chars := []rune(text)
	result := []string{}
	var current strings.Builder
	joining, escaped := false, false

	flush := func(keepEmpty bool) {
		if keepEmpty || current.Len() > 0 {
			result = append(result, current.String())
		}
		current.Reset()
	}

	for i, char := range chars {
		switch char {
		case o.Escape:
			if escaped {
				current.WriteRune(char)
			}
			escaped = !escaped

		case o.Joiner:
			switch {
			case escaped:
				escaped = false
				current.WriteRune(char)
			case !joining:
				if o.closes(chars, i) {
					joining = true
					flush(false)
				} else {
					current.WriteRune(char)
				}
			default:
				flush(true)
				joining = false
			}

		case o.Separator:
			if joining {
				current.WriteRune(char)
			} else {
				flush(false)
			}

		default:
			current.WriteRune(char)
		}
	}
	flush(false)
	return result
}

// closes reports whether an unescaped joiner appears after position i.
func (o TokenizerOptions) closes(chars []rune, i int) bool {
	for j := i + 1; j < len(chars); j++ {
		if chars[j] == o.Joiner && chars[j-1] != o.Escape {
			return true
		}
	}
	return false
}
