package attach

import (
	"net/url"
	"os"
	"strings"
)

// ParseDroppedPaths interprets pasted text as a file drop. Terminals paste
// dropped files as paths separated by whitespace, with spaces escaped by a
// backslash or the whole path quoted, sometimes as file:// URLs. ok is false
// unless every token names an existing regular file.
func ParseDroppedPaths(text string) (paths []string, ok bool) {
	return parseDropped(text, isRegularFile)
}

func parseDropped(text string, exists func(string) bool) ([]string, bool) {
	tokens := splitShellWords(strings.TrimSpace(text))
	if len(tokens) == 0 {
		return nil, false
	}
	paths := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "file://") {
			u, err := url.Parse(tok)
			if err != nil {
				return nil, false
			}
			tok = u.Path
		}
		if !exists(tok) {
			return nil, false
		}
		paths = append(paths, tok)
	}
	return paths, true
}

func splitShellWords(s string) []string {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inWord = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
