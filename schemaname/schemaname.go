// Package schemaname validates and quotes a raw PostgreSQL schema name for
// unsanitized splicing into "SET LOCAL search_path TO ..." and
// "CREATE SCHEMA IF NOT EXISTS ..." statements.
package schemaname

import (
	"strings"

	"github.com/jakoblilliemarck/fxmq"
)

// maxLen is PostgreSQL's default NAMEDATALEN (64) minus the trailing NUL.
const maxLen = 63

// Quote validates raw against PostgreSQL identifier rules and returns the
// quoted form with internal double-quotes doubled and the whole string
// wrapped in double quotes. There is intentionally no further
// character-class restriction beyond the first character: quoting renders
// arbitrary inner content safe.
func Quote(raw string) (string, error) {
	if len(raw) == 0 {
		return "", &fxmq.IdentifierError{Kind: fxmq.IdentifierEmpty, Raw: raw}
	}
	if len(raw) > maxLen {
		return "", &fxmq.IdentifierError{Kind: fxmq.IdentifierTooLarge, Raw: raw}
	}

	first := rune(raw[0])
	if !isLetter(first) && first != '_' {
		return "", &fxmq.IdentifierError{Kind: fxmq.IdentifierInvalidFirstChar, Raw: raw}
	}

	escaped := strings.ReplaceAll(raw, `"`, `""`)
	return `"` + escaped + `"`, nil
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
