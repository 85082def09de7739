package assembler

import "strings"

// Sequences produced when UTF-8 punctuation in the extract was decoded as Latin-1.
var mojibake = strings.NewReplacer(
	"\u00ef\u00ac\u0081", `"`,
	"\u00ef\u00ac\u0082", `"`,
	"\u00e2\u0084\u00a2", "'",
	"\u00ef\u00bf\u00bd", "\u00b0",
	"\ufffd", "\u00b0",
)

func normalizeEncoding(s string) string {
	return mojibake.Replace(s)
}
