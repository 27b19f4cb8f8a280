package textutil

import "strings"

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in one path segment.
// Slashes, backslashes, colons and asterisks become dashes, other unsafe
// characters are removed, and trailing dots are dropped so the segment stays
// valid on SMB shares.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(fileNameReplacer.Replace(strings.TrimSpace(name)))
	name = strings.TrimRight(name, ". ")
	return strings.Join(strings.Fields(name), " ")
}
