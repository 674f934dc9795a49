// Package textutil sanitizes entry titles for filesystem use. Feed titles
// carry whatever punctuation and Unicode the publisher emitted, so anything
// written to disk goes through here first.
package textutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// fileNameReplacer replaces characters that are forbidden in filenames on at
// least one supported platform. Everything maps to a dash so the visible name
// keeps its shape.
var fileNameReplacer = strings.NewReplacer(
	"\\", "-",
	"/", "-",
	":", "-",
	"*", "-",
	"?", "-",
	"\"", "-",
	"<", "-",
	">", "-",
	"|", "-",
)

// SanitizeFileName makes an entry title safe to use as a filename. The title
// is NFC-normalized first so that decomposed Unicode from feed payloads does
// not produce visually identical but distinct names. The result is trimmed of
// leading and trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	name = norm.NFC.String(name)
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}
