// Package magic does minimal byte-signature sniffing for the skip-magic
// filter: files whose detected type starts with one of a configured
// prefix list (ELF, JPEG, ... by default) are terminal tasks, skipped
// before the pattern scanner ever opens them.
//
// Grounded on unblob's processing._should_skip_magic and its
// DEFAULT_SKIP_MAGIC; the original shells out to libmagic's full type
// database, which this engine's dependency set has no binding for, so
// this package recognizes only the four signatures the default skip list
// names.
package magic

import "bytes"

// DefaultSkip mirrors unblob's DEFAULT_SKIP_MAGIC: file types not worth
// recursing into because they are themselves leaf binary formats, never
// containers.
var DefaultSkip = []string{"ELF", "JPEG", "GIF", "PNG"}

type signature struct {
	name   string
	prefix []byte
}

var signatures = []signature{
	{"ELF", []byte{0x7F, 'E', 'L', 'F'}},
	{"JPEG", []byte{0xFF, 0xD8, 0xFF}},
	{"GIF", []byte("GIF8")},
	{"PNG", []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
}

// Detect returns the recognized type name for the leading bytes of a
// file, or "" if none of the known signatures match.
func Detect(header []byte) string {
	for _, sig := range signatures {
		if bytes.HasPrefix(header, sig.prefix) {
			return sig.name
		}
	}

	return ""
}

// ShouldSkip reports whether the detected type for header starts with
// any of the configured skip prefixes, the same startswith semantics as
// _should_skip_magic.
func ShouldSkip(header []byte, skip []string) bool {
	detected := Detect(header)
	if detected == "" {
		return false
	}

	for _, prefix := range skip {
		if len(detected) >= len(prefix) && detected[:len(prefix)] == prefix {
			return true
		}
	}

	return false
}
