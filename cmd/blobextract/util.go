package main

import "strings"

// splitSkipMagic parses a comma-separated --skip-magic value into a
// slice of detected-type prefixes, dropping empty entries from trailing
// or doubled commas.
func splitSkipMagic(s string) []string {
	if s == "" {
		return nil
	}

	var out []string

	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
