package render

import "strings"

// splitLines splits status text on newlines dropping empty lines
func splitLines(text string) []string {

	var out []string

	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}

	return out
}
