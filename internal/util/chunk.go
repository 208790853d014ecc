// Package util holds small internal helpers shared across packages.
package util

// SplitChunks segments s into pieces of at most size runes, preserving
// multi-byte characters. A non-positive size yields the whole string as
// one piece; an empty string yields no pieces.
func SplitChunks(s string, size int) []string {
	if s == "" {
		return nil
	}
	if size <= 0 {
		return []string{s}
	}
	runes := []rune(s)
	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
