package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name string
		in   string
		size int
		want []string
	}{
		{name: "even split", in: "abcdef", size: 2, want: []string{"ab", "cd", "ef"}},
		{name: "remainder", in: "abcde", size: 2, want: []string{"ab", "cd", "e"}},
		{name: "size larger than input", in: "abc", size: 10, want: []string{"abc"}},
		{name: "empty input", in: "", size: 4, want: nil},
		{name: "non-positive size", in: "abc", size: 0, want: []string{"abc"}},
		{name: "multibyte runes", in: "héllo", size: 2, want: []string{"hé", "ll", "o"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitChunks(tt.in, tt.size))
		})
	}
}
