package channel

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{name: "short ascii untouched", in: "CPU high", max: 100, want: "CPU high"},
		{name: "ascii cut at limit", in: "abcdef", max: 3, want: "abc"},
		{name: "chinese cut on rune boundary", in: "磁盘空间不足", max: 3, want: "磁盘空"},
		{name: "zero max", in: "abc", max: 0, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateRunes(tt.in, tt.max)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestTruncateRunesLongChinese(t *testing.T) {
	long := strings.Repeat("训练任务失败，", 200)

	got := truncateRunes(long, 500)
	assert.Equal(t, 500, utf8.RuneCountInString(got))
	assert.True(t, utf8.ValidString(got))
}
