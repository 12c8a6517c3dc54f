package textutil_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sensei/pkg/utils/textutil"
)

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		expected  []string
	}{
		{name: "短文本", text: "hello", chunkSize: 10, overlap: 2, expected: []string{"hello"}},
		{name: "空文本", text: "   ", chunkSize: 10, overlap: 2, expected: nil},
		{name: "无效块大小", text: "hello", chunkSize: 0, overlap: 0, expected: nil},
		{name: "带重叠", text: "abcdefghij", chunkSize: 4, overlap: 1, expected: []string{"abcd", "defg", "ghij"}},
		{name: "重叠过大被截断", text: "abcdef", chunkSize: 3, overlap: 5, expected: []string{"abc", "bcd", "cde", "def"}},
		{name: "多字节字符", text: "你好世界和平", chunkSize: 4, overlap: 0, expected: []string{"你好世界", "和平"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutil.SplitIntoChunks(tt.text, tt.chunkSize, tt.overlap))
		})
	}
}

func TestSplitIntoChunks_Bounded(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 200)
	chunks := textutil.SplitIntoChunks(text, 512, 50)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 512)
	}
}

func TestTokenize(t *testing.T) {
	got := textutil.Tokenize("CONFIDENTIAL: the secret project codename is BLUEBERRY_PIE.")
	assert.Equal(t, []string{"confidential", "the", "secret", "project", "codename", "is", "blueberry_pie"}, got)

	assert.Empty(t, textutil.Tokenize(" ,.;!? "))
	assert.Equal(t, []string{"scan", "192", "168", "1", "1"}, textutil.Tokenize("Scan 192.168.1.1"))
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "how do I scan a host", textutil.CollapseSpaces("  how do\tI \n scan   a host "))
	assert.Equal(t, "", textutil.CollapseSpaces(" \t\n"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hel", textutil.TruncateString("hello", 3))
	assert.Equal(t, "hello", textutil.TruncateString("hello", 10))
	assert.Equal(t, "你好", textutil.TruncateString("你好世界", 2))
	assert.Equal(t, "", textutil.TruncateString("hello", -1))
}
