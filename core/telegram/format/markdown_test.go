package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeMarkdown(t *testing.T) {
	v1, err := EscapeMarkdown("snake_case *bold* `code` [link]", MarkdownV1)
	require.NoError(t, err)
	assert.Equal(t, "snake\\_case \\*bold\\* \\`code\\` \\[link]", v1)

	v2, err := EscapeMarkdown("1+1=2. Done!", MarkdownV2Version)
	require.NoError(t, err)
	assert.Equal(t, "1\\+1\\=2\\. Done\\!", v2)

	_, err = EscapeMarkdown("x", 3)
	assert.Error(t, err)
}

func TestMention(t *testing.T) {
	assert.Equal(t, `<a href="tg://user?id=42">Ann &amp; Bob</a>`, Mention(42, "Ann & Bob"))
	assert.Equal(t, "there", Mention(0, ""))
}
