package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsNPerRow(t *testing.T) {
	buttons := []Button{{"A", "a"}, {"B", "b"}, {"C", "c"}}

	m := InlineButtonsNPerRow(buttons, 2)
	require.Len(t, m.Inline, 2)
	assert.Len(t, m.Inline[0], 2)
	assert.Equal(t, Button{"C", "c"}, m.Inline[1][0])

	assert.Len(t, InlineButtons(buttons...).Inline, 3)
}

func TestToTele(t *testing.T) {
	assert.Nil(t, ToTele(nil))
	assert.Nil(t, ToTele(&Markup{}))

	inline := ToTele(InlineButtons(Button{Text: "Finish", Data: "finish_quiz"}))
	require.NotNil(t, inline)
	require.Len(t, inline.InlineKeyboard, 1)
	assert.Equal(t, "finish_quiz", inline.InlineKeyboard[0][0].Data)
	assert.Empty(t, inline.InlineKeyboard[0][0].Unique)

	reply := ToTele(ReplyButtons(true, []string{"❓ Quiz", "🌐 Translator"}))
	require.NotNil(t, reply)
	assert.True(t, reply.ResizeKeyboard)
	assert.True(t, reply.OneTimeKeyboard)
	assert.Equal(t, "🌐 Translator", reply.ReplyKeyboard[0][1].Text)

	assert.True(t, ToTele(RemoveKeyboard()).RemoveKeyboard)
}
