package dialog

import (
	"github.com/m3rciful/dialogbot/core/telegram/keyboard"
	"github.com/m3rciful/dialogbot/internal/quiz"
)

// Callback payloads and namespaces.
const (
	CbFinish          = "finish"
	CbFinishFact      = "finish_random"
	CbFinishAssistant = "finish_gpt_dialog"
	CbFinishPersona   = "finish_talk_dialog"
	CbFinishTranslate = "finish_translate"
	CbFinishVoice     = "finish_voice"
	CbFinishQuiz      = "finish_quiz"

	CbFactMore          = "random_more"
	CbPersonaPrefix     = "talk_"
	CbChangePersonality = "change_personality"
	CbQuizTopicPrefix   = "quiz_topic_"
	CbQuizMore          = "quiz_more"
	CbQuizChange        = "quiz_change"
	CbLangPrefix        = "lang_"
	CbChangeLang        = "change_lang"
)

// Main menu labels. Each one starts the same flow as its command.
const (
	LabelFact      = "💡 Interesting Fact"
	LabelAssistant = "🤖 ChatGPT"
	LabelPersona   = "👥 Chat with Personality"
	LabelQuiz      = "❓ Quiz"
	LabelTranslate = "🌐 Translator"
	LabelVoice     = "🎤 Voice-to-Voice Conversations"
)

// genericFinish lists the finish payloads handled by the shared finish transition.
var genericFinish = map[string]struct{}{
	CbFinish:          {},
	CbFinishFact:      {},
	CbFinishAssistant: {},
	CbFinishPersona:   {},
	CbFinishTranslate: {},
	CbFinishVoice:     {},
}

// MainMenu is the reply keyboard shown after /start.
func MainMenu() *keyboard.Markup {
	return keyboard.ReplyButtons(true,
		[]string{LabelFact, LabelAssistant},
		[]string{LabelPersona, LabelQuiz},
		[]string{LabelTranslate, LabelVoice},
	)
}

// FinishMenu is a single "Finish" button sending payload.
func FinishMenu(payload string) *keyboard.Markup {
	return keyboard.InlineButtons(keyboard.Button{Text: "Finish", Data: payload})
}

// FactMenu follows every fact.
func FactMenu() *keyboard.Markup {
	return keyboard.InlineButtons(
		keyboard.Button{Text: "Another fact", Data: CbFactMore},
		keyboard.Button{Text: "Finish", Data: CbFinishFact},
	)
}

// PersonaMenu lists the personas.
func PersonaMenu() *keyboard.Markup {
	buttons := make([]keyboard.Button, 0, Personas.Len())
	for _, p := range Personas.Members() {
		buttons = append(buttons, keyboard.Button{Text: p.Label(), Data: CbPersonaPrefix + p.Value})
	}
	return keyboard.InlineButtons(buttons...)
}

// PersonaChatMenu follows every persona reply.
func PersonaChatMenu() *keyboard.Markup {
	return keyboard.InlineButtons(
		keyboard.Button{Text: "Choose another personality", Data: CbChangePersonality},
		keyboard.Button{Text: "Finish", Data: CbFinishPersona},
	)
}

// TopicMenu lists the quiz topics.
func TopicMenu() *keyboard.Markup {
	buttons := make([]keyboard.Button, 0, quiz.Topics.Len())
	for _, t := range quiz.Topics.Members() {
		buttons = append(buttons, keyboard.Button{Text: t.Value, Data: CbQuizTopicPrefix + t.Value})
	}
	return keyboard.InlineButtons(buttons...)
}

// QuizNextMenu is offered after each answer or failed generation.
func QuizNextMenu() *keyboard.Markup {
	return keyboard.InlineButtons(
		keyboard.Button{Text: "Another question", Data: CbQuizMore},
		keyboard.Button{Text: "Change topic", Data: CbQuizChange},
		keyboard.Button{Text: "Finish quiz", Data: CbFinishQuiz},
	)
}

// LanguageMenu lists the translation targets.
func LanguageMenu() *keyboard.Markup {
	buttons := make([]keyboard.Button, 0, Languages.Len())
	for _, l := range Languages.Members() {
		buttons = append(buttons, keyboard.Button{Text: l.Label(), Data: CbLangPrefix + l.Value})
	}
	return keyboard.InlineButtons(buttons...)
}

// TranslateMenu follows every translation.
func TranslateMenu() *keyboard.Markup {
	return keyboard.InlineButtons(
		keyboard.Button{Text: "Change language", Data: CbChangeLang},
		keyboard.Button{Text: "Finish", Data: CbFinishTranslate},
	)
}
