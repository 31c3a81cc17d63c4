package dialog

import (
	"github.com/m3rciful/dialogbot/core/telegram/state"
	"github.com/m3rciful/dialogbot/internal/llm"
)

// Flows.
const (
	FlowFact      state.Flow = "fact"
	FlowAssistant state.Flow = "gpt"
	FlowPersona   state.Flow = "talk"
	FlowQuiz      state.Flow = "quiz"
	FlowTranslate state.Flow = "translate"
	FlowVoice     state.Flow = "voice"
)

// States inside flows.
const (
	StateChatting      state.State = "chatting"
	StateSelecting     state.State = "selecting"
	StateTranslating   state.State = "translating"
	StateListening     state.State = "listening"
	StateChoosingTopic state.State = "choosing_topic"
	StateAsking        state.State = "asking"
	StateAwaitAnswer   state.State = "awaiting_answer"
	StateReporting     state.State = "reporting"
)

// Slots is the per-chat scratch data. Each flow owns one section; a nil
// section means the flow has not stored anything yet.
type Slots struct {
	Fact      *FactSlots
	Assistant *AssistantSlots
	Persona   *PersonaSlots
	Quiz      *QuizSlots
	Translate *TranslateSlots
}

// Empty reports whether no flow holds data.
func (s Slots) Empty() bool {
	return s.Fact == nil && s.Assistant == nil && s.Persona == nil && s.Quiz == nil && s.Translate == nil
}

// FactSlots keeps the facts already told so new ones differ.
type FactSlots struct {
	History []llm.Message
}

// AssistantSlots holds the free-form assistant conversation.
type AssistantSlots struct {
	SystemPrompt string
	History      []llm.Message
}

// PersonaSlots holds the selected famous person.
type PersonaSlots struct {
	Name   string
	Prompt string
}

// TranslateSlots holds the target language.
type TranslateSlots struct {
	Language string
}

// QuizSlots holds score and the question in play. Question and Letter are
// set and cleared together.
type QuizSlots struct {
	Total      int
	Correct    int
	Topic      string
	GenHistory []llm.Message
	Question   string
	Letter     string
	PhotoSent  bool
}

// HasQuestion reports whether a question awaits an answer.
func (q *QuizSlots) HasQuestion() bool {
	return q != nil && q.Question != "" && q.Letter != ""
}

// SetQuestion records the question in play.
func (q *QuizSlots) SetQuestion(text, letter string) {
	q.Question, q.Letter = text, letter
}

// ClearQuestion drops the question in play.
func (q *QuizSlots) ClearQuestion() {
	q.Question, q.Letter = "", ""
}

// Session is the chat session stored by the router.
type Session = state.Session[Slots]

// Store is the per-chat session store.
type Store = state.Store[Slots]

// appendCapped appends turns and keeps only the most recent limit entries.
func appendCapped(history []llm.Message, limit int, turns ...llm.Message) []llm.Message {
	history = append(history, turns...)
	if limit > 0 && len(history) > limit {
		trimmed := make([]llm.Message, limit)
		copy(trimmed, history[len(history)-limit:])
		history = trimmed
	}
	return history
}

// exchange builds the user/assistant pair stored after a successful answer.
func exchange(prompt, answer string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleUser, Content: prompt},
		{Role: llm.RoleAssistant, Content: answer},
	}
}
