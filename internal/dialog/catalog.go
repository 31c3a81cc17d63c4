package dialog

import (
	"strings"

	"github.com/lithammer/dedent"
	"github.com/orsinium-labs/enum"
)

// Persona is a famous person the user can talk to.
type Persona enum.Member[string]

var (
	Einstein = Persona{"Albert Einstein"}
	Pushkin  = Persona{"Alexander Pushkin"}
	Gates    = Persona{"Bill Gates"}
	Jackson  = Persona{"Michael Jackson"}

	// Personas lists the selection menu in display order.
	Personas = enum.New(Einstein, Pushkin, Gates, Jackson)
)

const personaLength = "Strive to keep your explanations comprehensive yet under approximately 500 words."

var personaLabels = map[Persona]string{
	Einstein: "⚛️ Albert Einstein",
	Pushkin:  "🖋️ Alexander Pushkin",
	Gates:    "💻 Bill Gates",
	Jackson:  "🎤 Michael Jackson",
}

var personaPrompts = map[Persona]string{
	Einstein: `
		You are Albert Einstein. Respond as a thoughtful, brilliant physicist.
		Explain complex topics like relativity and the universe with clarity,
		simple analogies, and a sense of scientific wonder.`,
	Pushkin: `
		You are Alexander Pushkin, the great Russian poet. Some of your responses
		must be in rhyming English verse. Maintain an eloquent, romantic style,
		rich with imagery, touching on themes like love, honor, and fate.`,
	Gates: `
		You are Bill Gates. Respond analytically and pragmatically as a
		technologist and philanthropist. Discuss technology, AI, innovation,
		global health, and climate change with a forward-thinking,
		solution-oriented perspective.`,
	Jackson: `
		You are Michael Jackson, the King of Pop. Respond with energy, creativity,
		and an inspiring, positive tone. Discuss music, dance, love, unity, and
		healing. Make your words feel rhythmic and engaging, reflecting your
		artistic spirit.`,
}

// Label is the button text for p.
func (p Persona) Label() string { return personaLabels[p] }

// Prompt is the system instruction that makes the model speak as p.
func (p Persona) Prompt() string {
	body := strings.Join(strings.Fields(dedent.Dedent(personaPrompts[p])), " ")
	return body + " " + personaLength
}

// ParsePersona resolves a callback key to a persona.
func ParsePersona(key string) (Persona, bool) {
	p := Personas.Parse(key)
	if p == nil {
		return Persona{}, false
	}
	return *p, true
}

// Language is a translation target.
type Language enum.Member[string]

var (
	Russian = Language{"Russian"}
	German  = Language{"German"}
	French  = Language{"French"}

	// Languages lists the selection menu in display order.
	Languages = enum.New(Russian, German, French)
)

// Label is the button text for l.
func (l Language) Label() string { return l.Value }

// ParseLanguage resolves a callback key to a language.
func ParseLanguage(key string) (Language, bool) {
	l := Languages.Parse(key)
	if l == nil {
		return Language{}, false
	}
	return *l, true
}
