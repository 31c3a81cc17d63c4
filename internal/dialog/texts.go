package dialog

import (
	"fmt"

	"github.com/m3rciful/dialogbot/core/telegram/format"
)

// User-facing replies.
const (
	TextGenericError = "Oops! It seems something went wrong. Please try again a little later or use /start."
	TextUnknownInput = "Please choose an option from the menu or use /start."
	TextUnknownCmd   = "I don't know that command. Use /start to see what I can do."

	textTextExpected  = "Please send a text message, or use /start to exit."
	textUseButtons    = "Please use the buttons above to continue, or /start to exit."
	textButtonExpired = "This button is no longer available. Please continue with the current step."

	textWelcomeBody = "\n\nI'm your assistant bot." +
		"\n\nWith me, you can:" +
		"\n\n" +
		"🔹 Get an interesting fact\n" +
		"🔹 Ask ChatGPT questions\n" +
		"🔹 Chat with famous personalities\n" +
		"🔹 Take an interactive quiz\n" +
		"🔹 Translate text\n" +
		"🔹 Have voice conversations with ChatGPT"

	textFactNoImage   = "Oops, the picture is lost... But no worries!"
	textFactFailed    = "Oops, I can't find an interesting fact. Please try /start."
	textFactMoreError = "Oops, I can't find a new fact right now. Try again?"

	textAssistantReady   = "I am ready to answer your questions. What would you like to know?"
	textAssistantNoImage = "Failed to load the picture, but I am ready to answer your questions! To exit, use /start."
	textAssistantFailed  = "Failed to get a response. Try /start or press 'Finish'."

	textPersonaChoose      = "Choose who you want to talk to:"
	textPersonaNoImage     = "Couldn't load the image, but no worries! Who do you want to talk to?"
	textPersonaInvalid     = "An error occurred while selecting the personality. Please try again."
	textPersonaMissing     = "It seems we haven't selected a personality. Please start with /talk."
	textPersonaFailed      = "Failed to get a response."
	textQuizNoImage        = "Failed to load the image, but let's start the quiz!"
	textQuizGenFailed      = "Unfortunately, a question could not be generated. Please try selecting another topic or /start."
	textQuizWhatNext       = "What should we do next?"
	textQuizAnswerPrompt   = "Type the letter of your answer (A, B, C, or D):"
	textQuizMissing        = "There is no question waiting for an answer. Please start again with /quiz."
	textQuizCorrect        = "Correct! ✅\n"
	textQuizUnknown        = "ChatGPT could not determine if you answered the question correctly. Therefore, it will not be counted in the quiz score.\n"
	textQuizCheckFailed    = "Could not check your answer. Let's try the next question."
	textQuizNoAnswers      = "🏁 Quiz finished, but you didn't answer any questions."
	textQuizTopicInvalid   = "An error occurred while selecting the topic. Please choose a topic from the list."
	textTranslateChoose    = "Select the language to translate to:"
	textTranslateInvalid   = "An error occurred, please select a language from the list."
	textTranslateMissing   = "First, select a language using /translate."
	textTranslateFailed    = "Failed to translate."
	textVoiceStart         = "Send me a voice message. To exit, press /start."
	textVoiceExpected      = "I am expecting a voice message 🎤. Please record and send it, or use /start to exit."
	textVoiceUnrecognized  = "Unfortunately, I could not recognize the speech. Please try recording the message again."
	textVoiceFailed        = "An unexpected error occurred. Please try /start."
	textVoiceNoAudioPrefix = "ChatGPT response (audio was not generated):\n"
)

// Model prompts.
const (
	promptFirstFact = "Tell me one interesting fact. Start your answer strictly with 'Interesting fact:' without any other words or expressions."
	promptMoreFact  = "Tell me another interesting fact, different from the previous ones. Start your answer strictly with 'Interesting fact:'"
	promptAssistant = "You are an AI assistant. Try to answer completely and friendly."
)

func welcomeText(u User) string {
	return "Hi, " + format.Mention(u.ID, u.FirstName) + "! 👋" + textWelcomeBody
}

func staleActionText(command string) string {
	return fmt.Sprintf("This button belongs to a conversation that is no longer active. Use /%s to start it again.", command)
}

func factAboutPrompt(subject string) string {
	return fmt.Sprintf("Tell me one interesting fact about %s. Start your answer strictly with 'Interesting fact:'", subject)
}

func personaChosenText(name string) string {
	return name + " - great choice! Ask your question."
}

func quizScoreText(correct, total int) string {
	return fmt.Sprintf("Your current score: %d out of %d.\nSelect a topic:", correct, total)
}

func quizPreparingText(topic string) string {
	return fmt.Sprintf("Topic: %s. Preparing a question...", topic)
}

func quizInvalidAnswerText(question string) string {
	return "Please answer with one of the letters: A, B, C, or D.\n\n" + question
}

func quizIncorrectText(letter string) string {
	return fmt.Sprintf("Incorrect. ❌ The correct answer was: %s.\n", letter)
}

func quizTotalText(correct, total int) string {
	return fmt.Sprintf("Total score: %d out of %d.", correct, total)
}

func quizFinalText(correct, total, percent int) string {
	return fmt.Sprintf("*Quiz finished!* 🎉\n\nYour final score:\nCorrect answers: %d out of %d\nPercentage: %d%%\n\nThanks for playing!", correct, total, percent)
}

func translateChosenText(lang string) string {
	return fmt.Sprintf("You have selected %s. Send the text.", lang)
}

func translatePrompt(lang, text string) string {
	return fmt.Sprintf("Translate the following text into %s. Return only the translation itself, without any extra phrases or comments:\n\n%s", lang, text)
}

func translationText(t string) string {
	return "Translation:\n\n" + t
}

func voiceEchoText(transcript string) string {
	return "You said: *" + format.EscapeMD(transcript) + "*"
}
