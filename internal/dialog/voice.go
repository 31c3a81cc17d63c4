package dialog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/m3rciful/dialogbot/core/logger"
	"github.com/m3rciful/dialogbot/core/telegram/format"
	tghelpers "github.com/m3rciful/dialogbot/core/telegram/helpers"
	"github.com/m3rciful/dialogbot/internal/llm"
)

func (r *Router) voiceFlow() *flow {
	return &flow{
		name:    FlowVoice,
		command: "voice",
		enter:   r.enterVoice,
		voice:   r.voiceMessage,
		other: func(ctx context.Context, t *turn) error {
			return r.say(ctx, t, textVoiceExpected, nil)
		},
	}
}

func (r *Router) enterVoice(ctx context.Context, t *turn) error {
	t.sess.Enter(FlowVoice, StateListening)
	return r.say(ctx, t, textVoiceStart, nil)
}

// voiceTempPath names the scratch file for one downloaded clip.
func (r *Router) voiceTempPath(fileID string) string {
	safe := strings.Map(func(c rune) rune {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
			return c
		}
		return '_'
	}, fileID)
	return filepath.Join(r.tempDir, "voice_temp_"+safe+".ogg")
}

// voiceMessage runs transcribe, ask and speak for one clip. Transport
// failures end the session; model failures degrade to text.
func (r *Router) voiceMessage(ctx context.Context, t *turn) error {
	if t.upd.Voice == nil || t.upd.Voice.FileID == "" {
		return r.say(ctx, t, textVoiceExpected, nil)
	}
	if err := r.voicePipeline(ctx, t); err != nil {
		logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelError, "voice.failed",
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		t.sess.End()
		return r.say(ctx, t, textVoiceFailed, nil)
	}
	return nil
}

func (r *Router) voicePipeline(ctx context.Context, t *turn) error {
	path := r.voiceTempPath(t.upd.Voice.FileID)
	defer func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.LogEvent(ctx, logger.Component("dialog"), slog.LevelWarn, "voice.cleanup_failed",
				slog.String("err", logger.SanitizeLimit(err.Error(), 128)),
			)
		}
	}()

	r.action(ctx, t, tghelpers.ActionRecordVoice)
	if err := r.ch.Download(ctx, t.upd.Voice.FileID, path); err != nil {
		return err
	}

	transcript, ok := r.model.Transcribe(ctx, path)
	if !ok {
		return r.say(ctx, t, textVoiceUnrecognized, nil)
	}
	if err := r.send(ctx, t, tghelpers.Outgoing{Text: voiceEchoText(transcript), Mode: format.Markdown}); err != nil {
		return err
	}

	r.action(ctx, t, tghelpers.ActionTyping)
	reply := r.model.Ask(ctx, transcript, llm.AskOptions{})
	if !reply.OK() {
		logModelFailure(ctx, "voice.ask", reply.Err)
	}

	r.action(ctx, t, tghelpers.ActionRecordVoice)
	audio, ok := r.model.TextToSpeech(ctx, reply.Text)
	if !ok {
		return r.say(ctx, t, textVoiceNoAudioPrefix+reply.Text, FinishMenu(CbFinishVoice))
	}
	return r.ch.SendVoice(ctx, t.chatID(), audio, FinishMenu(CbFinishVoice))
}
