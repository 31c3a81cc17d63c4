package logger

import "strings"

// levelNames maps slog and config spellings onto the level names written out.
var levelNames = map[string]string{
	"debug": "DEBUG",
	"info":  "INFO",
	"warn":  "WARN", "warning": "WARN",
	"error": "ERROR",
	"fatal": "FATAL",
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

func vocabulary(words ...string) map[string]string {
	m := make(map[string]string, len(words))
	for _, w := range words {
		m[w] = w
	}
	return m
}

var (
	statusWords  = vocabulary("ok", "fail", "skip", "retry", "rate_limited", "cancelled")
	verdictWords = vocabulary("correct", "incorrect", "unknown")
	outcomeWords = vocabulary("ok", "fail", "cancelled", "rate_limited")
)

func lookupWord(words map[string]string, s string) (string, bool) {
	v, ok := words[strings.ToLower(strings.TrimSpace(s))]
	return v, ok
}

// enumNormalizers lowercases closed-vocabulary fields. A false result drops
// the field; status keeps values outside its vocabulary as written.
var enumNormalizers = map[string]func(string) (string, bool){
	"status": func(s string) (string, bool) {
		if v, ok := lookupWord(statusWords, s); ok {
			return v, true
		}
		return s, true
	},
	"verdict": func(s string) (string, bool) { return lookupWord(verdictWords, s) },
	"outcome": func(s string) (string, bool) { return lookupWord(outcomeWords, s) },
}

// defaultKeyOrder puts correlation first, then the dialog, then transport
// and failure detail. Keys not listed follow alphabetically.
var defaultKeyOrder = strings.Fields(`
	ts level component event status rid rid_full ts_unix_nano
	update_id user_id chat_id chat_type handler flow state operation op cb_key outcome
	duration_ms llm_duration_ms model prompt_chars reply_chars
	topic persona lang attempt attempts verdict correct total history kb payload username
	mode listen public_url http_code db host port
	err err_code cause retryable backoff_ms rate_limited queue
`)
