package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// encoding selects how a record is rendered on its line.
type encoding uint8

const (
	encJSON encoding = iota
	encKV
)

const tsLayout = "2006-01-02T15:04:05.000Z07:00"

// lineSink receives finished log lines.
type lineSink interface {
	Write(line []byte) error
}

type handlerOptions struct {
	level slog.Leveler
	sink  lineSink
	enc   encoding
	order []string
}

type pair struct {
	key string
	val any
}

// eventHandler renders every record as one flat line of known keys first,
// then the rest sorted by name.
type eventHandler struct {
	opts   handlerOptions
	preset []pair
	prefix string
}

func newEventHandler(opts handlerOptions) *eventHandler {
	if opts.level == nil {
		opts.level = slog.LevelInfo
	}
	if opts.order == nil {
		opts.order = slices.Clone(defaultKeyOrder)
	}
	return &eventHandler{opts: opts}
}

func (h *eventHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

func (h *eventHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.opts.sink == nil {
		return errors.New("logger: no sink configured")
	}
	f := make(fields, 16)
	for _, p := range h.preset {
		f[p.key] = p.val
	}
	r.Attrs(func(a slog.Attr) bool {
		flatten(h.prefix, a, func(p pair) { f[p.key] = p.val })
		return true
	})
	f.fromContext(ctx)

	ts := r.Time.UTC()
	f["ts"] = ts.Truncate(time.Millisecond).Format(tsLayout)
	f["level"] = normalizeLevel(r.Level.String())
	if h.opts.enc == encJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}
	f.fill("event", cmpOr(r.Message, "unknown"))
	f.fill("component", "app")
	if rid := f.text("rid"); rid != "" {
		if short := CompactRID(rid); short != rid {
			if h.opts.enc == encJSON {
				f.fill("rid_full", rid)
			}
			f["rid"] = short
		}
	}
	f.normalizeEnums()
	f.dropEmpty()

	line, err := f.encode(h.opts.enc, h.opts.order)
	if err != nil {
		return err
	}
	return h.opts.sink.Write(append(line, '\n'))
}

func (h *eventHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.preset = slices.Clone(h.preset)
	for _, a := range attrs {
		flatten(h.prefix, a, func(p pair) { clone.preset = append(clone.preset, p) })
	}
	return &clone
}

func (h *eventHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// flatten walks nested groups and emits every leaf under its dotted key.
func flatten(prefix string, a slog.Attr, emit func(pair)) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			flatten(key, child, emit)
		}
		return
	}
	if key == "" {
		return
	}
	if p, ok := leaf(key, v); ok {
		emit(p)
	}
}

func leaf(key string, v slog.Value) (pair, bool) {
	switch v.Kind() {
	case slog.KindString:
		return pair{key, strings.TrimSpace(v.String())}, true
	case slog.KindBool:
		return pair{key, v.Bool()}, true
	case slog.KindInt64:
		return pair{key, v.Int64()}, true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return pair{key, int64(u)}, true
		}
		return pair{key, v.Uint64()}, true
	case slog.KindFloat64:
		return pair{key, v.Float64()}, true
	case slog.KindDuration:
		return msPair(key, v.Duration()), true
	case slog.KindTime:
		return pair{key, v.Time().UTC().Format(time.RFC3339Nano)}, true
	}
	switch x := v.Any().(type) {
	case nil:
		return pair{}, false
	case error:
		return pair{key, x.Error()}, true
	case string:
		return pair{key, strings.TrimSpace(x)}, true
	case time.Duration:
		return msPair(key, x), true
	case fmt.Stringer:
		return pair{key, x.String()}, true
	default:
		return pair{key, fmt.Sprint(x)}, true
	}
}

// msPair logs durations as whole milliseconds under a "_ms" key:
// "duration" becomes "duration_ms", "llm_duration" becomes "llm_duration_ms".
func msPair(key string, d time.Duration) pair {
	if !strings.HasSuffix(key, "_ms") {
		key += "_ms"
	}
	return pair{key, RoundMS(d).Milliseconds()}
}

// fields is one record being assembled.
type fields map[string]any

func (f fields) fill(key string, v any) {
	if _, ok := f[key]; !ok {
		f[key] = v
	}
}

func (f fields) text(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// fromContext adds correlation data that the record did not set itself.
func (f fields) fromContext(ctx context.Context) {
	m := MetaFrom(ctx)
	if m.RID != "" {
		f.fill("rid", m.RID)
	}
	if m.Flow != "" {
		f.fill("flow", m.Flow)
	}
	if m.State != "" {
		f.fill("state", m.State)
	}
	if m.UserID != 0 {
		f.fill("user_id", m.UserID)
	}
	if m.UpdateID != 0 {
		f.fill("update_id", m.UpdateID)
	}
	if m.ChatID != 0 {
		f.fill("chat_id", m.ChatID)
	}
	if m.Handler != "" {
		f.fill("handler", m.Handler)
	}
}

func (f fields) normalizeEnums() {
	for key, norm := range enumNormalizers {
		raw := f.text(key)
		if raw == "" {
			continue
		}
		if v, keep := norm(raw); keep {
			f[key] = v
		} else {
			delete(f, key)
		}
	}
}

func (f fields) dropEmpty() {
	for k := range f {
		if _, isStr := f[k].(string); (isStr || f[k] == nil) && f.text(k) == "" {
			delete(f, k)
		}
	}
}

// keys returns the configured keys present in f followed by the rest in
// lexical order.
func (f fields) keys(order []string) []string {
	out := make([]string, 0, len(f))
	known := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := f[k]; ok && !known[k] {
			out = append(out, k)
		}
		known[k] = true
	}
	tail := len(out)
	for k := range f {
		if !known[k] {
			out = append(out, k)
		}
	}
	slices.Sort(out[tail:])
	return out
}

func (f fields) encode(enc encoding, order []string) ([]byte, error) {
	var b strings.Builder
	if enc == encJSON {
		b.WriteByte('{')
	}
	for i, k := range f.keys(order) {
		if enc == encJSON {
			raw, err := json.Marshal(f[k])
			if err != nil {
				return nil, fmt.Errorf("logger: encode %q: %w", k, err)
			}
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			b.Write(raw)
			continue
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(kvValue(f[k]))
	}
	if enc == encJSON {
		b.WriteByte('}')
	}
	return []byte(b.String()), nil
}

func kvValue(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprint(v)
	}
	if strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func cmpOr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
