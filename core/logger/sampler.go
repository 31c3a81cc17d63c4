package logger

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// ratio lets through keep out of every per events. A zero ratio allows all.
type ratio struct {
	keep, per int64
}

// debugGate samples high-volume debug events without locking.
type debugGate struct {
	cfg  atomic.Pointer[ratio]
	seen atomic.Int64
}

func newDebugGate(keep, per int) *debugGate {
	g := &debugGate{}
	g.configure(keep, per)
	return g
}

func (g *debugGate) configure(keep, per int) {
	r := ratio{}
	if keep > 0 && per > 0 {
		r = ratio{keep: int64(min(keep, per)), per: int64(per)}
	}
	g.cfg.Store(&r)
	g.seen.Store(0)
}

func (g *debugGate) allow() bool {
	r := g.cfg.Load()
	if r == nil || r.per == 0 {
		return true
	}
	n := (g.seen.Add(1) - 1) % r.per
	return n < r.keep
}

// parseRatio reads "k/n" or "n" (meaning 1/n). Anything else, or a
// non-positive n, yields 0/0.
func parseRatio(spec string) (keep, per int) {
	spec = strings.TrimSpace(spec)
	if a, b, ok := strings.Cut(spec, "/"); ok {
		k, err1 := strconv.Atoi(strings.TrimSpace(a))
		n, err2 := strconv.Atoi(strings.TrimSpace(b))
		if err1 == nil && err2 == nil {
			return k, n
		}
		return 0, 0
	}
	if n, err := strconv.Atoi(spec); err == nil && n > 0 {
		return 1, n
	}
	return 0, 0
}
