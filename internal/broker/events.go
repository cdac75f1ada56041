package broker

import (
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// auditRecord is the msgpack-encoded shape appended to the diagnostic
// ring log, used to inspect what the gateway sent around a reconnect.
type auditRecord struct {
	Kind   string    `msgpack:"kind"`
	At     time.Time `msgpack:"at"`
	Symbol string    `msgpack:"symbol,omitempty"`
	Detail string    `msgpack:"detail,omitempty"`
}

// auditLog is a bounded file of recent broker events, msgpack records
// written back to back with no delimiter. Once it holds cap records the
// file is truncated and filling starts over, so it keeps at most the last
// cap events rather than always the last cap. It exists purely
// for reconnect diagnostics, not durability — the store is the system of
// record for anything that matters (spec §9 Non-goals: no event-sourced
// durability).
type auditLog struct {
	mu    sync.Mutex
	file  *os.File
	cap   int
	count int
}

func newAuditLog(path string, capacity int) *auditLog {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil
	}
	return &auditLog{file: f, cap: capacity}
}

func (a *auditLog) Append(ev brokerEvent) {
	if a == nil || a.file == nil {
		return
	}
	rec := auditRecord{Kind: ev.kind, At: ev.at}
	if ev.trade != nil {
		rec.Symbol = ev.trade.Symbol
	}
	if ev.position != nil {
		rec.Symbol = ev.position.Symbol
	}
	if ev.err != nil {
		rec.Detail = ev.err.Error()
	}

	b, err := msgpack.Marshal(rec)
	if err != nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count >= a.cap {
		// Ring semantics: truncate and start over rather than growing
		// without bound; this is a diagnostics aid, not an audit trail.
		_ = a.file.Truncate(0)
		_, _ = a.file.Seek(0, 0)
		a.count = 0
	}
	_, _ = a.file.Write(b)
	a.count++
}

func (a *auditLog) Close() {
	if a == nil || a.file == nil {
		return
	}
	_ = a.file.Close()
}
