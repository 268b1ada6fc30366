// Package audit implements the append-only, hash-chained audit log.
//
// The log is a JSONL file. Each entry commits to its predecessor through
// prev_entry_digest, so editing, reordering or removing any entry breaks
// the chain from that point on. head.json anchors the last entry so that
// deleting whole entries from the tail is detected too.
package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/docseal/docseal/internal/integrity"
	"github.com/docseal/docseal/pkg/clock"
	"github.com/docseal/docseal/pkg/codec"
	"github.com/docseal/docseal/pkg/errclass"
	"github.com/docseal/docseal/pkg/fsutil"
	"github.com/docseal/docseal/pkg/logging"
	"github.com/docseal/docseal/pkg/model"
)

const (
	logFile  = "audit.jsonl"
	headFile = "head.json"
)

// ChainAlgorithm digests every audit entry regardless of the project's
// content algorithm, so switching algorithms never invalidates history.
const ChainAlgorithm = model.AlgorithmSHA256

// Log is an in-memory arena over the audit file. Entry i has sequence i+1.
type Log struct {
	dir   string
	clock clock.Clock
	log   *logging.Logger

	mu      sync.Mutex
	entries []model.AuditEntry
	head    *model.AuditHead
	// validEnd is the byte length of the complete lines; anything after it
	// is a torn write that the next Append truncates.
	validEnd int64
	torn     bool
}

// Open loads the log in dir and verifies the whole chain. A missing log is
// an empty, valid chain. Verification failure returns *errclass.BreakError.
func Open(dir string, clk clock.Clock, logger *logging.Logger) (*Log, error) {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = logging.Global()
	}
	l := &Log{
		dir:   dir,
		clock: clk,
		log:   logger.WithFields(map[string]any{"component": "audit"}),
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the location of the JSONL file.
func (l *Log) Path() string { return filepath.Join(l.dir, logFile) }

// HeadPath returns the location of the head anchor.
func (l *Log) HeadPath() string { return filepath.Join(l.dir, headFile) }

// Verify re-reads the log from disk and checks every link again.
func (l *Log) Verify() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

func (l *Log) load() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

func (l *Log) loadLocked() error {
	data, err := os.ReadFile(l.Path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errclass.ErrIOFailure.WithMessagef("read audit log: %v", err)
	}

	validEnd := bytes.LastIndexByte(data, '\n') + 1
	torn := validEnd < len(data)

	var entries []model.AuditEntry
	rest := data[:validEnd]
	for len(rest) > 0 {
		i := bytes.IndexByte(rest, '\n')
		line := rest[:i]
		rest = rest[i+1:]
		seq := int64(len(entries) + 1)
		entry, err := decodeEntry(line)
		if err != nil {
			return &errclass.BreakError{Sequence: seq, Reason: fmt.Sprintf("malformed entry: %v", err)}
		}
		entries = append(entries, entry)
	}

	if err := verifyChain(entries); err != nil {
		return err
	}

	head, err := l.readHead()
	if err != nil {
		return err
	}
	if head != nil {
		n := int64(len(entries))
		if head.Sequence > n {
			return &errclass.BreakError{
				Sequence: n + 1,
				Reason:   fmt.Sprintf("log ends at entry %d but head anchors entry %d", n, head.Sequence),
			}
		}
		if head.Sequence > 0 && entries[head.Sequence-1].EntryDigest != head.EntryDigest {
			return &errclass.BreakError{Sequence: head.Sequence, Reason: "entry does not match head anchor"}
		}
	} else if len(entries) > 0 {
		l.log.Warn("audit head anchor missing", map[string]any{"entries": len(entries)})
	}

	if torn {
		l.log.Warn("ignoring torn audit entry", map[string]any{"offset": validEnd, "bytes": len(data) - validEnd})
	}

	l.entries = entries
	l.head = head
	l.validEnd = int64(validEnd)
	l.torn = torn
	return nil
}

func (l *Log) readHead() (*model.AuditHead, error) {
	var head model.AuditHead
	err := fsutil.ReadJSON(l.HeadPath(), &head)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errclass.ErrConfigMalformed.WithMessagef("audit head: %v", err)
	}
	if head.Sequence < 0 {
		return nil, errclass.ErrConfigMalformed.WithMessagef("audit head: negative sequence %d", head.Sequence)
	}
	return &head, nil
}

func decodeEntry(line []byte) (model.AuditEntry, error) {
	var e model.AuditEntry
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&e); err != nil {
		return e, err
	}
	return e, nil
}

// verifyChain walks entries from the genesis and reports the first link
// that fails.
func verifyChain(entries []model.AuditEntry) error {
	prev := model.ZeroDigest
	for i := range entries {
		e := &entries[i]
		seq := int64(i + 1)
		if e.Sequence != seq {
			return &errclass.BreakError{Sequence: seq, Reason: fmt.Sprintf("sequence is %d, expected %d", e.Sequence, seq)}
		}
		if e.PrevEntryDigest != prev {
			return &errclass.BreakError{Sequence: seq, Reason: "prev_entry_digest does not match the previous entry"}
		}
		pd, err := PayloadDigest(e.Payload)
		if err != nil {
			return &errclass.BreakError{Sequence: seq, Reason: err.Error()}
		}
		if pd != e.PayloadDigest {
			return &errclass.BreakError{Sequence: seq, Reason: "payload digest mismatch"}
		}
		ed, err := EntryDigest(e)
		if err != nil {
			return &errclass.BreakError{Sequence: seq, Reason: err.Error()}
		}
		if ed != e.EntryDigest {
			return &errclass.BreakError{Sequence: seq, Reason: "entry digest mismatch"}
		}
		prev = e.EntryDigest
	}
	return nil
}

// PayloadDigest hashes the deterministic CBOR encoding of payload. An
// empty payload and a nil payload digest the same.
func PayloadDigest(payload map[string]any) (model.Digest, error) {
	var v any
	if len(payload) > 0 {
		v = payload
	}
	data, err := codec.Canonical(v)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return integrity.Sum(ChainAlgorithm, data)
}

// EntryDigest hashes every field that precedes entry_digest.
func EntryDigest(e *model.AuditEntry) (model.Digest, error) {
	s := fmt.Sprintf("%s\n%d\n%s\n%s\n%s",
		e.PrevEntryDigest, e.Sequence, e.Timestamp.UTC().Format(time.RFC3339Nano), e.EventKind, e.PayloadDigest)
	return integrity.Sum(ChainAlgorithm, []byte(s))
}

// Append chains a new entry onto the log, fsyncs it and moves the head
// anchor. The caller holds the project lock.
func (l *Log) Append(kind model.EventKind, payload map[string]any) (*model.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	normalized, err := codec.NormalizeMap(payload)
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("audit payload: %v", err)
	}
	if len(normalized) == 0 {
		normalized = nil
	}

	prev := model.ZeroDigest
	if n := len(l.entries); n > 0 {
		prev = l.entries[n-1].EntryDigest
	}
	entry := model.AuditEntry{
		Sequence:        int64(len(l.entries) + 1),
		Timestamp:       l.clock.Now().UTC().Round(0),
		EventKind:       kind,
		PrevEntryDigest: prev,
		Payload:         normalized,
	}
	if entry.PayloadDigest, err = PayloadDigest(normalized); err != nil {
		return nil, err
	}
	if entry.EntryDigest, err = EntryDigest(&entry); err != nil {
		return nil, err
	}

	line, err := json.Marshal(&entry)
	if err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("marshal audit entry: %v", err)
	}
	line = append(line, '\n')

	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("create audit dir: %v", err)
	}
	if l.torn {
		if err := os.Truncate(l.Path(), l.validEnd); err != nil {
			return nil, errclass.ErrIOFailure.WithMessagef("truncate torn audit entry: %v", err)
		}
		l.log.Info("truncated torn audit entry", map[string]any{"offset": l.validEnd})
		l.torn = false
	}
	if err := l.writeLine(line); err != nil {
		return nil, err
	}
	l.validEnd += int64(len(line))
	l.entries = append(l.entries, entry)

	head := &model.AuditHead{Sequence: entry.Sequence, EntryDigest: entry.EntryDigest}
	if err := fsutil.WriteJSON(l.HeadPath(), head); err != nil {
		return nil, errclass.ErrIOFailure.WithMessagef("write audit head: %v", err)
	}
	l.head = head

	l.log.Debug("audit entry appended", map[string]any{
		"sequence":   entry.Sequence,
		"event_kind": string(kind),
	})
	out := entry
	return &out, nil
}

func (l *Log) writeLine(line []byte) error {
	created := !fsutil.Exists(l.Path())
	f, err := os.OpenFile(l.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errclass.ErrIOFailure.WithMessagef("open audit log: %v", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return errclass.ErrIOFailure.WithMessagef("write audit entry: %v", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return errclass.ErrIOFailure.WithMessagef("sync audit log: %v", err)
	}
	if err := f.Close(); err != nil {
		return errclass.ErrIOFailure.WithMessagef("close audit log: %v", err)
	}
	if created {
		if err := fsutil.FsyncDir(l.dir); err != nil {
			return errclass.ErrIOFailure.WithMessagef("sync audit dir: %v", err)
		}
	}
	return nil
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entry returns the entry with the given sequence.
func (l *Log) Entry(seq int64) (model.AuditEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq < 1 || seq > int64(len(l.entries)) {
		return model.AuditEntry{}, false
	}
	return l.entries[seq-1], true
}

// Last returns the newest entry, if any.
func (l *Log) Last() (model.AuditEntry, bool) {
	l.mu.Lock()
	n := int64(len(l.entries))
	l.mu.Unlock()
	return l.Entry(n)
}

// Head returns the anchor as last read or written.
func (l *Log) Head() *model.AuditHead {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.head == nil {
		return nil
	}
	h := *l.head
	return &h
}

// Entries returns the last limit entries in chain order; limit <= 0
// returns all of them.
func (l *Log) Entries(limit int) []model.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	start := 0
	if limit > 0 && limit < len(l.entries) {
		start = len(l.entries) - limit
	}
	out := make([]model.AuditEntry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}
