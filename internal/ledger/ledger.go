package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"matrixci/internal/security"
)

// Ledger is an append-only chain of expansion records.
// File format: JSON lines (one JSON entry per line).
type Ledger struct {
	mu      sync.Mutex
	entries []*Entry
	path    string
}

// Open loads an existing ledger file or creates an empty one.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		return l, f.Close()
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode ledger entry %d: %w", len(l.entries), err)
		}
		l.entries = append(l.entries, &e)
	}
	return l, nil
}

func (l *Ledger) Path() string { return l.path }

// Append recomputes the entry hash, checks it links to the last entry, signs it,
// persists it and keeps it in memory.
func (l *Ledger) Append(e *Entry, kp *security.KeyPair) error {
	if kp == nil || len(kp.Private) == 0 {
		return errors.New("no signing key, cannot append entry")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	h, err := e.ComputeHash()
	if err != nil {
		return fmt.Errorf("cannot recompute entry hash: %w", err)
	}
	e.Hash = h

	if n := len(l.entries); n > 0 {
		if last := l.entries[n-1]; e.PrevHash != last.Hash {
			return fmt.Errorf("prevHash mismatch: expected %s, got %s", last.Hash, e.PrevHash)
		}
	} else if e.PrevHash != "" {
		return fmt.Errorf("prevHash mismatch: first entry must have empty prevHash, got %s", e.PrevHash)
	}
	if e.Index != len(l.entries) {
		return fmt.Errorf("index mismatch: expected %d, got %d", len(l.entries), e.Index)
	}

	e.Signature = kp.Sign([]byte(e.Hash))
	e.PubKey = kp.PublicHex()

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open ledger file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(e); err != nil {
		return fmt.Errorf("write ledger file: %w", err)
	}

	l.entries = append(l.entries, e)
	return nil
}

// Entries returns the entries in chain order.
func (l *Ledger) Entries() []*Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Entry(nil), l.entries...)
}

// NextIndex returns the next entry index
func (l *Ledger) NextIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// LastHash returns the last entry hash (or empty if none)
func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1].Hash
}
