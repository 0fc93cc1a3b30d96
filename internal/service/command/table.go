// Package command provides the static keyword table and word matching.
package command

import (
	"context"
	"errors"
	"fmt"

	"voice-command-dispatcher/internal/service/text"
)

// Action is invoked with the matched command key.
type Action func(ctx context.Context, key string) error

// Errors for invalid table construction.
var (
	ErrEmptyKey        = errors.New("command key is empty")
	ErrDuplicateKey    = errors.New("duplicate command key")
	ErrNoPhrases       = errors.New("command has no trigger phrases")
	ErrDuplicatePhrase = errors.New("trigger phrase already bound to another command")
)

// Entry binds a set of trigger phrases to a command key and its action.
type Entry struct {
	Key     string
	Phrases []string
	Action  Action
}

// Table is an immutable, ordered set of command entries.
// Trigger phrases are normalized and unique across all entries.
type Table struct {
	entries []Entry
	index   map[string]int
}

// NewTable validates and builds a Table. Phrases are normalized with
// text.Normalize; a phrase that normalizes to the same word as a phrase of
// another entry is rejected with ErrDuplicatePhrase.
func NewTable(entries ...Entry) (*Table, error) {
	t := &Table{
		entries: make([]Entry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	owner := make(map[string]string)

	for _, e := range entries {
		if e.Key == "" {
			return nil, ErrEmptyKey
		}
		if _, ok := t.index[e.Key]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, e.Key)
		}

		phrases := make([]string, 0, len(e.Phrases))
		seen := make(map[string]bool, len(e.Phrases))
		for _, p := range e.Phrases {
			np := text.Normalize(p)
			if np == "" || seen[np] {
				continue
			}
			if other, ok := owner[np]; ok {
				return nil, fmt.Errorf("%w: %q used by %s and %s", ErrDuplicatePhrase, np, other, e.Key)
			}
			owner[np] = e.Key
			seen[np] = true
			phrases = append(phrases, np)
		}
		if len(phrases) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoPhrases, e.Key)
		}

		t.index[e.Key] = len(t.entries)
		t.entries = append(t.entries, Entry{Key: e.Key, Phrases: phrases, Action: e.Action})
	}

	return t, nil
}

// FindKey returns the key of the first entry whose phrases contain word.
// word is expected to be normalized already.
func (t *Table) FindKey(word string) (string, bool) {
	for _, e := range t.entries {
		for _, p := range e.Phrases {
			if p == word {
				return e.Key, true
			}
		}
	}
	return "", false
}

// Lookup returns the entry for key.
func (t *Table) Lookup(key string) (Entry, bool) {
	i, ok := t.index[key]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Keys returns the command keys in table order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.entries))
	for i, e := range t.entries {
		keys[i] = e.Key
	}
	return keys
}

// Entries returns a copy of the table entries in order.
func (t *Table) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	for i, e := range t.entries {
		out[i] = Entry{Key: e.Key, Phrases: append([]string(nil), e.Phrases...), Action: e.Action}
	}
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}
