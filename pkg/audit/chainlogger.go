// Package audit keeps a tamper-evident, hash-chained record of transfer
// submissions.
package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Event is one audited action.
type Event struct {
	Action        string   `json:"action"`
	Party         string   `json:"party"`
	Receiver      string   `json:"receiver,omitempty"`
	Amount        string   `json:"amount,omitempty"`
	Instrument    string   `json:"instrument,omitempty"`
	HoldingCIDs   []string `json:"holding_cids,omitempty"`
	FactoryID     string   `json:"factory_id,omitempty"`
	Outcome       string   `json:"outcome"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

// LogEntry represents a single audit log entry
type LogEntry struct {
	Timestamp    string `json:"timestamp"`
	PreviousHash string `json:"previous_hash"`
	Payload      string `json:"payload"`
	Hash         string `json:"hash"`
}

// ChainLogger provides a tamper-evident log using hash chaining. Entries are
// kept in memory and, when a sink is set, written to it as JSON lines.
type ChainLogger struct {
	mu           sync.Mutex
	previousHash string
	entries      []*LogEntry
	sink         io.Writer
	now          func() time.Time
}

// NewChainLogger creates a new ChainLogger initialized with a zero hash. sink
// may be nil.
func NewChainLogger(sink io.Writer) *ChainLogger {
	return &ChainLogger{
		previousHash: strings.Repeat("0", 64),
		sink:         sink,
		now:          time.Now,
	}
}

// Append adds an event to the chain.
func (c *ChainLogger) Append(e Event) (*LogEntry, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode audit event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &LogEntry{
		Timestamp:    c.now().UTC().Format(time.RFC3339Nano),
		PreviousHash: c.previousHash,
		Payload:      string(payload),
	}
	entry.Hash = entryHash(entry.PreviousHash, entry.Timestamp, entry.Payload)

	if c.sink != nil {
		line, err := json.Marshal(entry)
		if err != nil {
			return nil, fmt.Errorf("encode audit entry: %w", err)
		}
		if _, err := c.sink.Write(append(line, '\n')); err != nil {
			return nil, fmt.Errorf("write audit entry: %w", err)
		}
	}

	c.previousHash = entry.Hash
	c.entries = append(c.entries, entry)
	return entry, nil
}

// Entries returns a copy of the recorded entries.
func (c *ChainLogger) Entries() []*LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*LogEntry, len(c.entries))
	for i, e := range c.entries {
		cp := *e
		out[i] = &cp
	}
	return out
}

// Decode returns the event stored in the entry's payload.
func (e *LogEntry) Decode() (Event, error) {
	var ev Event
	if err := json.Unmarshal([]byte(e.Payload), &ev); err != nil {
		return Event{}, fmt.Errorf("decode audit payload: %w", err)
	}
	return ev, nil
}

// VerifyChain checks if a slice of entries forms a valid hash chain.
func VerifyChain(entries []*LogEntry) bool {
	for i, entry := range entries {
		prevHash := entry.PreviousHash
		if i > 0 {
			prevHash = entries[i-1].Hash
			if entry.PreviousHash != prevHash {
				return false
			}
		}

		if entryHash(prevHash, entry.Timestamp, entry.Payload) != entry.Hash {
			return false
		}
	}
	return true
}

func entryHash(prevHash, timestamp, payload string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", prevHash, timestamp, payload)))
	return hex.EncodeToString(hash[:])
}
