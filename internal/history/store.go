// Package history keeps a local per-room transcript in PebbleDB so a
// reopened room can show what was said before.
package history

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/pebble/v2"

	"github.com/palemoky/roomchat/internal/client"
	"github.com/palemoky/roomchat/internal/protocol"
)

// Keys are <roomid> 0x00 <8-byte big-endian sequence>, so each room is a
// contiguous, time-ordered range.
const roomSep = 0x00

type record struct {
	RoomID string             `json:"roomid"`
	From   string             `json:"from"`
	To     string             `json:"to,omitempty"`
	Text   string             `json:"text"`
	Kind   protocol.EventKind `json:"kind"`
	At     time.Time          `json:"at"`
}

// Store is a transcript database. A nil *Store is valid and stores nothing.
type Store struct {
	db   *pebble.DB
	mu   sync.Mutex
	next map[string]uint64
}

// Open opens (or creates) the database at dir. An empty dir disables the
// transcript and returns a nil store.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	return &Store{db: db, next: make(map[string]uint64)}, nil
}

func roomBounds(roomID string) (lower, upper []byte) {
	lower = append([]byte(roomID), roomSep)
	upper = append([]byte(roomID), roomSep+1)
	return lower, upper
}

func roomKey(roomID string, seq uint64) []byte {
	key, _ := roomBounds(roomID)
	return binary.BigEndian.AppendUint64(key, seq)
}

// nextSeq must be called with s.mu held.
func (s *Store) nextSeq(roomID string) (uint64, error) {
	if seq, ok := s.next[roomID]; ok {
		return seq, nil
	}
	lower, upper := roomBounds(roomID)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return 0, err
	}
	defer func() { _ = it.Close() }()

	var seq uint64
	if it.Last() {
		if k := it.Key(); len(k) >= len(lower)+8 {
			seq = binary.BigEndian.Uint64(k[len(lower):]) + 1
		}
	}
	return seq, nil
}

// Append writes line at the end of its room's transcript.
func (s *Store) Append(line client.MessageLine) error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, err := s.nextSeq(line.RoomID)
	if err != nil {
		return fmt.Errorf("history sequence: %w", err)
	}
	val, err := json.Marshal(record{
		RoomID: line.RoomID,
		From:   line.From,
		To:     line.To,
		Text:   line.Text,
		Kind:   line.Kind,
		At:     line.At,
	})
	if err != nil {
		return err
	}
	if err := s.db.Set(roomKey(line.RoomID, seq), val, pebble.Sync); err != nil {
		return fmt.Errorf("history append: %w", err)
	}
	s.next[line.RoomID] = seq + 1
	return nil
}

// LoadRecent returns up to limit of the newest lines of roomID, oldest
// first. A non-positive limit loads everything.
func (s *Store) LoadRecent(roomID string, limit int) ([]client.MessageLine, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	lower, upper := roomBounds(roomID)
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	var out []client.MessageLine
	for ok := it.Last(); ok && it.Valid(); ok = it.Prev() {
		if limit > 0 && len(out) >= limit {
			break
		}
		var r record
		if err := json.Unmarshal(it.Value(), &r); err != nil {
			continue
		}
		out = append(out, client.MessageLine{
			RoomID: r.RoomID,
			From:   r.From,
			To:     r.To,
			Text:   r.Text,
			Kind:   r.Kind,
			At:     r.At,
		})
	}
	slices.Reverse(out)
	return out, nil
}

// DeleteRoom drops the transcript of roomID.
func (s *Store) DeleteRoom(roomID string) error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lower, upper := roomBounds(roomID)
	if err := s.db.DeleteRange(lower, upper, pebble.Sync); err != nil {
		return fmt.Errorf("history delete: %w", err)
	}
	delete(s.next, roomID)
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
