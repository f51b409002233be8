// Package journal keeps an append-only log of completed clinic writes in a
// LevelDB directory.
package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var entryPrefix = []byte("entry/")

// ErrClosed is returned by operations on a closed journal.
var ErrClosed = errors.New("journal closed")

// ErrLocked is returned by Open while another process, usually a running
// server, holds the journal directory.
var ErrLocked = errors.New("journal locked by another process")

// Entry records the outcome of one write.
type Entry struct {
	Seq      uint64    `json:"seq"`
	At       time.Time `json:"at"`
	Op       string    `json:"op"`
	EntityID string    `json:"entityId,omitempty"`
	OK       bool      `json:"ok"`
	Message  string    `json:"message"`
}

// Journal is a LevelDB-backed entry log. Safe for concurrent use.
type Journal struct {
	mu  sync.Mutex
	db  *leveldb.DB
	seq uint64
}

// Open opens or creates the journal stored in dir.
func Open(dir string) (*Journal, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN) {
		return nil, fmt.Errorf("open journal %s: %w", dir, ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dir, err)
	}

	j := &Journal{db: db}
	iter := db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	if iter.Last() {
		j.seq = decodeKey(iter.Key())
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		db.Close()
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return j, nil
}

// Append stores e under the next sequence number and returns it with Seq
// filled in. A zero At is set to the current time.
func (j *Journal) Append(e Entry) (Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db == nil {
		return Entry{}, ErrClosed
	}

	e.Seq = j.seq + 1
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal journal entry: %w", err)
	}
	if err := j.db.Put(encodeKey(e.Seq), data, nil); err != nil {
		return Entry{}, fmt.Errorf("write journal entry: %w", err)
	}
	j.seq = e.Seq
	return e, nil
}

// Recent returns up to n entries, newest first.
func (j *Journal) Recent(n int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db == nil {
		return nil, ErrClosed
	}
	if n <= 0 {
		return []Entry{}, nil
	}

	iter := j.db.NewIterator(util.BytesPrefix(entryPrefix), nil)
	defer iter.Release()

	entries := make([]Entry, 0, n)
	for ok := iter.Last(); ok && len(entries) < n; ok = iter.Prev() {
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("decode journal entry %d: %w", decodeKey(iter.Key()), err)
		}
		entries = append(entries, e)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

// Len returns the sequence number of the newest entry.
func (j *Journal) Len() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

// Close releases the database. Later calls return ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

func encodeKey(seq uint64) []byte {
	key := make([]byte, len(entryPrefix)+8)
	copy(key, entryPrefix)
	binary.BigEndian.PutUint64(key[len(entryPrefix):], seq)
	return key
}

func decodeKey(key []byte) uint64 {
	if len(key) != len(entryPrefix)+8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(entryPrefix):])
}
