package storage

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	schemaVersion = "1.0"
	lockTimeout   = 5 * time.Second
)

// Stage is the furthest pipeline stage an item reached.
type Stage string

const (
	StageDownloaded Stage = "downloaded"
	StageRecorded   Stage = "recorded"
	StageComposited Stage = "composited"
	StagePublished  Stage = "published"
	StageSkipped    Stage = "skipped"
	StageFailed     Stage = "failed"
)

// Entry records the outcome of processing one trending video.
type Entry struct {
	// ID is the internal unique identifier (UUID).
	ID string `json:"id"`
	// VideoID is the source YouTube video ID.
	VideoID string `json:"video_id"`
	// Title is the source video title.
	Title string `json:"title"`
	// Stage is the last stage reached.
	Stage Stage `json:"stage"`
	// FailedStage names the stage that failed when Stage is StageFailed.
	FailedStage string `json:"failed_stage,omitempty"`
	// RemoteID is the ID of the published reaction video.
	RemoteID string `json:"remote_id,omitempty"`
	// Error is the last error message, if any.
	Error string `json:"error,omitempty"`
	// RunID identifies the run that last touched the entry.
	RunID string `json:"run_id"`
	// Attempts counts runs that processed the item.
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ledger is a JSON file of Entries keyed by video ID. It holds the file
// lock for its lifetime, so only one run uses a ledger at a time.
type Ledger struct {
	path string
	lock *FileLock
	data *ledgerData
	mu   sync.RWMutex
}

type ledgerData struct {
	Version   string            `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Entries   map[string]*Entry `json:"entries"`
}

// OpenLedger loads the ledger at path, creating it if missing.
func OpenLedger(ctx context.Context, path string) (*Ledger, error) {
	l := &Ledger{
		path: path,
		lock: NewFileLock(path),
	}

	if err := l.lock.Lock(ctx, lockTimeout); err != nil {
		return nil, err
	}

	if err := l.load(); err != nil {
		l.lock.Unlock()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) load() error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.data = newLedgerData()
			// Save immediately to catch permission errors early
			return l.save()
		}
		return &StorageError{Op: "read", Entity: "ledger", Err: err}
	}

	l.data = &ledgerData{}
	if err := json.Unmarshal(raw, l.data); err != nil {
		return &StorageError{Op: "read", Entity: "ledger", Err: ErrStorageCorrupt}
	}
	if l.data.Entries == nil {
		l.data.Entries = make(map[string]*Entry)
	}
	return nil
}

func (l *Ledger) save() error {
	l.data.UpdatedAt = time.Now()

	writer, err := NewAtomicWriter(l.path, 0644)
	if err != nil {
		return &StorageError{Op: "write", Entity: "ledger", Err: err}
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(l.data); err != nil {
		writer.Abort()
		return &StorageError{Op: "write", Entity: "ledger", Err: err}
	}
	if err := writer.Commit(); err != nil {
		return &StorageError{Op: "write", Entity: "ledger", Err: err}
	}
	return nil
}

// Get returns a copy of the entry for videoID.
func (l *Ledger) Get(ctx context.Context, videoID string) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.data.Entries[videoID]
	if !ok {
		return nil, &StorageError{Op: "read", Entity: "entry", ID: videoID, Err: ErrNotFound}
	}
	cp := *e
	return &cp, nil
}

// Published reports whether videoID already has a published reaction.
func (l *Ledger) Published(ctx context.Context, videoID string) bool {
	e, err := l.Get(ctx, videoID)
	return err == nil && e.Stage == StagePublished && e.RemoteID != ""
}

// Record upserts entry by VideoID and persists the ledger. Identity and
// creation time of an existing entry are preserved; Attempts is bumped when
// the RunID changes.
func (l *Ledger) Record(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.VideoID == "" {
		return &StorageError{Op: "write", Entity: "entry", Err: ErrInvalidInput}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	stored := *entry
	if prev, ok := l.data.Entries[entry.VideoID]; ok {
		stored.ID = prev.ID
		stored.CreatedAt = prev.CreatedAt
		stored.Attempts = prev.Attempts
		if prev.RunID != entry.RunID {
			stored.Attempts++
		}
	} else {
		stored.ID = uuid.NewString()
		stored.CreatedAt = now
		stored.Attempts = 1
	}
	stored.UpdatedAt = now
	l.data.Entries[entry.VideoID] = &stored

	return l.save()
}

// List returns copies of all entries, most recently updated first.
func (l *Ledger) List(ctx context.Context) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*Entry, 0, len(l.data.Entries))
	for _, e := range l.data.Entries {
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Close releases the file lock.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lock.Unlock()
}

func newLedgerData() *ledgerData {
	return &ledgerData{
		Version:   schemaVersion,
		UpdatedAt: time.Now(),
		Entries:   make(map[string]*Entry),
	}
}
