// Package session keeps the dataset of each uploaded workbook in memory and
// records every analysis run in a SQLite history.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/rules"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Identity tells two uploads apart. A new upload with the same identity
// does not reload the dataset.
type Identity struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// IdentityOf stats a file.
func IdentityOf(path string) (Identity, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Identity{}, fmt.Errorf("stat %s: %w", path, err)
	}
	return Identity{Name: filepath.Base(path), Size: fi.Size()}, nil
}

// Session is one loaded workbook. Its dataset and classifications are never
// mutated; a reload swaps in a new Session value.
type Session struct {
	ID              string                 `json:"id"`
	Identity        Identity               `json:"identity"`
	RunID           string                 `json:"run_id"`
	LoadedAt        time.Time              `json:"loaded_at"`
	Dataset         *audit.Dataset         `json:"-"`
	Classifications []audit.Classification `json:"-"`
}

// Store holds sessions by id.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	rules      *rules.Compiled
	classifier *audit.Classifier
	history    *History // optional
	logger     *slog.Logger
}

// NewStore creates an empty store. history may be nil.
func NewStore(c *rules.Compiled, history *History, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions:   make(map[string]*Session),
		rules:      c,
		classifier: audit.NewClassifier(c),
		history:    history,
		logger:     logger,
	}
}

// Rules returns the compiled rules shared by every session.
func (s *Store) Rules() *rules.Compiled { return s.rules }

// Classifier returns the shared classifier.
func (s *Store) Classifier() *audit.Classifier { return s.classifier }

// Create loads a workbook into a new session.
func (s *Store) Create(ctx context.Context, id Identity, r io.Reader) (*Session, error) {
	sess, err := s.load(ctx, uuid.NewString(), id, r)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

// Replace reloads session sid from r unless id matches the loaded identity.
// It reports whether a reload happened.
func (s *Store) Replace(ctx context.Context, sid string, id Identity, r io.Reader) (*Session, bool, error) {
	cur, err := s.Get(sid)
	if err != nil {
		return nil, false, err
	}
	if cur.Identity == id {
		return cur, false, nil
	}
	next, err := s.load(ctx, sid, id, r)
	if err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	s.sessions[sid] = next
	s.mu.Unlock()
	return next, true, nil
}

// Get returns a session.
func (s *Store) Get(sid string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sid]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sid)
	}
	return sess, nil
}

// Delete drops a session.
func (s *Store) Delete(sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sid]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, sid)
	}
	delete(s.sessions, sid)
	return nil
}

// List returns every session, oldest first.
func (s *Store) List() []*Session {
	s.mu.RLock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].LoadedAt.Before(out[j].LoadedAt) })
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) load(ctx context.Context, sid string, id Identity, r io.Reader) (*Session, error) {
	// excelize needs random access; buffer once so the size is also known.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if id.Size == 0 {
		id.Size = int64(len(data))
	}
	d, err := audit.Load(bytes.NewReader(data), s.rules, s.logger)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:              sid,
		Identity:        id,
		LoadedAt:        time.Now(),
		Dataset:         d,
		Classifications: s.classifier.ClassifyAll(d.Records),
	}
	run := NewRun(id, d)
	sess.RunID = run.ID
	if s.history != nil {
		if err := s.history.Record(ctx, run); err != nil {
			s.logger.Warn("record run failed", "run", run.ID, "error", err)
		}
	}
	s.logger.Info("workbook loaded",
		"session", sid, "file", id.Name, "rows", len(d.Records),
		"sheets", len(d.Sheets), "warnings", len(d.Warnings))
	return sess, nil
}
