// Package lockstore implements the on-disk Lock Store: one JSON file per
// locked issue under <repo>/.claude/cat/locks/, guarded by a directory-level
// flock (github.com/gofrs/flock, the same cross-process mutex the teacher
// repo's internal/quota and internal/beads packages take around their own
// read-modify-write JSON state) layered under the exclusive-create-and-
// rename protocol the lock *files* themselves use.
package lockstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// DefaultStaleThreshold is the age after which a lock with no matching live
// session is considered abandoned and may be silently reclaimed.
const DefaultStaleThreshold = 4 * time.Hour

// Lock is the on-disk shape of <issueId>.lock.
type Lock struct {
	SessionID  string            `json:"session_id"`
	AcquiredAt time.Time         `json:"acquired_at"`
	Worktrees  map[string]string `json:"worktrees"`
}

// LockEntry is a Lock plus the bookkeeping callers need for listing.
type LockEntry struct {
	IssueID    string
	SessionID  string
	AgeSeconds float64
	Worktrees  map[string]string
	Malformed  bool
	ParseError string
}

// AcquireOutcome tags the result of Acquire.
type AcquireOutcome int

const (
	Acquired AcquireOutcome = iota
	Contested
)

// LiveSessionChecker reports whether a session id is currently live. When
// nil, staleness is judged on age alone (the spec's documented fallback for
// callers — e.g. hook handlers — that can only see the filesystem).
type LiveSessionChecker func(sessionID string) bool

// Store is the Lock Store for one repository.
type Store struct {
	RepoRoot       string
	StaleThreshold time.Duration
	IsLive         LiveSessionChecker
}

// New creates a Store rooted at repoRoot, using the default staleness
// threshold and no live-session registry (age-only staleness).
func New(repoRoot string) *Store {
	return &Store{RepoRoot: repoRoot, StaleThreshold: DefaultStaleThreshold}
}

func (s *Store) locksDir() string {
	return filepath.Join(s.RepoRoot, ".claude", "cat", "locks")
}

func (s *Store) lockPath(issueID string) string {
	return filepath.Join(s.locksDir(), issueID+".lock")
}

// dirLockPath is the flock file serializing mutating Store operations
// across processes, so the read-check-write sequence below is atomic with
// respect to other CAT processes on the same machine.
func (s *Store) dirLockPath() string {
	return filepath.Join(s.locksDir(), ".store.flock")
}

func (s *Store) withDirLock(fn func() error) error {
	dir := s.locksDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating locks dir: %w", err)
	}
	fl := flock.New(s.dirLockPath())
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquiring lock-store flock: %w", err)
	}
	defer fl.Unlock() //nolint:errcheck
	return fn()
}

func (s *Store) threshold() time.Duration {
	if s.StaleThreshold > 0 {
		return s.StaleThreshold
	}
	return DefaultStaleThreshold
}

// IsStale reports whether lk is older than threshold and, when a live-session
// checker is configured, whether its owning session is no longer live.
func (s *Store) IsStale(lk *Lock, now time.Time) bool {
	if now.Sub(lk.AcquiredAt) < s.threshold() {
		return false
	}
	if s.IsLive != nil {
		return !s.IsLive(lk.SessionID)
	}
	return true
}

func readLock(path string) (*Lock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lk Lock
	if err := json.Unmarshal(data, &lk); err != nil {
		return nil, fmt.Errorf("parsing lock file %s: %w", path, err)
	}
	if lk.Worktrees == nil {
		lk.Worktrees = map[string]string{}
	}
	return &lk, nil
}

// writeLockAtomic writes lk to path via write-to-temp + rename, so a
// process killed mid-write never leaves a half-written lock file behind.
func writeLockAtomic(path string, lk *Lock) error {
	data, err := json.MarshalIndent(lk, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding lock: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-lock-*")
	if err != nil {
		return fmt.Errorf("creating temp lock file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp lock file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp lock file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp lock file into place: %w", err)
	}
	return nil
}

// Acquire creates issueId.lock for sessionID. If a non-stale lock already
// exists for the issue, it returns Contested with the holder's session id.
// A stale lock is treated as absent and overwritten.
func (s *Store) Acquire(issueID, sessionID string) (AcquireOutcome, string, error) {
	var outcome AcquireOutcome
	var holder string

	err := s.withDirLock(func() error {
		path := s.lockPath(issueID)
		existing, readErr := readLock(path)
		if readErr == nil {
			if !s.IsStale(existing, time.Now()) {
				outcome = Contested
				holder = existing.SessionID
				return nil
			}
			// Stale: fall through and overwrite.
		} else if !os.IsNotExist(readErr) {
			// Malformed lock: treat as absent (a broken lock must never
			// block scheduling forever), but don't silently lose the signal.
			_ = readErr
		}

		lk := &Lock{
			SessionID:  sessionID,
			AcquiredAt: time.Now().UTC(),
			Worktrees:  map[string]string{},
		}
		if err := os.MkdirAll(s.locksDir(), 0o755); err != nil {
			return fmt.Errorf("creating locks dir: %w", err)
		}
		if err := writeLockAtomic(path, lk); err != nil {
			return err
		}
		outcome = Acquired
		return nil
	})
	if err != nil {
		return 0, "", err
	}
	return outcome, holder, nil
}

// Update merges worktreePath -> agentID into the caller's own lock. Fails
// if the lock is not owned by sessionID.
func (s *Store) Update(issueID, sessionID, worktreePath, agentID string) error {
	return s.withDirLock(func() error {
		path := s.lockPath(issueID)
		lk, err := readLock(path)
		if err != nil {
			return fmt.Errorf("reading lock for %s: %w", issueID, err)
		}
		if lk.SessionID != sessionID {
			return fmt.Errorf("lock for %s is owned by %s, not %s", issueID, lk.SessionID, sessionID)
		}
		if lk.Worktrees == nil {
			lk.Worktrees = map[string]string{}
		}
		lk.Worktrees[worktreePath] = agentID
		return writeLockAtomic(path, lk)
	})
}

// Release deletes issueId.lock iff owned by sessionID. Idempotent: releasing
// an already-absent lock is not an error.
func (s *Store) Release(issueID, sessionID string) error {
	return s.withDirLock(func() error {
		path := s.lockPath(issueID)
		lk, err := readLock(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("reading lock for %s: %w", issueID, err)
		}
		if lk.SessionID != sessionID {
			return fmt.Errorf("lock for %s is owned by %s, not %s", issueID, lk.SessionID, sessionID)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing lock file: %w", err)
		}
		return nil
	})
}

// ForceRelease deletes issueId.lock regardless of owner. Used only by the
// cleanup/doctor command, never by normal scheduling flows.
func (s *Store) ForceRelease(issueID string) error {
	return s.withDirLock(func() error {
		path := s.lockPath(issueID)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing lock file: %w", err)
		}
		return nil
	})
}

// List returns every lock file's parsed entry. Malformed lock files are
// reported with Malformed=true rather than silently dropped so the doctor
// command and tests can tell the difference between "no lock" and "broken
// lock".
func (s *Store) List() ([]LockEntry, error) {
	dir := s.locksDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading locks dir: %w", err)
	}

	now := time.Now()
	var out []LockEntry
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".lock") {
			continue
		}
		issueID := strings.TrimSuffix(e.Name(), ".lock")
		path := filepath.Join(dir, e.Name())
		lk, err := readLock(path)
		if err != nil {
			out = append(out, LockEntry{IssueID: issueID, Malformed: true, ParseError: err.Error()})
			continue
		}
		out = append(out, LockEntry{
			IssueID:    issueID,
			SessionID:  lk.SessionID,
			AgeSeconds: now.Sub(lk.AcquiredAt).Seconds(),
			Worktrees:  lk.Worktrees,
		})
	}
	return out, nil
}

// Get reads a single lock by issue id. Returns (nil, nil) if absent.
func (s *Store) Get(issueID string) (*Lock, error) {
	lk, err := readLock(s.lockPath(issueID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return lk, nil
}
