package rrdp

import "time"

// State carries what survives between fetch cycles: the URL of the last
// snapshot that was fully consumed, and the first-observed time for every
// content digest. A failed cycle leaves the snapshot URL untouched.
//
// State has no locking of its own and is not safe for concurrent use; the
// Service holds a mutex around whole cycles.
type State struct {
	lastSnapshotURL string
	createdAt       map[string]time.Time
}

// NewState returns an empty State, as at process start.
func NewState() *State {
	return &State{createdAt: make(map[string]time.Time)}
}

// LastSnapshotURL returns the URL committed by the most recent successful
// cycle, or the empty string if no cycle has succeeded yet.
func (s *State) LastSnapshotURL() string { return s.lastSnapshotURL }

// createdAtFor returns the stable creation time for a digest, recording now
// the first time the digest is observed. Identical content republished under
// the same or a different URI keeps its original time until the State is
// discarded. The map grows without eviction; a repository's digest set is
// bounded in practice and restarting the process resets it.
func (s *State) createdAtFor(digest string, now time.Time) time.Time {
	if t, ok := s.createdAt[digest]; ok {
		return t
	}
	s.createdAt[digest] = now
	return now
}
