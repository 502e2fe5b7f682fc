package rrdp

import "time"

// RpkiObject is one published repository object extracted from a snapshot.
// Immutable after construction; owned by the FetchResult it belongs to.
type RpkiObject struct {
	URI       string
	Content   []byte
	Digest    string
	CreatedAt time.Time
}

// FetchResult is the output of one successful fetch cycle: the deduplicated
// object set in document order plus the number of duplicate-URI collisions
// that were discarded to produce it.
type FetchResult struct {
	SnapshotURL    string
	Serial         uint64
	Objects        []RpkiObject
	CollisionCount int
}

// Cycle outcome labels as recorded in the fetch_cycles table and shown on the
// status page.
const (
	OutcomeSuccess        = "success"
	OutcomeNotModified    = "not_modified"
	OutcomeStructureError = "structure_error"
	OutcomeAborted        = "aborted"
	OutcomeFailure        = "failure"
)

// FetchCycle is one recorded fetch cycle outcome.
type FetchCycle struct {
	ID             int64
	Outcome        string
	Serial         uint64
	ObjectCount    int
	CollisionCount int
	Detail         string
	StartedAt      time.Time
	FinishedAt     time.Time
}
