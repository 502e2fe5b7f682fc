package rrdp

import "fmt"

// NotModifiedError signals that the notification still points at the snapshot
// consumed by the previous cycle. Not a failure; there is nothing to do.
type NotModifiedError struct {
	URL string
}

func (e *NotModifiedError) Error() string {
	return fmt.Sprintf("snapshot at %s has not changed since the last cycle", e.URL)
}

// SnapshotStructureError signals that the remote data violated an integrity
// or consistency invariant: a digest mismatch, a missing snapshot root
// element or a serial that disagrees with the notification.
type SnapshotStructureError struct {
	URL    string
	Detail string
}

func (e *SnapshotStructureError) Error() string {
	return fmt.Sprintf("snapshot structure error for %s: %s", e.URL, e.Detail)
}

// UpdateAbortedError signals a timeout-like transport condition. Unlike
// SnapshotStructureError it carries no judgement about the remote data; the
// operation simply did not finish in time.
type UpdateAbortedError struct {
	URL   string
	Cause error
}

func (e *UpdateAbortedError) Error() string {
	return fmt.Sprintf("update from %s aborted: %v", e.URL, e.Cause)
}

func (e *UpdateAbortedError) Unwrap() error { return e.Cause }

// FetcherError wraps every remaining parse, format or transport failure so
// parser- and client-specific error types never cross the package boundary.
type FetcherError struct {
	Cause error
}

func (e *FetcherError) Error() string { return fmt.Sprintf("fetcher error: %v", e.Cause) }

func (e *FetcherError) Unwrap() error { return e.Cause }
