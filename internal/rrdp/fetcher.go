package rrdp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Fetcher runs one notification -> snapshot -> object set cycle against an
// RRDP publication point. It mutates the State it was given, which has no
// internal locking; callers must not run two cycles concurrently.
type Fetcher struct {
	notificationURL string
	getter          Getter
	state           *State
}

// NewFetcher creates a fetcher for the given notification endpoint. The
// caller owns state and may share it across fetcher instances as long as
// cycles stay serialized.
func NewFetcher(notificationURL string, getter Getter, state *State) *Fetcher {
	slog.Info("rrdp fetcher created", "url", notificationURL)
	return &Fetcher{
		notificationURL: notificationURL,
		getter:          getter,
		state:           state,
	}
}

// FetchObjects runs one full fetch cycle. On success the snapshot URL is
// committed to the state and the deduplicated object set is returned. On
// failure the state is untouched and the error is exactly one of
// *NotModifiedError, *SnapshotStructureError, *UpdateAbortedError or
// *FetcherError.
func (f *Fetcher) FetchObjects(ctx context.Context) (*FetchResult, error) {
	result, err := f.fetchObjects(ctx)
	if err != nil {
		return nil, classify(err)
	}

	// Successfully updated from the snapshot; commit the URL so the next
	// cycle can short-circuit if the pointer has not moved.
	f.state.lastSnapshotURL = result.SnapshotURL
	return result, nil
}

func (f *Fetcher) fetchObjects(ctx context.Context) (*FetchResult, error) {
	notificationBytes, err := f.get(ctx, f.notificationURL)
	if err != nil {
		return nil, err
	}

	notification, err := parseNotification(notificationBytes)
	if err != nil {
		return nil, err
	}

	// The protocol guarantees the snapshot URL changes whenever content
	// changes, so an unchanged pointer means there is nothing new to fetch.
	if notification.SnapshotURL == f.state.lastSnapshotURL {
		slog.Info("not updating: snapshot url is the same as during the last check", "url", notification.SnapshotURL)
		return nil, &NotModifiedError{URL: notification.SnapshotURL}
	}

	snapshotBytes, err := f.loadSnapshot(ctx, notification.SnapshotURL, notification.SnapshotHash)
	if err != nil {
		return nil, err
	}

	doc, roots, err := parseSnapshot(snapshotBytes)
	if err != nil {
		return nil, err
	}
	if err := validateSnapshotStructure(notification.Serial, notification.SnapshotURL, doc, roots); err != nil {
		return nil, err
	}

	objects, collisionCount, err := f.processPublishElements(doc)
	if err != nil {
		return nil, err
	}

	return &FetchResult{
		SnapshotURL:    notification.SnapshotURL,
		Serial:         notification.Serial,
		Objects:        objects,
		CollisionCount: collisionCount,
	}, nil
}

// get wraps the transport primitive and converts structured timeout signals
// into UpdateAbortedError before any other classification happens.
func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	data, err := f.getter.Get(ctx, url)
	if err == nil {
		return data, nil
	}

	if IsTimeout(err) {
		slog.Info("timeout while loading rrdp repo", "url", url)
		return nil, &UpdateAbortedError{URL: url, Cause: err}
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Is2xx() {
		// A genuine 2xx would not normally surface through the error channel;
		// assume the body timed out mid-transfer. Best-effort heuristic, so
		// keep the diagnostic loud and distinct.
		slog.Error("2xx response arrived through the error channel, assuming a timeout",
			"url", url, "status", statusErr.StatusCode, "err", err)
		return nil, &UpdateAbortedError{URL: url, Cause: err}
	}

	return nil, err
}

// loadSnapshot fetches the snapshot and verifies its digest against the value
// declared in the notification. This is the primary integrity defence against
// a corrupted or tampered transport.
func (f *Fetcher) loadSnapshot(ctx context.Context, snapshotURL, wantHash string) ([]byte, error) {
	slog.Info("loading rrdp snapshot", "url", snapshotURL)

	snapshotBytes, err := f.get(ctx, snapshotURL)
	if err != nil {
		return nil, err
	}

	gotHash := Sha256Hex(snapshotBytes)
	if !strings.EqualFold(gotHash, wantHash) {
		return nil, &SnapshotStructureError{
			URL: snapshotURL,
			Detail: fmt.Sprintf("with len(content) = %d had sha256(content) = %s, expected %s",
				len(snapshotBytes), gotHash, wantHash),
		}
	}
	return snapshotBytes, nil
}

// processPublishElements decodes every publish entry in document order,
// assigns content-addressed creation times and deduplicates by URI. The first
// occurrence of a URI wins; silently merging duplicates would hide upstream
// bugs or attacks, so the discarded digests are logged and counted instead.
func (f *Fetcher) processPublishElements(doc *xmlSnapshot) ([]RpkiObject, int, error) {
	now := time.Now()

	all := make([]RpkiObject, 0, len(doc.Publish))
	for _, entry := range doc.Publish {
		// xsd:base64Binary allows surrounding whitespace; trim it off before
		// decoding. A decode failure means the repository cannot be trusted
		// even partially, so it fails the whole cycle.
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(entry.Content))
		if err != nil {
			slog.Error("cannot decode object data", "uri", entry.URI)
			return nil, 0, fmt.Errorf("cannot decode object data for URI %s: %w", entry.URI, err)
		}

		digest := Sha256Hex(decoded)
		all = append(all, RpkiObject{
			URI:       entry.URI,
			Content:   decoded,
			Digest:    digest,
			CreatedAt: f.state.createdAtFor(digest, now),
		})
	}

	objects := make([]RpkiObject, 0, len(all))
	seen := make(map[string]bool, len(all))
	discarded := make(map[string][]string)
	collisionCount := 0
	for _, obj := range all {
		if seen[obj.URI] {
			collisionCount++
			discarded[obj.URI] = append(discarded[obj.URI], obj.Digest)
			continue
		}
		seen[obj.URI] = true
		objects = append(objects, obj)
	}

	for uri, digests := range discarded {
		slog.Warn("multiple objects for uri, keeping first element",
			"uri", uri, "discarded", strings.Join(digests, ", "))
	}

	return objects, collisionCount, nil
}

// classify maps every pipeline failure into exactly one of the four failure
// outcomes. Expected outcomes pass through untouched; everything else is
// wrapped as a FetcherError.
func classify(err error) error {
	var notModified *NotModifiedError
	if errors.As(err, &notModified) {
		return notModified
	}
	var structure *SnapshotStructureError
	if errors.As(err, &structure) {
		return structure
	}
	var aborted *UpdateAbortedError
	if errors.As(err, &aborted) {
		return aborted
	}
	return &FetcherError{Cause: err}
}
