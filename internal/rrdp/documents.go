package rrdp

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// notificationDocument is the parsed notification file: the repository serial
// and the single snapshot pointer. Delta pointers are ignored; this mirror
// only consumes full snapshots.
type notificationDocument struct {
	Serial       uint64
	SnapshotURL  string
	SnapshotHash string
}

type xmlNotification struct {
	XMLName   xml.Name         `xml:"notification"`
	Serial    string           `xml:"serial,attr"`
	Snapshots []xmlSnapshotRef `xml:"snapshot"`
}

type xmlSnapshotRef struct {
	URI  string `xml:"uri,attr"`
	Hash string `xml:"hash,attr"`
}

func parseNotification(data []byte) (*notificationDocument, error) {
	var doc xmlNotification
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse notification document: %w", err)
	}

	serial, err := strconv.ParseUint(doc.Serial, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("notification serial %q is not a non-negative integer: %w", doc.Serial, err)
	}

	// The protocol requires exactly one snapshot pointer. Check anyway rather
	// than dereference a node that is not there.
	if len(doc.Snapshots) != 1 {
		return nil, fmt.Errorf("notification document carries %d snapshot pointers, expected exactly 1", len(doc.Snapshots))
	}

	return &notificationDocument{
		Serial:       serial,
		SnapshotURL:  doc.Snapshots[0].URI,
		SnapshotHash: doc.Snapshots[0].Hash,
	}, nil
}

// xmlSnapshot is the decoded snapshot document. XMLName is left
// unconstrained: a wrong root tag is a structural finding for the validator,
// not a parse failure.
type xmlSnapshot struct {
	XMLName xml.Name
	Serial  string       `xml:"serial,attr"`
	Publish []xmlPublish `xml:"publish"`
}

type xmlPublish struct {
	URI     string `xml:"uri,attr"`
	Content string `xml:",chardata"`
}

// parseSnapshot decodes the snapshot and counts top-level elements. A
// well-formed document has exactly one, but encoding/xml does not enforce a
// single root, so the count is real input for the validator.
func parseSnapshot(data []byte) (*xmlSnapshot, int, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var doc *xmlSnapshot
	roots := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to parse snapshot document: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		roots++
		if doc == nil {
			doc = new(xmlSnapshot)
			if err := dec.DecodeElement(doc, &start); err != nil {
				return nil, 0, fmt.Errorf("failed to parse snapshot document: %w", err)
			}
		} else if err := dec.Skip(); err != nil {
			return nil, 0, fmt.Errorf("failed to parse snapshot document: %w", err)
		}
	}
	if doc == nil {
		return nil, 0, fmt.Errorf("snapshot document contains no root element")
	}
	return doc, roots, nil
}

// validateSnapshotStructure checks the invariants the publisher must uphold:
// a single <snapshot> root whose serial equals the notification serial.
func validateSnapshotStructure(notificationSerial uint64, snapshotURL string, doc *xmlSnapshot, roots int) error {
	if roots != 1 || doc.XMLName.Local != "snapshot" {
		return &SnapshotStructureError{
			URL:    snapshotURL,
			Detail: "no <snapshot>...</snapshot> root element found",
		}
	}

	serial, err := strconv.ParseUint(doc.Serial, 10, 64)
	if err != nil {
		return fmt.Errorf("snapshot serial %q is not a non-negative integer: %w", doc.Serial, err)
	}

	if serial != notificationSerial {
		return &SnapshotStructureError{
			URL:    snapshotURL,
			Detail: fmt.Sprintf("contained serial=%d, expected=%d", serial, notificationSerial),
		}
	}
	return nil
}
