package rrdp

import (
	"strings"
	"testing"
)

func Test_ParseNotification(t *testing.T) {
	var tests = map[string]struct {
		input       string
		expected    *notificationDocument
		shouldError bool
	}{
		"valid document": {
			input: `<notification xmlns="http://www.ripe.net/rpki/rrdp" version="1" serial="42">` +
				`<snapshot uri="https://host/42/snapshot.xml" hash="AB12"/>` +
				`</notification>`,
			expected: &notificationDocument{
				Serial:       42,
				SnapshotURL:  "https://host/42/snapshot.xml",
				SnapshotHash: "AB12",
			},
		},
		"deltas are ignored": {
			input: `<notification serial="7">` +
				`<snapshot uri="https://host/7/snapshot.xml" hash="cd34"/>` +
				`<delta serial="6" uri="https://host/6/delta.xml" hash="ef56"/>` +
				`</notification>`,
			expected: &notificationDocument{
				Serial:       7,
				SnapshotURL:  "https://host/7/snapshot.xml",
				SnapshotHash: "cd34",
			},
		},
		"missing snapshot pointer": {
			input:       `<notification serial="7"></notification>`,
			shouldError: true,
		},
		"two snapshot pointers": {
			input: `<notification serial="7">` +
				`<snapshot uri="https://host/a.xml" hash="01"/>` +
				`<snapshot uri="https://host/b.xml" hash="02"/>` +
				`</notification>`,
			shouldError: true,
		},
		"non-integer serial": {
			input:       `<notification serial="seven"><snapshot uri="u" hash="h"/></notification>`,
			shouldError: true,
		},
		"negative serial": {
			input:       `<notification serial="-1"><snapshot uri="u" hash="h"/></notification>`,
			shouldError: true,
		},
		"malformed xml": {
			input:       `<notification serial="7"><snapshot`,
			shouldError: true,
		},
		"wrong root tag": {
			input:       `<announcement serial="7"><snapshot uri="u" hash="h"/></announcement>`,
			shouldError: true,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			parsed, err := parseNotification([]byte(test.input))
			if test.shouldError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if *parsed != *test.expected {
				t.Errorf("expected %+v, got %+v", test.expected, parsed)
			}
		})
	}
}

func Test_ParseSnapshot(t *testing.T) {
	var tests = map[string]struct {
		input         string
		expectedRoots int
		expectedTag   string
		expectedURIs  []string
		shouldError   bool
	}{
		"single snapshot root": {
			input: `<snapshot xmlns="http://www.ripe.net/rpki/rrdp" serial="3">` +
				`<publish uri="rsync://host/a.cer">QUJD</publish>` +
				`<publish uri="rsync://host/b.cer">REVG</publish>` +
				`</snapshot>`,
			expectedRoots: 1,
			expectedTag:   "snapshot",
			expectedURIs:  []string{"rsync://host/a.cer", "rsync://host/b.cer"},
		},
		"different root tag": {
			input:         `<delta serial="3"><publish uri="u">QUJD</publish></delta>`,
			expectedRoots: 1,
			expectedTag:   "delta",
			expectedURIs:  []string{"u"},
		},
		"two top-level elements": {
			input:         `<snapshot serial="3"></snapshot><snapshot serial="3"></snapshot>`,
			expectedRoots: 2,
			expectedTag:   "snapshot",
		},
		"no root element": {
			input:       `   `,
			shouldError: true,
		},
		"malformed xml": {
			input:       `<snapshot serial="3"><publish`,
			shouldError: true,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			doc, roots, err := parseSnapshot([]byte(test.input))
			if test.shouldError {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if roots != test.expectedRoots {
				t.Errorf("expected %d roots, got %d", test.expectedRoots, roots)
			}
			if doc.XMLName.Local != test.expectedTag {
				t.Errorf("expected root tag %q, got %q", test.expectedTag, doc.XMLName.Local)
			}
			for i, uri := range test.expectedURIs {
				if i >= len(doc.Publish) {
					t.Fatalf("expected %d publish entries, got %d", len(test.expectedURIs), len(doc.Publish))
				}
				if doc.Publish[i].URI != uri {
					t.Errorf("entry %d: expected uri %q, got %q", i, uri, doc.Publish[i].URI)
				}
			}
		})
	}
}

func Test_ValidateSnapshotStructure(t *testing.T) {
	const url = "https://host/3/snapshot.xml"

	var tests = map[string]struct {
		doc             *xmlSnapshot
		roots           int
		serial          uint64
		wantStructure   bool
		wantPlainError  bool
		detailSubstring string
	}{
		"valid": {
			doc:    snapshotDoc("snapshot", "3"),
			roots:  1,
			serial: 3,
		},
		"wrong root tag": {
			doc:             snapshotDoc("delta", "3"),
			roots:           1,
			serial:          3,
			wantStructure:   true,
			detailSubstring: "no <snapshot>",
		},
		"two roots": {
			doc:             snapshotDoc("snapshot", "3"),
			roots:           2,
			serial:          3,
			wantStructure:   true,
			detailSubstring: "no <snapshot>",
		},
		"serial mismatch names both serials": {
			doc:             snapshotDoc("snapshot", "5"),
			roots:           1,
			serial:          7,
			wantStructure:   true,
			detailSubstring: "contained serial=5, expected=7",
		},
		"non-integer serial": {
			doc:            snapshotDoc("snapshot", "three"),
			roots:          1,
			serial:         3,
			wantPlainError: true,
		},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			err := validateSnapshotStructure(test.serial, url, test.doc, test.roots)
			switch {
			case test.wantStructure:
				structErr, ok := err.(*SnapshotStructureError)
				if !ok {
					t.Fatalf("expected *SnapshotStructureError, got %T (%v)", err, err)
				}
				if structErr.URL != url {
					t.Errorf("expected URL %q, got %q", url, structErr.URL)
				}
				if !strings.Contains(structErr.Detail, test.detailSubstring) {
					t.Errorf("expected detail containing %q, got %q", test.detailSubstring, structErr.Detail)
				}
			case test.wantPlainError:
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if _, ok := err.(*SnapshotStructureError); ok {
					t.Errorf("expected a plain parse error, got structure error %v", err)
				}
			default:
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
			}
		})
	}
}

func snapshotDoc(tag, serial string) *xmlSnapshot {
	doc := &xmlSnapshot{Serial: serial}
	doc.XMLName.Local = tag
	return doc
}
