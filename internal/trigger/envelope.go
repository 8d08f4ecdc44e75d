// Package trigger normalizes raw Firestore document-creation envelopes, as
// routed to Pub/Sub by the host trigger runtime, into typed domain events.
package trigger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Envelope mirrors the Firestore trigger payload: the created document's full
// resource name, its typed field values, and the creation timestamp.
type Envelope struct {
	Value DocumentValue `json:"value"`
}

type DocumentValue struct {
	CreateTime time.Time        `json:"createTime"`
	Name       string           `json:"name"`
	Fields     map[string]Field `json:"fields"`
}

// Field holds one Firestore-encoded value. Only the value types the five
// trigger streams actually carry are decoded.
type Field struct {
	StringValue    *string    `json:"stringValue,omitempty"`
	IntegerValue   *string    `json:"integerValue,omitempty"`
	TimestampValue *time.Time `json:"timestampValue,omitempty"`
}

// Str returns the named field's string value, or "" when absent or not a
// string.
func (d DocumentValue) Str(name string) string {
	f, ok := d.Fields[name]
	if !ok || f.StringValue == nil {
		return ""
	}
	return *f.StringValue
}

// Path returns the document path relative to the database root, e.g.
// "users/u1/notifications/n1".
func (d DocumentValue) Path() (string, error) {
	const marker = "/documents/"
	idx := strings.Index(d.Name, marker)
	if idx < 0 {
		return "", fmt.Errorf("document name %q has no /documents/ segment", d.Name)
	}
	path := d.Name[idx+len(marker):]
	if path == "" {
		return "", fmt.Errorf("document name %q has an empty path", d.Name)
	}
	return path, nil
}

// ParseEnvelope decodes a raw trigger message body.
func ParseEnvelope(payload []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger envelope: %w", err)
	}
	if env.Value.Name == "" {
		return nil, fmt.Errorf("trigger envelope has no document name")
	}
	return &env, nil
}

// EventID derives the stable idempotency key for a document creation. Hashing
// the relative path keeps the key deterministic across duplicate deliveries
// and safe to use as a flat document ID.
func EventID(documentPath string) string {
	sum := sha256.Sum256([]byte(documentPath))
	return hex.EncodeToString(sum[:])
}
