package companion

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
)

// Record is a JSON object whose only field known to the runtime is its
// optional storage id. Every other field round-trips unchanged.
type Record struct {
	ID     int64
	Fields map[string]json.RawMessage
}

// NewRecord builds a record from a raw JSON object.
func NewRecord(raw []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// Portable returns a copy of r without its storage id.
func (r Record) Portable() Record {
	return Record{Fields: maps.Clone(r.Fields)}
}

// Field decodes a single field into v. It reports false if the field is absent.
func (r Record) Field(name string, v any) (bool, error) {
	raw, ok := r.Fields[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("companion: field %q: %w", name, err)
	}
	return true, nil
}

// Body encodes the record without its id. Stores persist this form.
func (r Record) Body() ([]byte, error) {
	return r.Portable().MarshalJSON()
}

// MarshalJSON writes the record's fields, plus "id" when one is assigned.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Fields)+1)
	for k, v := range r.Fields {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	if r.ID != 0 {
		out["id"] = json.RawMessage(fmt.Sprintf("%d", r.ID))
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts any JSON object. A numeric "id" becomes the storage
// id; any other "id" value is discarded.
func (r *Record) UnmarshalJSON(data []byte) error {
	if !bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		return fmt.Errorf("companion: record must be a JSON object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("companion: decode record: %w", err)
	}
	r.ID = 0
	if raw, ok := fields["id"]; ok {
		var id int64
		if json.Unmarshal(raw, &id) == nil {
			r.ID = id
		}
		delete(fields, "id")
	}
	r.Fields = fields
	return nil
}

// SessionSummary is a stored summary of a past chat session.
type SessionSummary struct{ Record }

// ConversationTurn is one stored message of a conversation.
type ConversationTurn struct{ Record }

// CompletedEventRecord marks a relationship event as completed.
type CompletedEventRecord struct{ Record }
