package savefile

import (
	"fmt"
	"strings"
	"time"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/tidwall/gjson"
)

// collections are the arrays every document must carry, in either format.
var collections = []string{"facts", "sessions", "conversationTurns", "completedEvents"}

// Document is a save file that passed structural validation. It keeps the
// raw JSON; field values are coerced only when imported.
type Document struct {
	Version    string
	ExportedAt string
	AppVersion string

	data gjson.Result
}

// IsV2 reports whether the document uses the current format.
func (d *Document) IsV2() bool {
	return strings.HasPrefix(d.Version, v2Prefix)
}

// Parse validates raw as a save file of either format.
//
// Only the structure is checked: the root must be an object with string
// "version" and "exportedAt" and an object "data", and data must hold the
// four collection arrays. Current-format documents must also carry a
// "character" object. Legacy documents need no character at all.
func Parse(raw []byte) (*Document, error) {
	if !gjson.ValidBytes(raw) {
		return nil, invalid("malformed JSON")
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, invalid("document is not an object")
	}

	version := root.Get("version")
	if version.Type != gjson.String {
		return nil, invalid("version is not a string")
	}
	exportedAt := root.Get("exportedAt")
	if exportedAt.Type != gjson.String {
		return nil, invalid("exportedAt is not a string")
	}
	data := root.Get("data")
	if !data.IsObject() {
		return nil, invalid("data is not an object")
	}

	doc := &Document{
		Version:    version.String(),
		ExportedAt: exportedAt.String(),
		data:       data,
	}
	if v := root.Get("appVersion"); v.Type == gjson.String {
		doc.AppVersion = v.String()
	}

	if doc.IsV2() && !data.Get("character").IsObject() {
		return nil, invalid("data.character is missing")
	}
	for _, name := range collections {
		if !data.Get(name).IsArray() {
			return nil, invalid("data." + name + " is not an array")
		}
	}
	return doc, nil
}

func invalid(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidSaveFile, reason)
}

// Preview summarizes a document without importing it.
type Preview struct {
	Version string `json:"version"`

	// ExportedAt is zero when the document's timestamp does not parse.
	ExportedAt    time.Time `json:"exportedAt"`
	AppVersion    string    `json:"appVersion"`
	Counts        Counts    `json:"counts"`
	CharacterName string    `json:"characterName"`
}

// Counts is the number of entries per collection in a document.
type Counts struct {
	Facts             int `json:"facts"`
	Sessions          int `json:"sessions"`
	ConversationTurns int `json:"conversationTurns"`
	CompletedEvents   int `json:"completedEvents"`
}

// Preview returns the document summary.
func (d *Document) Preview() Preview {
	p := Preview{
		Version:    d.Version,
		AppVersion: d.AppVersion,
		Counts: Counts{
			Facts:             len(d.items("facts")),
			Sessions:          len(d.items("sessions")),
			ConversationTurns: len(d.items("conversationTurns")),
			CompletedEvents:   len(d.items("completedEvents")),
		},
		CharacterName: companion.DefaultName,
	}
	if p.AppVersion == "" {
		p.AppVersion = "unknown"
	}
	if t, ok := parseTime(d.ExportedAt); ok {
		p.ExportedAt = t
	}

	var name gjson.Result
	if d.IsV2() {
		name = d.data.Get("character.name")
	} else if persona, ok := d.first("personas"); ok {
		name = persona.Get("name")
	}
	if name.Type == gjson.String && name.String() != "" {
		p.CharacterName = name.String()
	}
	return p
}

func (d *Document) items(name string) []gjson.Result {
	return d.data.Get(name).Array()
}

// first returns the first element of the named array when it is an object.
func (d *Document) first(name string) (gjson.Result, bool) {
	arr := d.data.Get(name)
	if !arr.IsArray() {
		return gjson.Result{}, false
	}
	el := arr.Get("0")
	return el, el.IsObject()
}
