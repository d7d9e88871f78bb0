// Package savefile exports the companion's persisted state to a portable,
// versioned JSON document and imports such documents back, migrating the
// legacy single-file layout on the way in.
//
// Storage ids and embeddings never leave the process: ids are reassigned on
// import and embeddings are recomputed by the backfill job.
package savefile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/flemzord/utsuwa/internal/companion"
	"github.com/flemzord/utsuwa/internal/memory"
)

// Service registry names.
const (
	CodecService    = "savefile.codec"
	MigratorService = "savefile.migrator"
)

// Version is the format version written by Export.
const Version = "2.0"

// v2Prefix selects the current format on import; any other version is read
// as the legacy layout.
const v2Prefix = "2."

// exportedAtLayout renders timestamps the way the save files have always
// carried them: UTC with millisecond precision.
const exportedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Errors.
var (
	// ErrInvalidSaveFile is returned, wrapped with the reason, for documents
	// that fail structural validation.
	ErrInvalidSaveFile = errors.New("savefile: invalid save file")

	// ErrUnknownMode is returned for import modes other than merge and replace.
	ErrUnknownMode = errors.New("savefile: unknown import mode")
)

// Mode selects how an import treats existing data.
type Mode string

// Import modes.
const (
	// ModeMerge keeps existing data. The incoming character is only added
	// when none exists; every other entity is appended.
	ModeMerge Mode = "merge"

	// ModeReplace clears every collection before inserting.
	ModeReplace Mode = "replace"
)

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeMerge, ModeReplace:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// SaveFile is the current document format.
type SaveFile struct {
	Version    string `json:"version"`
	ExportedAt string `json:"exportedAt"`
	AppVersion string `json:"appVersion"`
	Data       Data   `json:"data"`
}

// Data is the payload of a SaveFile.
type Data struct {
	Character         companion.CharacterState         `json:"character"`
	Facts             []memory.Fact                    `json:"facts"`
	Sessions          []companion.SessionSummary       `json:"sessions"`
	ConversationTurns []companion.ConversationTurn     `json:"conversationTurns"`
	CompletedEvents   []companion.CompletedEventRecord `json:"completedEvents"`
}

// WriteTo writes sf as JSON indented with two spaces. It implements
// io.WriterTo.
func (sf *SaveFile) WriteTo(w io.Writer) (int64, error) {
	b, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("savefile: encode: %w", err)
	}
	b = append(b, '\n')
	n, err := w.Write(b)
	return int64(n), err
}

// FileName returns the conventional file name for a save made on t's UTC date.
func FileName(t time.Time) string {
	return "utsuwa-save-" + t.UTC().Format(time.DateOnly) + ".json"
}

// WriteFile writes sf into dir under FileName(now) and returns the path.
// The file is written to a temporary name first and renamed into place, so
// an interrupted write never leaves a truncated save behind.
func WriteFile(dir string, sf *SaveFile, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("savefile: create directory: %w", err)
	}
	path := filepath.Join(dir, FileName(now))

	tmp, err := os.CreateTemp(dir, ".utsuwa-save-*.tmp")
	if err != nil {
		return "", fmt.Errorf("savefile: create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := sf.WriteTo(tmp); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("savefile: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("savefile: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("savefile: rename into %s: %w", path, err)
	}
	return path, nil
}
