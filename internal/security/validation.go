package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Document limits. Save files carry whole conversation histories, so the
// size limit is generous; nesting only comes from character extensions.
const (
	DefaultMaxDocumentSize = 64 << 20 // 64 MiB
	DefaultMaxJSONDepth    = 64
)

// Validation errors.
var (
	ErrDocumentTooLarge = errors.New("document exceeds maximum size")
	ErrJSONTooDeep      = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON      = errors.New("invalid JSON")
)

// ValidateDocumentSize checks that data does not exceed limit bytes.
// If limit is <= 0, DefaultMaxDocumentSize is used.
func ValidateDocumentSize(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxDocumentSize
	}
	if len(data) > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrDocumentTooLarge, len(data), limit)
	}
	return nil
}

// ValidateJSONDepth checks that the JSON in data does not nest deeper
// than limit levels. If limit is <= 0, DefaultMaxJSONDepth is used.
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if depth != 0 {
					return fmt.Errorf("%w: unexpected end of input", ErrInvalidJSON)
				}
				return nil
			}
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}

// ReadJSON reads at most maxSize bytes from r and checks their nesting
// depth. Reading stops one byte past the limit, so an oversized body is
// rejected without being buffered whole. Zero limits select the defaults.
func ReadJSON(r io.Reader, maxSize, maxDepth int) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxDocumentSize
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(maxSize)+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if err := ValidateDocumentSize(data, maxSize); err != nil {
		return nil, err
	}
	if err := ValidateJSONDepth(data, maxDepth); err != nil {
		return nil, err
	}
	return data, nil
}
