package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/internal/hydrate"
	"github.com/goliatone/go-rased/pkg/session"
)

var (
	ErrMissingStudents = hydrate.ErrMissingStudents
	ErrMalformed       = errors.New("transfer: malformed JSON")
)

// maxImportSize bounds what Import reads from a file.
const maxImportSize = 16 << 20

// Decode validates an import file and turns it into a repaired session.
// The document must be a JSON object holding a students array.
func Decode(name string, data []byte, now time.Time) (rased.Session, error) {
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return rased.Session{}, fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	if payload == nil {
		return rased.Session{}, fmt.Errorf("%w: %s: not an object", ErrMalformed, name)
	}
	out, err := hydrate.ImportedSession().Decode(hydrate.Context{Source: name, Now: now}, payload)
	if err != nil {
		return rased.Session{}, fmt.Errorf("transfer: import %s: %w", name, err)
	}
	return out, nil
}

// Import reads r, decodes it and replaces the store's session. Nothing is
// replaced when the file is rejected.
func Import(ctx context.Context, store *session.Store, name string, r io.Reader) (rased.Session, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxImportSize+1))
	if err != nil {
		return rased.Session{}, fmt.Errorf("transfer: read %s: %w", name, err)
	}
	if len(data) > maxImportSize {
		return rased.Session{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrMalformed, name, maxImportSize)
	}
	decoded, err := Decode(name, data, time.Now())
	if err != nil {
		return rased.Session{}, err
	}
	store.Replace(ctx, decoded)
	return store.Snapshot(), nil
}
