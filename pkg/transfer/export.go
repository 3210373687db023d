// Package transfer moves sessions in and out of JSON files.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	rased "github.com/goliatone/go-rased"
)

// DefaultPrefix starts every exported file name.
const DefaultPrefix = "rased-formulaire"

var ErrAllTiersFailed = errors.New("transfer: every export tier failed")

// Scope selects what an export contains.
type Scope string

const (
	// ScopeStudent exports the current record alone.
	ScopeStudent Scope = "student"
	// ScopeSession exports the whole session, importable as is.
	ScopeSession Scope = "session"
)

// ParseScope accepts the CLI spellings of a scope.
func ParseScope(value string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "student", "eleve", "élève":
		return ScopeStudent, nil
	case "session", "all":
		return ScopeSession, nil
	default:
		return "", fmt.Errorf("transfer: unknown scope %q", value)
	}
}

// Document is an export ready to hand to a tier.
type Document struct {
	Filename string
	Data     []byte
}

// Build encodes session for scope with two-space indentation. Student files
// are named after the record id, session files after the day.
func Build(session rased.Session, scope Scope, prefix string, now time.Time) (Document, error) {
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = DefaultPrefix
	}
	var (
		value  any
		suffix string
	)
	switch scope {
	case ScopeSession:
		value = session
		suffix = now.Format(time.DateOnly)
	case ScopeStudent, "":
		rec, ok := session.Current()
		if !ok {
			return Document{}, fmt.Errorf("transfer: %w: %q", rased.ErrStudentNotFound, session.CurrentStudentID)
		}
		value = rec
		suffix = rec.ID
	default:
		return Document{}, fmt.Errorf("transfer: unknown scope %q", scope)
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return Document{}, fmt.Errorf("transfer: encode %s: %w", scope, err)
	}
	return Document{Filename: prefix + "-" + suffix + ".json", Data: data}, nil
}

// Tier delivers a document one way: a file, the clipboard, a terminal.
type Tier interface {
	Name() string
	Deliver(ctx context.Context, doc Document) error
}

// Logger receives tier failures.
type Logger interface {
	Warn(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

// Exporter tries Downloader, then Clipboard, then Fallback and stops at the
// first tier that succeeds. Nil tiers are skipped with a warning.
type Exporter struct {
	Downloader Tier
	Clipboard  Tier
	Fallback   Tier
	Logger     Logger
}

// Result reports which tier delivered the document.
type Result struct {
	Tier     string
	Filename string
}

func (e Exporter) Export(ctx context.Context, doc Document) (Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	var errs []error
	for _, slot := range []struct {
		label string
		tier  Tier
	}{
		{"download", e.Downloader},
		{"clipboard", e.Clipboard},
		{"fallback", e.Fallback},
	} {
		tier := slot.tier
		if tier == nil {
			logger.Warn("export tier not configured", "tier", slot.label, "file", doc.Filename)
			continue
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		err := tier.Deliver(ctx, doc)
		if err == nil {
			return Result{Tier: tier.Name(), Filename: doc.Filename}, nil
		}
		logger.Warn("export tier failed", "tier", tier.Name(), "file", doc.Filename, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", tier.Name(), err))
	}
	if len(errs) == 0 {
		return Result{}, fmt.Errorf("%w: no tier configured", ErrAllTiersFailed)
	}
	return Result{}, fmt.Errorf("%w: %w", ErrAllTiersFailed, errors.Join(errs...))
}
