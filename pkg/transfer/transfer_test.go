package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/pkg/session"
	"github.com/goliatone/go-rased/pkg/state"
)

var fixedNow = time.Date(2024, time.September, 16, 9, 30, 0, 0, time.UTC)

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	return raw
}

func fixtureSession(t *testing.T) rased.Session {
	t.Helper()
	out, err := Decode("session.json", fixture(t, "session.json"), fixedNow)
	require.NoError(t, err)
	return out
}

func TestBuildStudentScope(t *testing.T) {
	sess := fixtureSession(t)

	doc, err := Build(sess, ScopeStudent, "", fixedNow)
	require.NoError(t, err)
	require.Equal(t, "rased-formulaire-"+sess.CurrentStudentID+".json", doc.Filename)
	require.True(t, bytes.HasPrefix(doc.Data, []byte("{\n  \"")), "expected two-space indentation")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(doc.Data, &rec))
	require.Equal(t, sess.CurrentStudentID, rec["id"])
	_, isList := rec["comportement"].([]any)
	require.True(t, isList)
}

func TestBuildSessionScopeRoundTrips(t *testing.T) {
	sess := fixtureSession(t)

	doc, err := Build(sess, ScopeSession, "export", fixedNow)
	require.NoError(t, err)
	require.Equal(t, "export-2024-09-16.json", doc.Filename)

	back, err := Decode(doc.Filename, doc.Data, fixedNow)
	require.NoError(t, err)
	require.Equal(t, sess, back)
}

func TestBuildRejectsUnknownScope(t *testing.T) {
	_, err := Build(fixtureSession(t), Scope("page"), "", fixedNow)
	require.Error(t, err)

	_, err = ParseScope("page")
	require.Error(t, err)
	scope, err := ParseScope("all")
	require.NoError(t, err)
	require.Equal(t, ScopeSession, scope)
}

func TestExporterFallsThroughTiers(t *testing.T) {
	var order []string
	failing := func(name string) Tier {
		return TierFunc{Label: name, Fn: func(context.Context, Document) error {
			order = append(order, name)
			return errors.New(name + " unavailable")
		}}
	}
	var out bytes.Buffer
	exporter := Exporter{
		Downloader: failing("download"),
		Clipboard:  failing("clipboard"),
		Fallback:   WriterFallback{W: &out},
	}

	result, err := exporter.Export(context.Background(), Document{Filename: "a.json", Data: []byte(`{}`)})
	require.NoError(t, err)
	require.Equal(t, "fallback", result.Tier)
	require.Equal(t, []string{"download", "clipboard"}, order)
	require.Equal(t, "{}\n", out.String())
}

func TestExporterStopsAtFirstSuccess(t *testing.T) {
	dir := t.TempDir()
	called := false
	exporter := Exporter{
		Downloader: FileDownloader{Dir: dir},
		Clipboard: TierFunc{Label: "clipboard", Fn: func(context.Context, Document) error {
			called = true
			return nil
		}},
	}

	result, err := exporter.Export(context.Background(), Document{Filename: "../escape.json", Data: []byte(`{"a":1}`)})
	require.NoError(t, err)
	require.Equal(t, "download", result.Tier)
	require.False(t, called)

	written, err := os.ReadFile(filepath.Join(dir, "escape.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(written))
}

func TestExporterAllTiersFailed(t *testing.T) {
	exporter := Exporter{
		Downloader: FileDownloader{Dir: filepath.Join(t.TempDir(), "missing", "dir")},
		Clipboard:  CommandClipboard{Command: []string{"rased-no-such-clipboard"}},
	}

	_, err := exporter.Export(context.Background(), Document{Filename: "a.json", Data: []byte(`{}`)})
	require.True(t, errors.Is(err, ErrAllTiersFailed), "got %v", err)
	require.Contains(t, err.Error(), "download")
	require.Contains(t, err.Error(), "clipboard")
}

type warnings []string

func (w *warnings) Warn(msg string, keysAndValues ...any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if keysAndValues[i] == "tier" {
			msg += " " + keysAndValues[i+1].(string)
		}
	}
	*w = append(*w, msg)
}

func TestExporterWarnsOnMissingTiers(t *testing.T) {
	var out bytes.Buffer
	var logged warnings
	exporter := Exporter{Fallback: WriterFallback{W: &out}, Logger: &logged}

	result, err := exporter.Export(context.Background(), Document{Filename: "a.json", Data: []byte(`{}`)})
	require.NoError(t, err)
	require.Equal(t, "fallback", result.Tier)
	require.Equal(t, warnings{"export tier not configured download", "export tier not configured clipboard"}, logged)

	logged = nil
	_, err = Exporter{Logger: &logged}.Export(context.Background(), Document{Filename: "a.json"})
	require.ErrorIs(t, err, ErrAllTiersFailed)
	require.Len(t, logged, 3)
}

func TestDecodeRejections(t *testing.T) {
	_, err := Decode("broken.json", []byte(`{"students": [`), fixedNow)
	require.True(t, errors.Is(err, ErrMalformed), "got %v", err)

	_, err = Decode("array.json", []byte(`[1,2]`), fixedNow)
	require.True(t, errors.Is(err, ErrMalformed), "got %v", err)

	_, err = Decode("null.json", []byte(`null`), fixedNow)
	require.True(t, errors.Is(err, ErrMalformed), "got %v", err)

	_, err = Decode("legacy.json", fixture(t, "legacy_record.json"), fixedNow)
	require.True(t, errors.Is(err, ErrMissingStudents), "got %v", err)
}

func TestImportReplacesSession(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemoryStore()
	store, err := session.Open(ctx, backend, state.Ref{Slot: session.DefaultSlot})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	before := store.Snapshot()

	_, err = Import(ctx, store, "legacy.json", bytes.NewReader(fixture(t, "legacy_record.json")))
	require.Error(t, err)
	require.Equal(t, before.CurrentStudentID, store.Snapshot().CurrentStudentID)

	imported, err := Import(ctx, store, "session.json", strings.NewReader(string(fixture(t, "session.json"))))
	require.NoError(t, err)
	require.Len(t, imported.Students, 2)
	require.Equal(t, "Mme Payet", store.Snapshot().Teacher.Name)
	require.Equal(t, 0, store.Step())

	_, _, ok, err := backend.Load(ctx, state.Ref{Slot: session.DefaultSlot})
	require.NoError(t, err)
	require.True(t, ok)
}
