package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/internal/config"
	"github.com/goliatone/go-rased/pkg/session"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Backend = backend
	cfg.Storage.Dir = t.TempDir()
	cfg.Autosave.SavedAfter = config.Duration{Duration: time.Millisecond}
	cfg.Autosave.IdleAfter = config.Duration{Duration: time.Millisecond}
	return cfg
}

func TestNewWithMemoryBackend(t *testing.T) {
	a, err := NewWithConfig(context.Background(), testConfig(t, config.BackendMemory), nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	require.Len(t, a.Store.Snapshot().Students, 1)
	require.Equal(t, session.StatusIdle, a.Store.Status())
}

func TestFileBackendSurvivesRestart(t *testing.T) {
	cfg := testConfig(t, config.BackendFile)
	ctx := context.Background()

	first, err := NewWithConfig(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, first.Store.UpdateCurrentStudent(ctx, rased.FieldStudentFirstName, "Noa"))
	id := first.Store.Current().ID
	require.NoError(t, first.Close())

	second, err := NewWithConfig(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, second.Close()) })
	require.Equal(t, id, second.Store.Current().ID)
	require.Equal(t, "Noa", second.Store.Current().Student.FirstName)
}

func TestNewRejectsBadRules(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	cfg.Rules = []rased.Rule{{Step: 0, Expr: "eleve.nom ==", Engine: "expr"}}

	_, err := NewWithConfig(context.Background(), cfg, nil)
	require.Error(t, err)
}

func TestOpenBackendUnsupported(t *testing.T) {
	_, _, err := OpenBackend(context.Background(), config.StorageConfig{Backend: "etcd"}, nil)
	require.Error(t, err)
}

func TestPrintOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n0000"))
	}))
	t.Cleanup(srv.Close)

	cfg := testConfig(t, config.BackendMemory)
	cfg.Print.LogoURL = srv.URL + "/logo.png"
	cfg.Print.Title = "RASED"
	a, err := NewWithConfig(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	rec := a.Store.Current()
	rec.Settings.AccentColor = "#abcdef"
	opts := a.PrintOptions(context.Background(), rec)
	require.Equal(t, "#abcdef", opts.AccentColor)
	require.Equal(t, "RASED", opts.Title)
	require.True(t, strings.HasPrefix(opts.LogoDataURI, "data:image/png;base64,"), opts.LogoDataURI)

	rec.Settings.AccentColor = "red"
	rec.Settings.LogoURL = "data:image/svg+xml;base64,PHN2Zy8+"
	opts = a.PrintOptions(context.Background(), rec)
	require.Equal(t, cfg.Print.AccentColor, opts.AccentColor)
	require.Equal(t, "data:image/svg+xml;base64,PHN2Zy8+", opts.LogoDataURI)
}
