package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type cli struct {
	t      *testing.T
	config string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	for _, key := range []string{
		"RASED_CONFIG", "RASED_LOG_MODE", "RASED_STORAGE", "RASED_SLOT", "RASED_OWNER",
		"RASED_DATA_DIR", "RASED_DSN", "RASED_ACCENT", "RASED_LOGO_URL", "RASED_EXPORT_DIR",
		"RASED_HTTP_ADDR", "RASED_ACTIVITY",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("RASED_LOG_LEVEL", "error")
	dir := t.TempDir()
	t.Chdir(dir)
	config := filepath.Join(dir, "rased.yaml")
	body := "storage:\n  backend: file\n  dir: " + filepath.Join(dir, "data") + "\n" +
		"export:\n  dir: " + dir + "\n  clipboard: [\"false\"]\n"
	require.NoError(t, os.WriteFile(config, []byte(body), 0o600))
	return &cli{t: t, config: config}
}

func (c *cli) run(args ...string) (string, string, int) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), append([]string{"-config", c.config}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func (c *cli) ok(args ...string) string {
	c.t.Helper()
	out, errOut, code := c.run(args...)
	require.Equal(c.t, 0, code, errOut)
	return out
}

func TestUnknownCommand(t *testing.T) {
	c := newCLI(t)
	_, errOut, code := c.run("frobnicate")
	require.Equal(t, 2, code)
	require.Contains(t, errOut, "unknown command")
}

func TestEditsPersistBetweenInvocations(t *testing.T) {
	c := newCLI(t)

	c.ok("set", "eleve.prenom", "Lea")
	c.ok("set", "eleve.nom", "Martin")
	c.ok("teacher", "nom", "Mme Payet")
	c.ok("set", "eleve.deja_maintenu", "true")

	out := c.ok("show")
	require.Contains(t, out, "Lea Martin")
	require.Contains(t, out, "Enseignant : Mme Payet")
	require.Contains(t, out, "Étape 1/8")
	require.Contains(t, out, "manquant : eleve.date_naissance")

	raw := c.ok("show", "-json")
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	students := doc["students"].([]any)
	require.Len(t, students, 1)
	eleve := students[0].(map[string]any)["eleve"].(map[string]any)
	require.Equal(t, true, eleve["deja_maintenu"])
}

func TestSetRejectsUnknownPath(t *testing.T) {
	c := newCLI(t)
	_, errOut, code := c.run("set", "eleve.inconnu", "x")
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "unknown field")

	_, _, code = c.run("set", "eleve.nom")
	require.Equal(t, 2, code)
}

func TestNextBlockedReportsMissingFields(t *testing.T) {
	c := newCLI(t)
	out, _, code := c.run("next")
	require.Equal(t, 1, code)
	require.Contains(t, out, "manquant : etablissement.ecole")
}

func TestStudentsAddSelectDelete(t *testing.T) {
	c := newCLI(t)
	added := strings.TrimSpace(c.ok("add"))
	require.NotEmpty(t, added)

	out := c.ok("show")
	require.Contains(t, out, "* "+added)

	_, _, code := c.run("select", "nope")
	require.Equal(t, 1, code)

	c.ok("delete", added)
	require.NotContains(t, c.ok("show"), added)
}

func TestExportImportAndPrint(t *testing.T) {
	c := newCLI(t)
	c.ok("set", "eleve.prenom", "Noa")

	path := strings.TrimSpace(c.ok("export", "-scope", "session"))
	require.FileExists(t, path)
	require.True(t, strings.HasPrefix(filepath.Base(path), "rased-formulaire-"))

	c.ok("add")
	out := c.ok("import", path)
	require.Contains(t, out, "1 élève(s)")

	html := filepath.Join(t.TempDir(), "fiche.html")
	c.ok("print", "-o", html)
	data, err := os.ReadFile(html)
	require.NoError(t, err)
	require.Contains(t, string(data), "Noa")
	require.NotContains(t, string(data), "<img")
}

func TestImportRejectsStudentExport(t *testing.T) {
	c := newCLI(t)
	path := strings.TrimSpace(c.ok("export", "-scope", "student"))
	_, errOut, code := c.run("import", path)
	require.Equal(t, 1, code)
	require.Contains(t, errOut, "students")
}

func TestUpgradeStoredLegacyRecord(t *testing.T) {
	fixture, err := os.ReadFile(filepath.Join("..", "..", "testdata", "legacy_record.json"))
	require.NoError(t, err)
	c := newCLI(t)
	data := filepath.Join(filepath.Dir(c.config), "data")
	require.NoError(t, os.MkdirAll(data, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(data, "rased-session-v1.json"), fixture, 0o600))

	require.Contains(t, c.ok("show"), "Lea Martin")
	require.Contains(t, c.ok("upgrade"), "1 fiche(s)")
	require.Contains(t, c.ok("upgrade"), "0 fiche(s)")

	raw := c.ok("show", "-json")
	require.Contains(t, raw, `"evaluation_schema": 2`)
}

func TestSchemaIsStandalone(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"schema", "-scope", "student"}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	require.Contains(t, stdout.String(), `"$schema"`)

	stdout.Reset()
	code = run(context.Background(), []string{"schema", "-scope", "nope"}, &stdout, &stderr)
	require.Equal(t, 1, code)
}

func TestParseValue(t *testing.T) {
	v, err := parseValue("2016-04-12", false)
	require.NoError(t, err)
	require.Equal(t, "2016-04-12", v)

	v, err = parseValue("12", false)
	require.NoError(t, err)
	require.Equal(t, "12", v)

	v, err = parseValue("12", true)
	require.NoError(t, err)
	require.Equal(t, float64(12), v)

	v, err = parseValue(`["a","b"]`, false)
	require.NoError(t, err)
	require.Equal(t, []any{"a", "b"}, v)

	_, err = parseValue("{oops", false)
	require.Error(t, err)
}
