package printer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	rased "github.com/goliatone/go-rased"
)

func loadRecord(t *testing.T, name string) rased.StudentRecord {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "testdata", name))
	require.NoError(t, err)
	var rec rased.StudentRecord
	require.NoError(t, json.Unmarshal(raw, &rec))
	return rec
}

func sessionRecord(t *testing.T) rased.StudentRecord {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "testdata", "session.json"))
	require.NoError(t, err)
	var sess rased.Session
	require.NoError(t, json.Unmarshal(raw, &sess))
	rec, ok := sess.Current()
	require.True(t, ok)
	return rec
}

func TestRenderWithoutLogoHasNoImage(t *testing.T) {
	rec := rased.NewStudent(rased.TeacherProfile{}, time.Date(2024, 9, 16, 0, 0, 0, 0, time.UTC))

	out, err := Render(rec, Options{})
	require.NoError(t, err)
	require.NotContains(t, out, "<img")
	require.Contains(t, out, "--accent: #000091;")
	require.Contains(t, out, DefaultTitle)
}

func TestRenderAccentSubstitution(t *testing.T) {
	rec := rased.NewStudent(rased.TeacherProfile{}, time.Now())

	out, err := Render(rec, Options{AccentColor: "#ff0000"})
	require.NoError(t, err)
	require.Contains(t, out, ":root { --accent: #ff0000; }")

	out, err = Render(rec, Options{AccentColor: "red;}body{display:none"})
	require.NoError(t, err)
	require.Contains(t, out, "--accent: #000091;")
	require.NotContains(t, out, "display:none")
}

func TestRenderFallsBackToRecordAccent(t *testing.T) {
	rec := loadRecord(t, "legacy_record.json")

	out, err := Render(rec, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "--accent: #1d4ed8;")
}

func TestRenderEmbedsLogo(t *testing.T) {
	rec := rased.NewStudent(rased.TeacherProfile{}, time.Now())
	logo := "data:image/png;base64,iVBORw0KGgo="

	out, err := Render(rec, Options{LogoDataURI: logo})
	require.NoError(t, err)
	require.Contains(t, out, `src="`+logo+`"`)
	require.Contains(t, out, `alt="Logo Éducation nationale"`)

	out, err = Render(rec, Options{LogoDataURI: "javascript:alert(1)"})
	require.NoError(t, err)
	require.NotContains(t, out, "<img")
}

func TestRenderEscapesUserText(t *testing.T) {
	rec := rased.NewStudent(rased.TeacherProfile{}, time.Now())
	rec.Student.FirstName = "<script>alert(1)</script>"
	rec.Remarks = "Tom & Jerry <b>"

	out, err := Render(rec, Options{})
	require.NoError(t, err)
	require.NotContains(t, out, "<script>alert(1)</script>")
	require.Contains(t, out, "&lt;script&gt;")
	require.Contains(t, out, "Tom &amp; Jerry &lt;b&gt;")
}

func TestRenderPlaceholdersForBlankRecord(t *testing.T) {
	rec := rased.NewStudent(rased.TeacherProfile{}, time.Now())

	out, err := Render(rec, Options{})
	require.NoError(t, err)
	for _, section := range []string{
		"Établissement &amp; élève",
		"Famille",
		"Difficultés &amp; suivis",
		"Place des parents",
		"Comportement &amp; Relations",
		"Apprentissages",
		"Besoins prioritaires",
		"Remarques complémentaires",
		"Conformité",
	} {
		require.Contains(t, out, section)
	}
	require.Contains(t, out, "<b>École :</b> —")
	require.Contains(t, out, "<li>—</li>")
	require.Contains(t, out, "<td>Autonomie</td><td>—</td><td>—</td>")
	require.Contains(t, out, "Freq: —<br>Qual: —")
	require.Contains(t, out, "Dossier incomplet")
	require.Contains(t, out, "Généré localement — RASED")
}

func TestRenderPageBreakBeforeRemarks(t *testing.T) {
	rec := rased.NewStudent(rased.TeacherProfile{}, time.Now())

	out, err := Render(rec, Options{})
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(out, `class="section pb"`))
	brk := strings.Index(out, `class="section pb"`)
	remarks := strings.Index(out, "Remarques complémentaires")
	require.Less(t, brk, remarks)
	require.Less(t, strings.Index(out, "Besoins prioritaires</div>"), brk)
}

func TestRenderCurrentGeneration(t *testing.T) {
	rec := sessionRecord(t)

	out, err := Render(rec, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "<td>Autonomie</td><td>Satisfaisant</td>")
	require.Contains(t, out, "Freq: Souvent<br>Qual: Bonne")
	require.Contains(t, out, "<td>Connaissance du code</td><td>Problématique</td><td>confusions b/d</td>")
	require.Contains(t, out, "Fluence :</b> 42 Mots/min (2024-09-10)")
	require.Contains(t, out, "Stade de maîtrise : Combinaison de syllabes simples (CV, VC, CVC)")
	require.Contains(t, out, "<b>Élève :</b> Noah Grondin")
	require.Contains(t, out, "Différenciation pédagogique :</b> Oui : Consignes reformulées")
	require.NotContains(t, out, "Dossier incomplet")
}

func TestRenderLegacyGeneration(t *testing.T) {
	rec := loadRecord(t, "legacy_record.json")
	require.Equal(t, rased.GenerationLegacy, rec.Behavior.Generation)

	out, err := Render(rec, Options{})
	require.NoError(t, err)
	require.Contains(t, out, "<td>Attention en classe</td><td>Fragile</td><td>se disperse</td>")
	require.Contains(t, out, "<td>Gestion des émotions</td><td>Bien</td><td>—</td>")
	require.Contains(t, out, "<td>Écriture</td><td>—</td><td>—</td>")
	require.Contains(t, out, "<td>Lecture</td><td>Fragile</td><td>déchiffrage lent</td>")
	require.NotContains(t, out, "Freq:")
	require.Contains(t, out, "<b>Déjà maintenu :</b> Oui")
	require.Contains(t, out, "<b>Niveau du maintien :</b> CP")
	require.Contains(t, out, "<td>Orthophonie</td><td>Amélie Fau</td><td>1/semaine</td><td>—</td>")
	require.Contains(t, out, "À vérifier (Plisse les yeux au tableau)")
}
