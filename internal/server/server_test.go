package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/pkg/printer"
	"github.com/goliatone/go-rased/pkg/session"
	"github.com/goliatone/go-rased/pkg/state"
)

var fixedNow = time.Date(2024, time.September, 16, 9, 30, 0, 0, time.UTC)

func init() {
	gin.SetMode(gin.TestMode)
}

type harness struct {
	t       *testing.T
	router  *gin.Engine
	store   *session.Store
	backend *state.MemoryStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	backend := state.NewMemoryStore()
	store, err := session.Open(context.Background(), backend, state.Ref{Slot: session.DefaultSlot},
		session.WithClock(func() time.Time { return fixedNow }),
		session.WithTiming(session.Timing{SavedAfter: time.Millisecond, IdleAfter: time.Millisecond}),
	)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	handler := NewSessionHandler(Deps{
		Store: store,
		Print: printer.Options{Title: "RASED – test"},
		Now:   func() time.Time { return fixedNow },
	})
	return &harness{t: t, router: NewRouter(RouterConfig{SessionHandler: handler}), store: store, backend: backend}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "127.0.0.1:51000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestRejectsNonLoopbackPeers(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCheckLoopback(t *testing.T) {
	require.NoError(t, CheckLoopback("127.0.0.1:8787"))
	require.NoError(t, CheckLoopback("[::1]:8787"))
	require.NoError(t, CheckLoopback("localhost:8787"))
	require.ErrorIs(t, CheckLoopback("0.0.0.0:8787"), ErrNotLoopback)
	require.ErrorIs(t, CheckLoopback(":8787"), ErrNotLoopback)
	require.Error(t, CheckLoopback("nope"))
}

func TestGetSession(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[sessionView](t, rec)
	require.Len(t, body.Session.Students, 1)
	require.Equal(t, 0, body.Wizard.Step)
	require.False(t, body.Wizard.CanProceed)
	require.Contains(t, body.Wizard.Missing, rased.FieldStudentBirthDate.String())
	require.Equal(t, session.StatusIdle, body.Status.Status)
}

func TestUpdateCurrentAndNavigate(t *testing.T) {
	h := newHarness(t)
	values := map[string]any{
		"etablissement.ecole":        "Simone VEIL",
		"etablissement.type_ecole":   "Élémentaire",
		"etablissement.date_demande": "2024-09-16",
		"etablissement.enseignant":   "Mme Payet",
		"eleve.nom":                  "Martin",
		"eleve.prenom":               "Lea",
		"eleve.date_naissance":       "2024-02-30",
		"eleve.niveau":               "CE1",
		"eleve.sexe":                 "F",
	}
	for path, value := range values {
		rec := h.do(http.MethodPatch, "/api/current", map[string]any{"path": path, "value": value})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := h.do(http.MethodPost, "/api/wizard/next", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPatch, "/api/current", map[string]any{"path": "eleve.date_naissance", "value": "2016-04-12"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, "/api/wizard/next", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, 1, decode[wizardView](t, rec).Step)

	rec = h.do(http.MethodPost, "/api/wizard/goto", map[string]any{"step": 5})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 5, decode[wizardView](t, rec).Step)

	rec = h.do(http.MethodPost, "/api/wizard/back", nil)
	require.Equal(t, 4, decode[wizardView](t, rec).Step)

	require.Equal(t, "Lea Martin", h.store.Current().DisplayName())
}

func TestUpdateCurrentErrors(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPatch, "/api/current", map[string]any{"path": "eleve.inconnu", "value": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "unknown_field", decode[ErrorEnvelope](t, rec).Error.Code)

	rec = h.do(http.MethodPatch, "/api/current", map[string]any{"value": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStudentsLifecycle(t *testing.T) {
	h := newHarness(t)
	first := h.store.Current().ID

	rec := h.do(http.MethodPost, "/api/students", nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	added := decode[rased.StudentRecord](t, rec)
	require.Equal(t, added.ID, h.store.Snapshot().CurrentStudentID)

	rec = h.do(http.MethodPost, "/api/students/"+first+"/select", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, first, h.store.Snapshot().CurrentStudentID)

	rec = h.do(http.MethodPost, "/api/students/missing/select", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodDelete, "/api/students/"+first, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	snap := h.store.Snapshot()
	require.Len(t, snap.Students, 1)
	require.Equal(t, added.ID, snap.CurrentStudentID)
}

func TestUpdateTeacher(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPut, "/api/teacher/nom", map[string]any{"value": "Mme Payet"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Mme Payet", decode[rased.TeacherProfile](t, rec).Name)

	rec = h.do(http.MethodPut, "/api/teacher/age", map[string]any{"value": "40"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportAndImportRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPatch, "/api/current", map[string]any{"path": "eleve.prenom", "value": "Lea"})
	before := h.store.Snapshot()

	rec := h.do(http.MethodGet, "/api/export?scope=session", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Disposition"), "rased-formulaire-2024-09-16.json")
	require.True(t, strings.HasPrefix(rec.Body.String(), "{\n  \""))
	exported := rec.Body.Bytes()

	h.do(http.MethodPost, "/api/students", nil)
	require.Len(t, h.store.Snapshot().Students, 2)

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	part, err := mw.CreateFormFile("file", "rased-formulaire-2024-09-16.json")
	require.NoError(t, err)
	_, err = part.Write(exported)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/import", &form)
	req.RemoteAddr = "127.0.0.1:51000"
	req.Header.Set("Content-Type", mw.FormDataContentType())
	out := httptest.NewRecorder()
	h.router.ServeHTTP(out, req)
	require.Equal(t, http.StatusOK, out.Code, out.Body.String())

	after := h.store.Snapshot()
	require.Len(t, after.Students, 1)
	require.Equal(t, before.Students[0].ID, after.Students[0].ID)
	require.Equal(t, "Lea", after.Students[0].Student.FirstName)
	require.Equal(t, 0, h.store.Step())
}

func TestImportRejectsMissingStudents(t *testing.T) {
	h := newHarness(t)
	before := h.store.Snapshot()

	rec := h.do(http.MethodPost, "/api/import", []byte(`{"teacher":{}}`))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(http.MethodPost, "/api/import", []byte(`{not json`))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, before.CurrentStudentID, h.store.Snapshot().CurrentStudentID)
}

func TestImportFixture(t *testing.T) {
	h := newHarness(t)
	raw, err := os.ReadFile(filepath.Join("..", "..", "testdata", "session.json"))
	require.NoError(t, err)

	rec := h.do(http.MethodPost, "/api/import", raw)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, h.store.Snapshot().Students, 2)
}

func TestPrint(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPatch, "/api/current", map[string]any{"path": "settings.accentColor", "value": "#ff0000"})

	rec := h.do(http.MethodGet, "/api/print", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	require.Contains(t, body, "--accent: #ff0000;")
	require.Contains(t, body, "RASED – test")
	require.NotContains(t, body, "<img")

	rec = h.do(http.MethodGet, "/api/print?student=unknown", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetAndStatus(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodPost, "/api/students", nil)

	rec := h.do(http.MethodPost, "/api/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, h.store.Snapshot().Students, 1)

	rec = h.do(http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, session.StatusIdle, decode[statusView](t, rec).Status)
}

func TestSchemaAndCatalog(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/api/schema?scope=student", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	require.Equal(t, "RASED student record", doc["title"])

	rec = h.do(http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	catalog := decode[catalogView](t, rec)
	require.NotEmpty(t, catalog.Schools)
	require.Equal(t, rased.Grades, catalog.Grades[string(rased.SchoolPrimary)])

	rec = h.do(http.MethodGet, "/healthcheck", nil)
	require.Equal(t, "ok", rec.Body.String())
}
