package server

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/pkg/activity"
	"github.com/goliatone/go-rased/pkg/printer"
	"github.com/goliatone/go-rased/pkg/session"
	"github.com/goliatone/go-rased/pkg/transfer"
	"github.com/goliatone/go-rased/schema/jsonschema"
)

// Deps wires the handler to the session and the print settings.
type Deps struct {
	Store        *session.Store
	Logos        *printer.LogoResolver
	Print        printer.Options
	LogoURL      string
	ExportPrefix string
	Logger       Logger
	Now          func() time.Time
}

// Logger is the subset of internal/logger.Logger the server writes to.
type Logger interface {
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// SessionHandler exposes the session store as a JSON API.
type SessionHandler struct {
	store  *session.Store
	logos  *printer.LogoResolver
	print  printer.Options
	logo   string
	prefix string
	log    Logger
	now    func() time.Time
}

func NewSessionHandler(deps Deps) *SessionHandler {
	h := &SessionHandler{
		store:  deps.Store,
		logos:  deps.Logos,
		print:  deps.Print,
		logo:   deps.LogoURL,
		prefix: deps.ExportPrefix,
		log:    deps.Logger,
		now:    deps.Now,
	}
	if h.logos == nil {
		h.logos = printer.NewLogoResolver()
	}
	if h.log == nil {
		h.log = nopLogger{}
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

type wizardView struct {
	Step       int      `json:"step"`
	Title      string   `json:"title"`
	Titles     []string `json:"titles"`
	CanProceed bool     `json:"canProceed"`
	Missing    []string `json:"missing"`
	Rules      []string `json:"rules"`
}

type statusView struct {
	Status    session.Status `json:"status"`
	LastError string         `json:"lastError,omitempty"`
}

type sessionView struct {
	Session rased.Session `json:"session"`
	Wizard  wizardView    `json:"wizard"`
	Status  statusView    `json:"status"`
}

func (h *SessionHandler) wizard() wizardView {
	step := h.store.Step()
	missing, rules := h.store.Blockers()
	out := wizardView{
		Step:       step,
		Title:      rased.StepTitles[step],
		Titles:     rased.StepTitles,
		CanProceed: len(missing) == 0 && len(rules) == 0,
		Missing:    make([]string, 0, len(missing)),
		Rules:      make([]string, 0, len(rules)),
	}
	for _, field := range missing {
		out.Missing = append(out.Missing, field.String())
	}
	for _, rule := range rules {
		msg := rule.Message
		if msg == "" {
			msg = rule.Expr
		}
		out.Rules = append(out.Rules, msg)
	}
	return out
}

func (h *SessionHandler) status() statusView {
	out := statusView{Status: h.store.Status()}
	if err := h.store.LastError(); err != nil {
		out.LastError = err.Error()
	}
	return out
}

// GET /api/session
func (h *SessionHandler) GetSession(c *gin.Context) {
	RespondOK(c, sessionView{Session: h.store.Snapshot(), Wizard: h.wizard(), Status: h.status()})
}

// GET /api/current
func (h *SessionHandler) GetCurrent(c *gin.Context) {
	RespondOK(c, h.store.Current())
}

// GET /api/status
func (h *SessionHandler) GetStatus(c *gin.Context) {
	RespondOK(c, h.status())
}

type updateRequest struct {
	Path  string `json:"path" binding:"required"`
	Value any    `json:"value"`
}

// PATCH /api/current
func (h *SessionHandler) UpdateCurrent(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.store.UpdatePath(c.Request.Context(), req.Path, req.Value); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, gin.H{"student": h.store.Current(), "wizard": h.wizard(), "status": h.status()})
}

type teacherRequest struct {
	Value string `json:"value"`
}

// PUT /api/teacher/:field
func (h *SessionHandler) UpdateTeacher(c *gin.Context) {
	var req teacherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.store.UpdateTeacherField(c.Request.Context(), c.Param("field"), req.Value); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, h.store.Snapshot().Teacher)
}

// POST /api/students
func (h *SessionHandler) AddStudent(c *gin.Context) {
	rec := h.store.AddStudent(c.Request.Context())
	c.JSON(http.StatusCreated, rec)
}

// POST /api/students/:id/select
func (h *SessionHandler) SelectStudent(c *gin.Context) {
	if !h.store.SelectStudent(c.Request.Context(), c.Param("id")) {
		RespondError(c, http.StatusNotFound, "student_not_found", rased.ErrStudentNotFound)
		return
	}
	RespondOK(c, h.store.Current())
}

// DELETE /api/students/:id
func (h *SessionHandler) DeleteStudent(c *gin.Context) {
	if !h.store.DeleteStudent(c.Request.Context(), c.Param("id")) {
		RespondError(c, http.StatusNotFound, "student_not_found", rased.ErrStudentNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// GET /api/wizard
func (h *SessionHandler) GetWizard(c *gin.Context) {
	RespondOK(c, h.wizard())
}

// POST /api/wizard/next
func (h *SessionHandler) Next(c *gin.Context) {
	if err := h.store.Next(c.Request.Context()); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, h.wizard())
}

// POST /api/wizard/back
func (h *SessionHandler) Back(c *gin.Context) {
	h.store.Back(c.Request.Context())
	RespondOK(c, h.wizard())
}

type gotoRequest struct {
	Step *int `json:"step" binding:"required"`
}

// POST /api/wizard/goto
func (h *SessionHandler) GoTo(c *gin.Context) {
	var req gotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if err := h.store.GoTo(c.Request.Context(), *req.Step); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, h.wizard())
}

// GET /api/export?scope=student|session
func (h *SessionHandler) Export(c *gin.Context) {
	scope, err := transfer.ParseScope(c.Query("scope"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_scope", err)
		return
	}
	doc, err := transfer.Build(h.store.Snapshot(), scope, h.prefix, h.now())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.store.Record(c.Request.Context(), activity.VerbSessionExported, map[string]any{
		"scope": string(scope),
		"tier":  "download",
	})
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, "application/json; charset=utf-8", doc.Data)
}

// POST /api/import accepts a multipart "file" field or a raw JSON body.
func (h *SessionHandler) Import(c *gin.Context) {
	name := "import.json"
	var body io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile("file")
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		f, err := header.Open()
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		defer f.Close()
		name = filepath.Base(header.Filename)
		body = f
	}
	imported, err := transfer.Import(c.Request.Context(), h.store, name, body)
	if err != nil {
		h.log.Warn("import rejected", "file", name, "error", err)
		respondDomainError(c, err)
		return
	}
	RespondOK(c, imported)
}

// GET /api/print renders the current record, or ?student=<id>.
func (h *SessionHandler) Print(c *gin.Context) {
	snapshot := h.store.Snapshot()
	rec, ok := snapshot.Current()
	if id := c.Query("student"); id != "" {
		rec, ok = snapshot.Student(id)
	}
	if !ok {
		RespondError(c, http.StatusNotFound, "student_not_found", rased.ErrStudentNotFound)
		return
	}
	opts := h.print
	logo := rec.Settings.LogoURL
	if strings.TrimSpace(logo) == "" {
		logo = h.logo
	}
	opts.LogoDataURI = h.logos.Resolve(c.Request.Context(), logo)
	if accent := rec.Settings.AccentColor; rased.IsHexColor(accent) {
		opts.AccentColor = accent
	}
	html, err := printer.Render(rec, opts)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	h.store.Record(c.Request.Context(), activity.VerbStudentPrinted, map[string]any{"student_id": rec.ID})
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

// POST /api/reset
func (h *SessionHandler) Reset(c *gin.Context) {
	if err := h.store.Reset(c.Request.Context()); err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, h.store.Snapshot())
}

// GET /api/schema?scope=student|session
func (h *SessionHandler) Schema(c *gin.Context) {
	scope := jsonschema.ScopeSession
	if c.Query("scope") == string(jsonschema.ScopeStudent) {
		scope = jsonschema.ScopeStudent
	}
	doc, err := jsonschema.Generate(scope)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	RespondOK(c, doc)
}

type catalogView struct {
	Schools          []rased.School          `json:"schools"`
	SchoolTypes      []rased.SchoolType      `json:"schoolTypes"`
	Grades           map[string][]string     `json:"grades"`
	DoubleGrades     []string                `json:"doubleGrades"`
	CareTypes        []rased.CareType        `json:"careTypes"`
	SpeechTherapists []string                `json:"speechTherapists"`
	CodeStages       []rased.CodeStage       `json:"codeStages"`
	Scales           map[string][]string     `json:"scales"`
	Behavior         []string                `json:"behavior"`
	Relational       []string                `json:"relational"`
	Learning         []rased.LearningSection `json:"learning"`
}

// GET /api/catalog
func (h *SessionHandler) Catalog(c *gin.Context) {
	grades := make(map[string][]string, len(rased.GradesByType))
	for kind, list := range rased.GradesByType {
		grades[string(kind)] = list
	}
	RespondOK(c, catalogView{
		Schools:          rased.Schools,
		SchoolTypes:      rased.SchoolTypes,
		Grades:           grades,
		DoubleGrades:     rased.DoubleGradeSuggestions,
		CareTypes:        rased.CareTypes,
		SpeechTherapists: rased.SpeechTherapists,
		CodeStages:       rased.CodeStages,
		Scales: map[string][]string{
			"evaluation": rased.EvaluationScale,
			"frequency":  rased.FrequencyScale,
			"quality":    rased.QualityScale,
		},
		Behavior:   rased.BehaviorItems,
		Relational: rased.RelationalItems,
		Learning:   rased.LearningSections,
	})
}

// GET /healthcheck
func HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
