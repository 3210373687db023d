package printer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"

	rased "github.com/goliatone/go-rased"
)

// Placeholder stands in for every absent value.
const Placeholder = "—"

// DefaultTitle heads the printed document.
const DefaultTitle = "Éducation nationale – RASED"

//go:embed templates/print.html.tmpl templates/print.css
var assets embed.FS

var (
	page       = template.Must(template.ParseFS(assets, "templates/print.html.tmpl"))
	stylesheet = mustRead("templates/print.css")
)

func mustRead(name string) string {
	data, err := assets.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return string(data)
}

// Options customizes a rendering. LogoDataURI is embedded as is, so it should
// already be resolved (see LogoResolver).
type Options struct {
	LogoDataURI string
	AccentColor string
	Title       string
}

// Render produces a self-contained A4 HTML document for rec.
func Render(rec rased.StudentRecord, opts Options) (string, error) {
	var buf bytes.Buffer
	if err := page.Execute(&buf, buildView(rec, opts)); err != nil {
		return "", fmt.Errorf("printer: render %s: %w", rec.ID, err)
	}
	return buf.String(), nil
}

// Stylesheet returns the print CSS with accent substituted, falling back to
// the default accent when it is not a hex color.
func Stylesheet(accent string) string {
	accent = rased.Norm(accent)
	if !rased.IsHexColor(accent) {
		accent = rased.DefaultAccentColor
	}
	return strings.ReplaceAll(stylesheet, "{{ACCENT}}", accent)
}

type pair struct {
	Label string
	Value string
}

type studentView struct {
	Name          string
	BirthDate     string
	Sex           string
	Grade         string
	ClassGrades   string
	Retained      string
	RetainedGrade string
}

type guardianView struct {
	Label string
	Name  string
	Phone string
	Email string
}

type followUpView struct {
	CareType     string
	Practitioner string
	Frequency    string
	Contact      string
}

type rowView struct {
	Item        string
	Evaluation  string
	Relational  bool
	Frequency   string
	Quality     string
	Observation string
}

type codeView struct {
	Stage       string
	Observation string
}

type fluencyView struct {
	WordsPerMinute string
	Date           string
}

type learningView struct {
	Title   string
	Rows    []rowView
	Code    *codeView
	Fluency *fluencyView
}

type complianceView struct {
	GuardiansInformed string
	SupportPlanJoined string
	Complete          bool
}

type view struct {
	Title               string
	CSS                 template.CSS
	Logo                template.URL
	School              string
	SchoolType          string
	RequestDate         string
	Teacher             string
	EditionDate         string
	Student             studentView
	Guardians           []guardianView
	Difficulties        string
	Responses           []pair
	Health              []pair
	FollowUps           []followUpView
	ParentalInvolvement string
	Behavior            []rowView
	Learning            []learningView
	PriorityNeeds       []string
	Remarks             string
	Compliance          complianceView
}

func buildView(rec rased.StudentRecord, opts Options) view {
	title := rased.Norm(opts.Title)
	if title == "" {
		title = DefaultTitle
	}
	accent := opts.AccentColor
	if rased.Norm(accent) == "" {
		accent = rec.Settings.AccentColor
	}
	est := rec.Establishment
	v := view{
		Title:               title,
		CSS:                 template.CSS(Stylesheet(accent)),
		Logo:                logoURL(opts.LogoDataURI),
		School:              orDash(est.SchoolName()),
		SchoolType:          orDash(string(est.SchoolType)),
		RequestDate:         orDash(est.RequestDate),
		Teacher:             orDash(est.Teacher),
		EditionDate:         orDash(rec.Meta.EditionDate),
		Student:             studentOf(rec),
		Guardians:           guardiansOf(rec.Family),
		Difficulties:        orDash(rec.Difficulties),
		Responses:           responsesOf(rec.SchoolResponses),
		Health:              healthOf(rec.Health),
		FollowUps:           followUpsOf(rec.ExternalFollowUps),
		ParentalInvolvement: orDash(rec.ParentalInvolvement),
		Remarks:             orDash(rec.Remarks),
		Compliance: complianceView{
			GuardiansInformed: yesNo(rec.Compliance.GuardiansInformed),
			SupportPlanJoined: yesNo(rec.Compliance.SupportPlanJoined),
			Complete:          rec.Compliance.Compliant(),
		},
	}
	for _, need := range rec.PriorityNeeds {
		v.PriorityNeeds = append(v.PriorityNeeds, orDash(need))
	}
	if rec.Behavior.Generation == rased.GenerationLegacy {
		v.Behavior = legacyBehavior(rec.Behavior)
	} else {
		v.Behavior = currentBehavior(rec.Behavior)
	}
	if rec.Learning.Generation == rased.GenerationLegacy {
		v.Learning = legacyLearning(rec)
	} else {
		v.Learning = currentLearning(rec)
	}
	return v
}

// logoURL trusts data:image payloads and http(s) URLs; any other reference
// is dropped.
func logoURL(ref string) template.URL {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(lower, "data:image/"),
		strings.HasPrefix(lower, "https://"),
		strings.HasPrefix(lower, "http://"):
		return template.URL(ref)
	default:
		return ""
	}
}

func studentOf(rec rased.StudentRecord) studentView {
	s := rec.Student
	name := strings.TrimSpace(rased.Norm(s.FirstName) + " " + rased.Norm(s.LastName))
	retained := Placeholder
	switch s.Retained {
	case rased.Yes:
		retained = "Oui"
	case rased.No:
		retained = "Non"
	}
	retainedGrade := Placeholder
	if s.Retained == rased.Yes {
		retainedGrade = orDash(s.RetainedGrade)
	}
	return studentView{
		Name:          orDash(name),
		BirthDate:     orDash(s.BirthDate),
		Sex:           orDash(string(s.Sex)),
		Grade:         orDash(s.Grade),
		ClassGrades:   orDash(s.ClassGrades),
		Retained:      retained,
		RetainedGrade: retainedGrade,
	}
}

func guardiansOf(f rased.Family) []guardianView {
	return []guardianView{
		{Label: "Responsable 1", Name: orDash(f.Guardian1Name), Phone: orDash(f.Guardian1Phone), Email: orDash(f.Guardian1Email)},
		{Label: "Responsable 2", Name: orDash(f.Guardian2Name), Phone: orDash(f.Guardian2Phone), Email: orDash(f.Guardian2Email)},
	}
}

func responsesOf(r rased.SchoolResponses) []pair {
	return []pair{
		{Label: "APC", Value: measure(r.APC)},
		{Label: "Différenciation pédagogique", Value: measure(r.Differentiation)},
		{Label: "Autres", Value: orDash(r.Other)},
	}
}

func measure(m rased.Measure) string {
	if !m.Active {
		return "Non"
	}
	if details := rased.Norm(m.Details); details != "" {
		return "Oui : " + details
	}
	return "Oui"
}

func healthOf(h rased.Health) []pair {
	return []pair{
		{Label: "Trouble auditif", Value: screening(h.Hearing, h.HearingDetails)},
		{Label: "Trouble visuel", Value: screening(h.Vision, h.VisionDetails)},
	}
}

func screening(s rased.Screening, details string) string {
	value := orDash(string(s))
	if d := rased.Norm(details); d != "" && s != rased.ScreeningUnset {
		value += " (" + d + ")"
	}
	return value
}

func followUpsOf(in []rased.ExternalFollowUp) []followUpView {
	out := make([]followUpView, 0, len(in))
	for _, f := range in {
		out = append(out, followUpView{
			CareType:     orDash(string(f.CareType)),
			Practitioner: orDash(f.PractitionerName()),
			Frequency:    orDash(f.Frequency),
			Contact:      orDash(f.Contact),
		})
	}
	return out
}

func currentBehavior(e rased.Evaluations) []rowView {
	rows := make([]rowView, 0, len(rased.BehaviorItems)+len(rased.RelationalItems))
	for _, item := range rased.BehaviorItems {
		a, _ := e.Lookup(item)
		rows = append(rows, rowView{Item: item, Evaluation: orDash(a.Evaluation), Observation: orDash(a.Observation)})
	}
	for _, item := range rased.RelationalItems {
		a, _ := e.Lookup(item)
		rows = append(rows, rowView{
			Item:        item,
			Relational:  true,
			Frequency:   orDash(a.Frequency),
			Quality:     orDash(a.Quality),
			Observation: orDash(a.Observation),
		})
	}
	return append(rows, uncataloged(e, rased.BehaviorItems, rased.RelationalItems)...)
}

func currentLearning(rec rased.StudentRecord) []learningView {
	out := make([]learningView, 0, len(rased.LearningSections)+1)
	var known [][]string
	for _, section := range rased.LearningSections {
		known = append(known, section.Items)
		lv := learningView{Title: section.Title}
		for _, item := range section.Items {
			a, _ := rec.Learning.Lookup(item)
			lv.Rows = append(lv.Rows, rowView{Item: item, Evaluation: orDash(a.Evaluation), Observation: orDash(a.Observation)})
		}
		if section.Title == "Lecture" {
			lv.Code, lv.Fluency = readingDetail(rec.LearningDetail)
		}
		out = append(out, lv)
	}
	if extra := uncataloged(rec.Learning, known...); len(extra) > 0 {
		out = append(out, learningView{Title: "Autres", Rows: extra})
	}
	return out
}

func readingDetail(d rased.LearningDetail) (*codeView, *fluencyView) {
	var code *codeView
	if d.Code.Stage != "" || rased.Norm(d.Code.Observation) != "" {
		code = &codeView{Stage: orDash(string(d.Code.Stage)), Observation: rased.Norm(d.Code.Observation)}
	}
	var fluency *fluencyView
	if d.Reading.WordsPerMinute > 0 {
		fluency = &fluencyView{
			WordsPerMinute: strconv.Itoa(int(d.Reading.WordsPerMinute)),
			Date:           orDash(d.Reading.Date),
		}
	}
	return code, fluency
}

// uncataloged keeps rows whose item is not in any of the catalogs, so data
// written under a renamed item is still printed.
func uncataloged(e rased.Evaluations, catalogs ...[]string) []rowView {
	known := map[string]bool{}
	for _, items := range catalogs {
		for _, item := range items {
			known[item] = true
		}
	}
	var out []rowView
	for _, a := range e.Current {
		if known[a.Item] || rased.Norm(a.Item) == "" {
			continue
		}
		row := rowView{Item: a.Item, Evaluation: orDash(a.Evaluation), Observation: orDash(a.Observation)}
		if a.Evaluation == "" && (a.Frequency != "" || a.Quality != "") {
			row.Relational = true
			row.Frequency = orDash(a.Frequency)
			row.Quality = orDash(a.Quality)
		}
		out = append(out, row)
	}
	return out
}

func legacyBehavior(e rased.Evaluations) []rowView {
	rows := make([]rowView, 0, len(rased.LegacyBehaviorItems))
	for _, item := range rased.LegacyBehaviorItems {
		entry, _ := e.LookupLegacy(item)
		rows = append(rows, rowView{Item: item, Evaluation: orDash(entry.Level), Observation: orDash(entry.Note)})
	}
	return append(rows, legacyExtra(e, rased.LegacyBehaviorItems)...)
}

func legacyLearning(rec rased.StudentRecord) []learningView {
	lv := learningView{Title: "Domaines"}
	for _, domain := range rased.LegacyLearningDomains {
		entry, _ := rec.Learning.LookupLegacy(domain)
		lv.Rows = append(lv.Rows, rowView{Item: domain, Evaluation: orDash(entry.Level), Observation: orDash(entry.Note)})
	}
	lv.Rows = append(lv.Rows, legacyExtra(rec.Learning, rased.LegacyLearningDomains)...)
	lv.Code, lv.Fluency = readingDetail(rec.LearningDetail)
	return []learningView{lv}
}

func legacyExtra(e rased.Evaluations, known []string) []rowView {
	seen := map[string]bool{}
	for _, k := range known {
		seen[k] = true
	}
	var out []rowView
	for _, entry := range e.Legacy {
		key := entry.Key()
		if seen[key] || rased.Norm(key) == "" {
			continue
		}
		out = append(out, rowView{Item: key, Evaluation: orDash(entry.Level), Observation: orDash(entry.Note)})
	}
	return out
}

func orDash(s string) string {
	if s = rased.Norm(s); s == "" || s == rased.OtherChoice {
		return Placeholder
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Oui"
	}
	return "Non"
}
