package rased

import (
	"strings"
)

// SessionVersion is the schema version stamped on every session written by
// this package. A bare StudentRecord found in storage predates it.
const SessionVersion = 1

// OtherChoice marks a select input whose value was typed in a companion
// free-text field instead of picked from a catalog.
const OtherChoice = "__AUTRE__"

// DefaultAccentColor is the institutional blue used when no accent is set.
const DefaultAccentColor = "#000091"

// DefaultStudentName is the placeholder display name of a fresh record.
const DefaultStudentName = "Nouvel élève"

// ImportedStudentName is the display name of a migrated record without a name.
const ImportedStudentName = "Élève importé"

// Session is the persisted aggregate: one teacher, many students.
type Session struct {
	Teacher          TeacherProfile  `json:"teacher"`
	Students         []StudentRecord `json:"students"`
	CurrentStudentID string          `json:"currentStudentId"`
	Meta             SessionMeta     `json:"meta"`
}

// SessionMeta carries the schema version and the last save timestamp.
type SessionMeta struct {
	Version   int    `json:"version"`
	LastSaved string `json:"lastSaved" format:"date-time"`
}

// TeacherProfile is shared by every student of a session.
type TeacherProfile struct {
	Name       string     `json:"nom"`
	School     string     `json:"ecole"`
	SchoolType SchoolType `json:"type_ecole"`
	Class      string     `json:"classe"`
}

// StudentRecord is one referral case.
type StudentRecord struct {
	ID                  string             `json:"id"`
	Name                string             `json:"name"`
	Meta                RecordMeta         `json:"meta"`
	Settings            PrintSettings      `json:"settings"`
	Establishment       Establishment      `json:"etablissement"`
	Student             StudentIdentity    `json:"eleve"`
	Family              Family             `json:"famille"`
	Difficulties        string             `json:"difficultes"`
	SchoolResponses     SchoolResponses    `json:"reponses_ecole"`
	Health              Health             `json:"sante"`
	ExternalFollowUps   []ExternalFollowUp `json:"suivis_exterieurs"`
	ParentalInvolvement string             `json:"place_parents"`
	Behavior            Evaluations        `json:"-"`
	Learning            Evaluations        `json:"-"`
	LearningDetail      LearningDetail     `json:"apprentissages_detail"`
	Remarks             string             `json:"remarques_besoins"`
	PriorityNeeds       [2]string          `json:"besoins_prioritaires"`
	Compliance          Compliance         `json:"conformites"`

	// Extra keeps keys written by older versions so they survive a round trip.
	Extra map[string]any `json:"-"`
}

// RecordMeta holds the edition date and the evaluation schema marker.
type RecordMeta struct {
	EditionDate      string     `json:"date_edition" format:"date"`
	EvaluationSchema Generation `json:"evaluation_schema,omitempty"`
}

// PrintSettings customizes the printed document.
type PrintSettings struct {
	LogoURL     string `json:"logoUrl"`
	AccentColor string `json:"accentColor" pattern:"^(#[0-9a-fA-F]{3}|#[0-9a-fA-F]{6})?$"`
}

// Establishment identifies the school that issues the request.
type Establishment struct {
	School      string     `json:"ecole"`
	SchoolOther string     `json:"ecole_libre"`
	SchoolType  SchoolType `json:"type_ecole"`
	RequestDate string     `json:"date_demande" format:"date"`
	Teacher     string     `json:"enseignant"`
}

// SchoolName resolves a catalog selection or the free-text fallback.
func (e Establishment) SchoolName() string {
	school := Norm(e.School)
	if school != "" && school != OtherChoice {
		return school
	}
	return Norm(e.SchoolOther)
}

// StudentIdentity is the "eleve" block.
type StudentIdentity struct {
	LastName      string   `json:"nom"`
	FirstName     string   `json:"prenom"`
	BirthDate     string   `json:"date_naissance" format:"date"`
	Sex           Sex      `json:"sexe"`
	Grade         string   `json:"niveau"`
	ClassGrades   string   `json:"niveau_classe"`
	Retained      TriState `json:"deja_maintenu,omitempty"`
	RetainedGrade string   `json:"niveau_maintien"`
}

// Family holds the two legal guardian contacts.
type Family struct {
	Guardian1Name  string `json:"responsable1_nom"`
	Guardian1Phone string `json:"responsable1_tel"`
	Guardian1Email string `json:"responsable1_email" format:"email"`
	Guardian2Name  string `json:"responsable2_nom"`
	Guardian2Phone string `json:"responsable2_tel"`
	Guardian2Email string `json:"responsable2_email" format:"email"`
}

// Measure is a togglable school response.
type Measure struct {
	Active  bool   `json:"actif"`
	Details string `json:"details"`
}

// SchoolResponses lists what the school already put in place.
type SchoolResponses struct {
	APC             Measure `json:"apc"`
	Differentiation Measure `json:"differenciation"`
	Other           string  `json:"autres"`
}

// Health records the hearing and vision screenings.
type Health struct {
	Hearing        Screening `json:"trouble_auditif"`
	HearingDetails string    `json:"trouble_auditif_details"`
	Vision         Screening `json:"trouble_visuel"`
	VisionDetails  string    `json:"trouble_visuel_details"`
}

// ExternalFollowUp is one care arrangement outside school.
type ExternalFollowUp struct {
	CareType          CareType `json:"dispositif"`
	Practitioner      string   `json:"professionnel"`
	PractitionerOther string   `json:"professionnel_libre,omitempty"`
	Frequency         string   `json:"frequence"`
	Contact           string   `json:"contact"`
}

// PractitionerName resolves the roster selection for speech therapy.
func (f ExternalFollowUp) PractitionerName() string {
	if f.Practitioner == OtherChoice {
		return Norm(f.PractitionerOther)
	}
	return Norm(f.Practitioner)
}

// LearningDetail carries structured reading measures.
type LearningDetail struct {
	Reading ReadingFluency `json:"lecture"`
	Code    CodeMastery    `json:"code"`
}

// ReadingFluency is a words-per-minute measure and its date.
type ReadingFluency struct {
	WordsPerMinute WPM    `json:"fluence_mcl"`
	Date           string `json:"date" format:"date"`
}

// CodeMastery records the decoding stage reached.
type CodeMastery struct {
	Stage       CodeStage `json:"stade"`
	Observation string    `json:"observation"`
}

// Compliance flags checked before sending the referral.
type Compliance struct {
	GuardiansInformed bool `json:"parents_informes"`
	SupportPlanJoined bool `json:"ppre_joint"`
}

// Compliant reports whether both compliance boxes are ticked.
func (c Compliance) Compliant() bool {
	return c.GuardiansInformed && c.SupportPlanJoined
}

// DisplayName derives the label shown in student lists.
func (r StudentRecord) DisplayName() string {
	full := strings.TrimSpace(Norm(r.Student.FirstName) + " " + Norm(r.Student.LastName))
	if full != "" {
		return full
	}
	if name := Norm(r.Name); name != "" {
		return name
	}
	return DefaultStudentName
}

// Student returns the record with id, or false.
func (s Session) Student(id string) (StudentRecord, bool) {
	idx := s.IndexOf(id)
	if idx < 0 {
		return StudentRecord{}, false
	}
	return s.Students[idx], true
}

// IndexOf returns the position of id in Students or -1.
func (s Session) IndexOf(id string) int {
	for i := range s.Students {
		if s.Students[i].ID == id {
			return i
		}
	}
	return -1
}

// Current returns the record referenced by CurrentStudentID.
func (s Session) Current() (StudentRecord, bool) {
	return s.Student(s.CurrentStudentID)
}
