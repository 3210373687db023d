package rased

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// SchoolType is one of the three school categories.
type SchoolType string

const (
	SchoolNursery    SchoolType = "Maternelle"
	SchoolElementary SchoolType = "Élémentaire"
	SchoolPrimary    SchoolType = "Primaire"
)

// SchoolTypes lists the accepted school categories.
var SchoolTypes = []SchoolType{SchoolNursery, SchoolElementary, SchoolPrimary}

// Sex is the two-valued "sexe" field.
type Sex string

const (
	SexFemale Sex = "F"
	SexMale   Sex = "M"
)

// Screening is the hearing/vision screening outcome.
type Screening string

const (
	ScreeningUnset   Screening = ""
	ScreeningNo      Screening = "Non"
	ScreeningToCheck Screening = "À vérifier"
	ScreeningYes     Screening = "Oui"
)

// CareType is the kind of external follow-up.
type CareType string

const (
	CareSpeechTherapy CareType = "Orthophonie"
	CareOrthoptics    CareType = "Orthoptie"
	CarePsychomotor   CareType = "Psychomotricité"
	CareOccupational  CareType = "Ergothérapie"
	CarePsychologist  CareType = "Psychologue libéral"
	CareCMP           CareType = "CMP"
	CareCMPP          CareType = "CMPP"
	CareCAMSP         CareType = "CAMSP (0-6 ans)"
	CareSESSAD        CareType = "SESSAD"
	CareOther         CareType = "Autre"
)

// CareTypes lists follow-up kinds in form order.
var CareTypes = []CareType{
	CareSpeechTherapy, CareOrthoptics, CarePsychomotor, CareOccupational, CarePsychologist,
	CareCMP, CareCMPP, CareCAMSP, CareSESSAD, CareOther,
}

// NamedPractitionerCare lists care types whose practitioner name is typed freely.
var NamedPractitionerCare = []CareType{CareOrthoptics, CarePsychomotor, CareOccupational, CarePsychologist}

// SpeechTherapists is the curated roster offered for CareSpeechTherapy.
var SpeechTherapists = []string{
	// La Possession
	"Florence Wibratte",
	"Amélie Fau",
	"Anaëlle Patin",
	"Florence Grimault",
	// Le Port
	"Véronique Blanc",
	"Charline Gautrand",
	"Héloïse Marsili",
	"Amélie Bouvot",
}

// School is one entry of the reference list.
type School struct {
	Name string     `json:"nom"`
	Type SchoolType `json:"type"`
	Note string     `json:"note,omitempty"`
}

// Schools lists the schools of the district, sorted by name.
var Schools = sortedSchools([]School{
	{Name: "Arthur ALMERY", Type: SchoolElementary},
	{Name: "André BÈGUE (Mafate)", Type: SchoolElementary, Note: "La Nouvelle"},
	{Name: "Paul ÉLUARD", Type: SchoolElementary, Note: "Sainte-Thérèse"},
	{Name: "Évariste DE PARNY", Type: SchoolElementary, Note: "Centre-Ville"},
	{Name: "Îlet à AURÈRE (Mafate)", Type: SchoolElementary},
	{Name: "Auguste LACAUSSADE", Type: SchoolElementary, Note: "Rivière des Galets"},
	{Name: "Henri LAPIERRE", Type: SchoolElementary, Note: "Centre-Ville"},
	{Name: "Léonard THOMAS (Mafate)", Type: SchoolElementary, Note: "Grand-Place"},
	{Name: "Îlet à MALHEUR (Mafate)", Type: SchoolElementary},
	{Name: "André MALRAUX", Type: SchoolElementary, Note: "Saint-Laurent"},
	{Name: "Simone VEIL", Type: SchoolElementary, Note: "Cœur de Ville"},

	{Name: "Alain LORRAINE", Type: SchoolPrimary, Note: "Bœuf-Mort"},
	{Name: "Éloi JULENON", Type: SchoolPrimary},
	{Name: "Jean JAURÈS", Type: SchoolPrimary, Note: "Saint-Laurent"},
	{Name: "Joliot CURIE", Type: SchoolPrimary, Note: "Ravine à Malheur"},
	{Name: "Jules JORON", Type: SchoolPrimary, Note: "Moulin Joli"},
	{Name: "Îlet à BOURSE (Mafate)", Type: SchoolPrimary},

	{Name: "Isnelle AMELIN", Type: SchoolNursery, Note: "Saint-Laurent"},
	{Name: "CÉLIMÈNE", Type: SchoolNursery, Note: "Saint-Laurent"},
	{Name: "Jacques DUCLOS", Type: SchoolNursery, Note: "Sainte-Thérèse"},
	{Name: "Auguste LACAUSSADE (Mat.)", Type: SchoolNursery, Note: "Rivière des Galets"},
	{Name: "Henri LAPIERRE (Mat.)", Type: SchoolNursery, Note: "Centre-Ville"},
	{Name: "Raymond MONDON", Type: SchoolNursery, Note: "Camp Magloire"},
	{Name: "Laurent VERGÈS", Type: SchoolNursery},
})

func sortedSchools(in []School) []School {
	sort.SliceStable(in, func(i, j int) bool {
		return foldAccents(in[i].Name) < foldAccents(in[j].Name)
	})
	return in
}

var accentFolder = strings.NewReplacer(
	"À", "A", "Â", "A", "É", "E", "È", "E", "Ê", "E", "Î", "I", "Ï", "I", "Ô", "O", "Û", "U", "Ç", "C",
	"à", "a", "â", "a", "é", "e", "è", "e", "ê", "e", "î", "i", "ï", "i", "ô", "o", "û", "u", "ç", "c",
	"Œ", "OE", "œ", "oe",
)

func foldAccents(s string) string {
	return strings.ToLower(accentFolder.Replace(s))
}

// SchoolsOfType filters the reference list; an empty type returns all schools.
func SchoolsOfType(kind SchoolType) []School {
	if kind == "" {
		return append([]School(nil), Schools...)
	}
	out := make([]School, 0, len(Schools))
	for _, school := range Schools {
		if school.Type == kind {
			out = append(out, school)
		}
	}
	return out
}

// IsCatalogSchool reports whether name is in the reference list.
func IsCatalogSchool(name string) bool {
	for _, school := range Schools {
		if school.Name == name {
			return true
		}
	}
	return false
}

// Grades lists grade levels from toddler class to CM2.
var Grades = []string{"TPS", "PS", "MS", "GS", "CP", "CE1", "CE2", "CM1", "CM2"}

// DoubleGradeSuggestions lists common combined-grade labels.
var DoubleGradeSuggestions = []string{"PS-MS", "MS-GS", "GS-CP", "CP-CE1", "CE1-CE2", "CE2-CM1", "CM1-CM2"}

// GradesByType restricts grades to the ones a school type teaches.
var GradesByType = map[SchoolType][]string{
	SchoolNursery:    {"TPS", "PS", "MS", "GS"},
	SchoolElementary: {"CP", "CE1", "CE2", "CM1", "CM2"},
	SchoolPrimary:    Grades,
}

// CodeStage is a decoding mastery stage.
type CodeStage string

const (
	CodeStageLetters  CodeStage = "Identification des lettres uniquement"
	CodeStageSyllable CodeStage = "Combinaison de syllabes simples (CV, VC, CVC)"
	CodeStageComplex  CodeStage = "Identification et combinaison des sons complexes"
)

// CodeStages lists the stages in progression order.
var CodeStages = []CodeStage{CodeStageLetters, CodeStageSyllable, CodeStageComplex}

// Current-generation scales.
var (
	EvaluationScale = []string{"Très satisfaisant", "Satisfaisant", "Problématique"}
	FrequencyScale  = []string{"Jamais", "Rarement", "Souvent", "Toujours"}
	QualityScale    = []string{"Excellente", "Bonne", "Fragile", "Problématique"}
)

// Legacy-generation scales, both four points.
var (
	LegacyBehaviorScale    = []string{"Très bien", "Bien", "Fragile", "Préoccupant"}
	LegacyProficiencyScale = []string{"Acquis", "En cours d'acquisition", "Fragile", "Non acquis"}
)

// Current-generation item catalog.
var (
	BehaviorItems   = []string{"Autonomie", "Intérêt scolaire", "Attention / concentration", "Confiance en soi", "Rythme de travail", "Attitude face à la difficulté / à l’erreur", "Respect des règles"}
	RelationalItems = []string{"Relation aux pairs", "Relation aux adultes"}

	ReadingItems     = []string{"Connaissance des lettres", "Connaissance du code", "Écriture", "Compréhension écrite"}
	OralItems        = []string{"Ose prendre la parole, demander de l’aide…", "Qualité du langage (syntaxe, vocabulaire…)", "Cohérence des propos", "Compréhension orale"}
	MathItems        = []string{"Structuration spatio-temporelle", "Numération", "Techniques opératoires"}
	TransversalItems = []string{"Compréhension des consignes", "Mémorisation"}
)

// LearningSection groups catalog items under a printed heading.
type LearningSection struct {
	Title string
	Items []string
}

// LearningSections is the order in which learning items are presented.
var LearningSections = []LearningSection{
	{Title: "Lecture", Items: ReadingItems},
	{Title: "Langage oral", Items: OralItems},
	{Title: "Mathématiques", Items: MathItems},
	{Title: "Transversal", Items: TransversalItems},
}

// Legacy-generation item lists.
var (
	LegacyBehaviorItems   = []string{"Respect des règles", "Attention en classe", "Gestion des émotions", "Relation aux pairs", "Autonomie"}
	LegacyLearningDomains = []string{"Langage oral", "Lecture", "Écriture", "Mathématiques"}
)

// WPM is a words-per-minute reading fluency measure; zero means not measured.
// Forms submit it as text, so both numbers and numeric strings are accepted.
type WPM int

// MarshalJSON writes unmeasured fluency as an empty string.
func (w WPM) MarshalJSON() ([]byte, error) {
	if w <= 0 {
		return []byte(`""`), nil
	}
	return []byte(strconv.Itoa(int(w))), nil
}

// UnmarshalJSON reads a number, a numeric string, an empty string or null.
func (w *WPM) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" {
		*w = 0
		return nil
	}
	var raw any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	parsed, err := ParseWPM(raw)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// ParseWPM converts form input into a fluency measure.
func ParseWPM(value any) (WPM, error) {
	switch typed := value.(type) {
	case nil:
		return 0, nil
	case WPM:
		return typed, nil
	case int:
		return WPM(typed), nil
	case float64:
		return WPM(int(typed)), nil
	case json.Number:
		n, err := typed.Float64()
		if err != nil {
			return 0, err
		}
		return WPM(int(n)), nil
	case string:
		s := strings.TrimSpace(typed)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			return 0, errInvalidWPM(typed)
		}
		return WPM(int(n)), nil
	default:
		return 0, errInvalidWPM(value)
	}
}
