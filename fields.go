package rased

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
)

// Field addresses one attribute of a StudentRecord by its storage path.
type Field string

const (
	FieldName        Field = "name"
	FieldMeta        Field = "meta"
	FieldEditionDate Field = "meta.date_edition"
	FieldSettings    Field = "settings"
	FieldLogoURL     Field = "settings.logoUrl"
	FieldAccentColor Field = "settings.accentColor"

	FieldEstablishment            Field = "etablissement"
	FieldEstablishmentSchool      Field = "etablissement.ecole"
	FieldEstablishmentSchoolOther Field = "etablissement.ecole_libre"
	FieldEstablishmentSchoolType  Field = "etablissement.type_ecole"
	FieldEstablishmentRequestDate Field = "etablissement.date_demande"
	FieldEstablishmentTeacher     Field = "etablissement.enseignant"

	FieldStudent              Field = "eleve"
	FieldStudentLastName      Field = "eleve.nom"
	FieldStudentFirstName     Field = "eleve.prenom"
	FieldStudentBirthDate     Field = "eleve.date_naissance"
	FieldStudentSex           Field = "eleve.sexe"
	FieldStudentGrade         Field = "eleve.niveau"
	FieldStudentClassGrades   Field = "eleve.niveau_classe"
	FieldStudentRetained      Field = "eleve.deja_maintenu"
	FieldStudentRetainedGrade Field = "eleve.niveau_maintien"

	FieldFamily         Field = "famille"
	FieldGuardian1Name  Field = "famille.responsable1_nom"
	FieldGuardian1Phone Field = "famille.responsable1_tel"
	FieldGuardian1Email Field = "famille.responsable1_email"
	FieldGuardian2Name  Field = "famille.responsable2_nom"
	FieldGuardian2Phone Field = "famille.responsable2_tel"
	FieldGuardian2Email Field = "famille.responsable2_email"

	FieldDifficulties           Field = "difficultes"
	FieldSchoolResponses        Field = "reponses_ecole"
	FieldAPC                    Field = "reponses_ecole.apc"
	FieldAPCActive              Field = "reponses_ecole.apc.actif"
	FieldAPCDetails             Field = "reponses_ecole.apc.details"
	FieldDifferentiation        Field = "reponses_ecole.differenciation"
	FieldDifferentiationActive  Field = "reponses_ecole.differenciation.actif"
	FieldDifferentiationDetails Field = "reponses_ecole.differenciation.details"
	FieldOtherMeasures          Field = "reponses_ecole.autres"

	FieldHealth         Field = "sante"
	FieldHearing        Field = "sante.trouble_auditif"
	FieldHearingDetails Field = "sante.trouble_auditif_details"
	FieldVision         Field = "sante.trouble_visuel"
	FieldVisionDetails  Field = "sante.trouble_visuel_details"

	FieldExternalFollowUps   Field = "suivis_exterieurs"
	FieldParentalInvolvement Field = "place_parents"
	FieldBehavior            Field = "comportement"
	FieldLearning            Field = "apprentissages"

	FieldLearningDetail    Field = "apprentissages_detail"
	FieldReading           Field = "apprentissages_detail.lecture"
	FieldReadingFluency    Field = "apprentissages_detail.lecture.fluence_mcl"
	FieldReadingDate       Field = "apprentissages_detail.lecture.date"
	FieldCode              Field = "apprentissages_detail.code"
	FieldCodeStage         Field = "apprentissages_detail.code.stade"
	FieldCodeObservation   Field = "apprentissages_detail.code.observation"
	FieldRemarks           Field = "remarques_besoins"
	FieldPriorityNeeds     Field = "besoins_prioritaires"
	FieldPriorityNeed1     Field = "besoins_prioritaires.0"
	FieldPriorityNeed2     Field = "besoins_prioritaires.1"
	FieldCompliance        Field = "conformites"
	FieldGuardiansInformed Field = "conformites.parents_informes"
	FieldSupportPlan       Field = "conformites.ppre_joint"
)

// lens returns a pointer into rec for the field it is registered under.
type lens func(rec *StudentRecord) any

var lenses = map[Field]lens{
	FieldName:        func(r *StudentRecord) any { return &r.Name },
	FieldMeta:        func(r *StudentRecord) any { return &r.Meta },
	FieldEditionDate: func(r *StudentRecord) any { return &r.Meta.EditionDate },
	FieldSettings:    func(r *StudentRecord) any { return &r.Settings },
	FieldLogoURL:     func(r *StudentRecord) any { return &r.Settings.LogoURL },
	FieldAccentColor: func(r *StudentRecord) any { return &r.Settings.AccentColor },

	FieldEstablishment:            func(r *StudentRecord) any { return &r.Establishment },
	FieldEstablishmentSchool:      func(r *StudentRecord) any { return &r.Establishment.School },
	FieldEstablishmentSchoolOther: func(r *StudentRecord) any { return &r.Establishment.SchoolOther },
	FieldEstablishmentSchoolType:  func(r *StudentRecord) any { return &r.Establishment.SchoolType },
	FieldEstablishmentRequestDate: func(r *StudentRecord) any { return &r.Establishment.RequestDate },
	FieldEstablishmentTeacher:     func(r *StudentRecord) any { return &r.Establishment.Teacher },

	FieldStudent:              func(r *StudentRecord) any { return &r.Student },
	FieldStudentLastName:      func(r *StudentRecord) any { return &r.Student.LastName },
	FieldStudentFirstName:     func(r *StudentRecord) any { return &r.Student.FirstName },
	FieldStudentBirthDate:     func(r *StudentRecord) any { return &r.Student.BirthDate },
	FieldStudentSex:           func(r *StudentRecord) any { return &r.Student.Sex },
	FieldStudentGrade:         func(r *StudentRecord) any { return &r.Student.Grade },
	FieldStudentClassGrades:   func(r *StudentRecord) any { return &r.Student.ClassGrades },
	FieldStudentRetained:      func(r *StudentRecord) any { return &r.Student.Retained },
	FieldStudentRetainedGrade: func(r *StudentRecord) any { return &r.Student.RetainedGrade },

	FieldFamily:         func(r *StudentRecord) any { return &r.Family },
	FieldGuardian1Name:  func(r *StudentRecord) any { return &r.Family.Guardian1Name },
	FieldGuardian1Phone: func(r *StudentRecord) any { return &r.Family.Guardian1Phone },
	FieldGuardian1Email: func(r *StudentRecord) any { return &r.Family.Guardian1Email },
	FieldGuardian2Name:  func(r *StudentRecord) any { return &r.Family.Guardian2Name },
	FieldGuardian2Phone: func(r *StudentRecord) any { return &r.Family.Guardian2Phone },
	FieldGuardian2Email: func(r *StudentRecord) any { return &r.Family.Guardian2Email },

	FieldDifficulties:           func(r *StudentRecord) any { return &r.Difficulties },
	FieldSchoolResponses:        func(r *StudentRecord) any { return &r.SchoolResponses },
	FieldAPC:                    func(r *StudentRecord) any { return &r.SchoolResponses.APC },
	FieldAPCActive:              func(r *StudentRecord) any { return &r.SchoolResponses.APC.Active },
	FieldAPCDetails:             func(r *StudentRecord) any { return &r.SchoolResponses.APC.Details },
	FieldDifferentiation:        func(r *StudentRecord) any { return &r.SchoolResponses.Differentiation },
	FieldDifferentiationActive:  func(r *StudentRecord) any { return &r.SchoolResponses.Differentiation.Active },
	FieldDifferentiationDetails: func(r *StudentRecord) any { return &r.SchoolResponses.Differentiation.Details },
	FieldOtherMeasures:          func(r *StudentRecord) any { return &r.SchoolResponses.Other },

	FieldHealth:         func(r *StudentRecord) any { return &r.Health },
	FieldHearing:        func(r *StudentRecord) any { return &r.Health.Hearing },
	FieldHearingDetails: func(r *StudentRecord) any { return &r.Health.HearingDetails },
	FieldVision:         func(r *StudentRecord) any { return &r.Health.Vision },
	FieldVisionDetails:  func(r *StudentRecord) any { return &r.Health.VisionDetails },

	FieldExternalFollowUps:   func(r *StudentRecord) any { return &r.ExternalFollowUps },
	FieldParentalInvolvement: func(r *StudentRecord) any { return &r.ParentalInvolvement },
	FieldBehavior:            func(r *StudentRecord) any { return &r.Behavior },
	FieldLearning:            func(r *StudentRecord) any { return &r.Learning },

	FieldLearningDetail:    func(r *StudentRecord) any { return &r.LearningDetail },
	FieldReading:           func(r *StudentRecord) any { return &r.LearningDetail.Reading },
	FieldReadingFluency:    func(r *StudentRecord) any { return &r.LearningDetail.Reading.WordsPerMinute },
	FieldReadingDate:       func(r *StudentRecord) any { return &r.LearningDetail.Reading.Date },
	FieldCode:              func(r *StudentRecord) any { return &r.LearningDetail.Code },
	FieldCodeStage:         func(r *StudentRecord) any { return &r.LearningDetail.Code.Stage },
	FieldCodeObservation:   func(r *StudentRecord) any { return &r.LearningDetail.Code.Observation },
	FieldRemarks:           func(r *StudentRecord) any { return &r.Remarks },
	FieldPriorityNeeds:     func(r *StudentRecord) any { return &r.PriorityNeeds },
	FieldPriorityNeed1:     func(r *StudentRecord) any { return &r.PriorityNeeds[0] },
	FieldPriorityNeed2:     func(r *StudentRecord) any { return &r.PriorityNeeds[1] },
	FieldCompliance:        func(r *StudentRecord) any { return &r.Compliance },
	FieldGuardiansInformed: func(r *StudentRecord) any { return &r.Compliance.GuardiansInformed },
	FieldSupportPlan:       func(r *StudentRecord) any { return &r.Compliance.SupportPlanJoined },
}

// ParseField resolves a dotted path to a known field.
func ParseField(path string) (Field, error) {
	field := Field(path)
	if _, ok := lenses[field]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, path)
	}
	return field, nil
}

// Fields lists every addressable field, sorted.
func Fields() []Field {
	out := make([]Field, 0, len(lenses))
	for field := range lenses {
		out = append(out, field)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (f Field) String() string {
	return string(f)
}

// Get returns the current value of the field in rec.
func (f Field) Get(rec StudentRecord) (any, error) {
	get, ok := lenses[f]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
	return reflect.ValueOf(get(&rec)).Elem().Interface(), nil
}

// Apply returns a copy of rec with the field set to value. Values of the
// field's own type are assigned directly; anything else is converted through
// its JSON form, so form input such as "oui" or "120" is accepted where the
// target type understands it. rec is never modified.
func (f Field) Apply(rec StudentRecord, value any) (StudentRecord, error) {
	get, ok := lenses[f]
	if !ok {
		return rec, fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
	out := rec.Clone()
	target := reflect.ValueOf(get(&out)).Elem()

	converted, err := convertTo(target, value)
	if err != nil {
		return rec, fmt.Errorf("%w: %s: %v", ErrInvalidValue, f, err)
	}
	target.Set(converted)

	if f == FieldStudentRetained || f == FieldStudent {
		if out.Student.Retained != Yes {
			out.Student.RetainedGrade = ""
		}
	}
	if err := out.alignGenerations(rec); err != nil {
		return rec, fmt.Errorf("%w: %s: %v", ErrInvalidValue, f, err)
	}
	return out, nil
}

// alignGenerations keeps both evaluation lists on the single schema marker a
// record persists. Lists left unstamped take the generation prev carried.
func (r *StudentRecord) alignGenerations(prev StudentRecord) error {
	marker := prev.Meta.EvaluationSchema
	if marker == GenerationUnknown {
		marker = prev.Behavior.Generation
	}
	if r.Behavior.Generation == GenerationUnknown {
		r.Behavior.Generation = marker
	}
	if r.Learning.Generation == GenerationUnknown {
		r.Learning.Generation = marker
	}
	switch {
	case r.Behavior.Generation == GenerationUnknown:
		r.Behavior.Generation = r.Learning.Generation
	case r.Learning.Generation == GenerationUnknown:
		r.Learning.Generation = r.Behavior.Generation
	}
	if r.Behavior.Generation != r.Learning.Generation {
		return fmt.Errorf("behavior is %s but learning is %s; upgrade the record instead", r.Behavior.Generation, r.Learning.Generation)
	}
	if r.Behavior.Generation != GenerationUnknown {
		r.Meta.EvaluationSchema = r.Behavior.Generation
	}
	return nil
}

func convertTo(target reflect.Value, value any) (reflect.Value, error) {
	kind := target.Type()
	if value == nil {
		fresh := reflect.New(kind).Elem()
		if evals, ok := target.Interface().(Evaluations); ok {
			fresh.Set(reflect.ValueOf(Evaluations{Generation: evals.Generation, Legacy: []LegacyEntry{}, Current: []Assessment{}}))
		}
		return fresh, nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(kind) {
		return rv, nil
	}
	if kind.Kind() == reflect.String && rv.Kind() == reflect.String {
		return rv.Convert(kind), nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return reflect.Value{}, err
	}
	fresh := reflect.New(kind)
	if evals, ok := target.Interface().(Evaluations); ok {
		fresh.Elem().Set(reflect.ValueOf(Evaluations{Generation: evals.Generation}))
	}
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return fresh.Elem(), nil
}
