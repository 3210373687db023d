package rased

// StepTitles names the wizard steps in order.
var StepTitles = []string{
	"Établissement & élève",
	"Famille",
	"Difficultés & suivis",
	"Place des parents",
	"Comportement",
	"Apprentissages",
	"Remarques & besoins",
	"Conformité & export",
}

// StepCount is the number of wizard steps.
const StepCount = 8

const (
	StepIdentity = 0
	StepFamily   = 1
	StepLast     = StepCount - 1
)

// CanProceed reports whether the wizard may move past step. Only the identity
// and family steps carry requirements; later steps never block, so a draft
// can be exported or printed while incomplete.
func CanProceed(step int, rec StudentRecord) bool {
	switch step {
	case StepIdentity:
		est := rec.Establishment
		student := rec.Student
		return est.SchoolName() != "" &&
			Norm(string(est.SchoolType)) != "" &&
			Norm(est.RequestDate) != "" &&
			Norm(est.Teacher) != "" &&
			Norm(student.LastName) != "" &&
			Norm(student.FirstName) != "" &&
			IsDateISO(student.BirthDate) &&
			Norm(string(student.Sex)) != "" &&
			Norm(student.Grade) != ""
	case StepFamily:
		return ValidatePhoneOptional(rec.Family.Guardian1Phone) &&
			ValidateEmailOptional(rec.Family.Guardian1Email)
	default:
		return true
	}
}

// MissingRequirements lists the fields that keep CanProceed false.
func MissingRequirements(step int, rec StudentRecord) []Field {
	var out []Field
	need := func(ok bool, field Field) {
		if !ok {
			out = append(out, field)
		}
	}
	switch step {
	case StepIdentity:
		est := rec.Establishment
		student := rec.Student
		need(est.SchoolName() != "", FieldEstablishmentSchool)
		need(Norm(string(est.SchoolType)) != "", FieldEstablishmentSchoolType)
		need(Norm(est.RequestDate) != "", FieldEstablishmentRequestDate)
		need(Norm(est.Teacher) != "", FieldEstablishmentTeacher)
		need(Norm(student.LastName) != "", FieldStudentLastName)
		need(Norm(student.FirstName) != "", FieldStudentFirstName)
		need(IsDateISO(student.BirthDate), FieldStudentBirthDate)
		need(Norm(string(student.Sex)) != "", FieldStudentSex)
		need(Norm(student.Grade) != "", FieldStudentGrade)
	case StepFamily:
		need(ValidatePhoneOptional(rec.Family.Guardian1Phone), FieldGuardian1Phone)
		need(ValidateEmailOptional(rec.Family.Guardian1Email), FieldGuardian1Email)
	}
	return out
}

// ClampStep keeps step within the wizard bounds.
func ClampStep(step int) int {
	if step < 0 {
		return 0
	}
	if step > StepLast {
		return StepLast
	}
	return step
}
