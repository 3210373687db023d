package rased

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	emailPattern    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	mainlandPhone   = regexp.MustCompile(`^(?:\+33|0)[1-9]\d{8}$`)
	reunionPhone    = regexp.MustCompile(`^(?:0(?:262|692)\d{6}|\+262(?:262|692)\d{6})$`)
	phoneSeparators = strings.NewReplacer(" ", "", ".", "", "-", "")
)

// Norm trims surrounding whitespace.
func Norm(s string) string {
	return strings.TrimSpace(s)
}

// IsDateISO reports whether s is a YYYY-MM-DD string naming a real calendar day.
func IsDateISO(s string) bool {
	s = Norm(s)
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

// IsEmail applies a permissive local@domain.tld check.
func IsEmail(s string) bool {
	return emailPattern.MatchString(Norm(s))
}

// IsPhone accepts mainland French numbers and Réunion numbers (0262/0692,
// +262 262/692) once spaces, dots and hyphens are stripped.
func IsPhone(s string) bool {
	compact := phoneSeparators.Replace(Norm(s))
	return mainlandPhone.MatchString(compact) || reunionPhone.MatchString(compact)
}

// ValidateEmailOptional treats an empty value as valid.
func ValidateEmailOptional(s string) bool {
	return Norm(s) == "" || IsEmail(s)
}

// ValidatePhoneOptional treats an empty value as valid.
func ValidatePhoneOptional(s string) bool {
	return Norm(s) == "" || IsPhone(s)
}

// FieldError is an inline message attached to one field.
type FieldError struct {
	Field   Field  `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FieldErrors lists format problems of non-empty fields. Empty fields are not
// reported; completeness is the step gate's concern.
func FieldErrors(rec StudentRecord) []FieldError {
	var out []FieldError
	check := func(field Field, value string, valid func(string) bool, message string) {
		if Norm(value) != "" && !valid(value) {
			out = append(out, FieldError{Field: field, Message: message})
		}
	}
	check(FieldEstablishmentRequestDate, rec.Establishment.RequestDate, IsDateISO, "date invalide (AAAA-MM-JJ)")
	check(FieldStudentBirthDate, rec.Student.BirthDate, IsDateISO, "date invalide (AAAA-MM-JJ)")
	check(FieldGuardian1Phone, rec.Family.Guardian1Phone, IsPhone, "numéro de téléphone invalide")
	check(FieldGuardian1Email, rec.Family.Guardian1Email, IsEmail, "adresse e-mail invalide")
	check(FieldEditionDate, rec.Meta.EditionDate, IsDateISO, "date invalide (AAAA-MM-JJ)")
	check(FieldReadingDate, rec.LearningDetail.Reading.Date, IsDateISO, "date invalide (AAAA-MM-JJ)")
	if accent := Norm(rec.Settings.AccentColor); accent != "" && !IsHexColor(accent) {
		out = append(out, FieldError{Field: FieldAccentColor, Message: "couleur invalide (#RRGGBB)"})
	}
	return out
}

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// IsHexColor accepts #RGB and #RRGGBB.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(Norm(s))
}
