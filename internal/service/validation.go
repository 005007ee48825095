package service

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
)

var recordIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]*$`)

// NewValidator returns a validator with the record tags registered.
func NewValidator() *validator.Validate {
	return registerRecordTags(validator.New())
}

// registerRecordTags adds record_id: letters, digits and dashes only, since
// underscores separate the parts of an enrollment identifier.
func registerRecordTags(v *validator.Validate) *validator.Validate {
	if v == nil {
		v = validator.New()
	}
	_ = v.RegisterValidation("record_id", func(fl validator.FieldLevel) bool {
		return recordIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// fold maps s to its Unicode case-folded form for case-insensitive matching.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(fold(haystack), fold(needle))
}

func equalFold(a, b string) bool {
	return fold(a) == fold(b)
}
