package auth

import (
	"net/http"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// MinPasswordLength applies to provisioned passwords
const MinPasswordLength = 8

var passwordRules = []validation.Rule{
	validation.RuneLength(MinPasswordLength, 0).Error("Password must be at least 8 characters long"),
	validation.Match(regexp.MustCompile(`[A-Z]`)).Error("Password must contain at least one uppercase letter"),
	validation.Match(regexp.MustCompile(`[a-z]`)).Error("Password must contain at least one lowercase letter"),
	validation.Match(regexp.MustCompile(`[0-9]`)).Error("Password must contain at least one number"),
	validation.Match(regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)).Error("Password must contain at least one special character"),
}

// PasswordProblems lists every strength rule the password breaks
func PasswordProblems(password string) []string {
	if password == "" {
		return []string{"Password is required"}
	}

	problems := []string{}
	for _, rule := range passwordRules {
		if err := validation.Validate(password, rule); err != nil {
			problems = append(problems, err.Error())
		}
	}
	return problems
}

// ValidatePasswordStrength returns a validation error listing the broken
// rules under the "errors" metadata key, or nil.
func ValidatePasswordStrength(password string) error {
	problems := PasswordProblems(password)
	if len(problems) == 0 {
		return nil
	}
	return goerrors.New(strings.Join(problems, "; "), goerrors.CategoryValidation).
		WithTextCode(TextCodeWeakPassword).
		WithCode(http.StatusBadRequest).
		WithMetadata(map[string]any{"errors": problems})
}
