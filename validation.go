package accounts

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

var (
	// Alphanumeric segments joined by single '.', '_' or '-' characters.
	loginPattern = regexp.MustCompile(`^[a-zA-Z0-9](?:[._-]?[a-zA-Z0-9])+$`)
	namePattern  = regexp.MustCompile(`^\p{Lu}\p{Ll}{0,63}$`)
)

func loginRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(3, 15),
		validation.Match(loginPattern).Error("must be letters and digits, optionally separated by '.', '_' or '-'"),
	}
}

func emailRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Length(3, 254),
		is.EmailFormat,
	}
}

func nameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required,
		validation.Match(namePattern).Error("must start with an upper case letter followed by lower case letters"),
	}
}

// Normalized trims every field but the password and lower cases the email.
func (c AccountCandidate) Normalized() AccountCandidate {
	c.Login = strings.TrimSpace(c.Login)
	c.Email = normalizeEmail(c.Email)
	c.Name = strings.TrimSpace(c.Name)
	c.Surname = strings.TrimSpace(c.Surname)
	return c
}

// Validate checks the identity fields. Password strength is the CredentialPolicy's concern.
func (c AccountCandidate) Validate() error {
	return validationError(goerrors.ValidateWithOzzo(func() error {
		return validation.ValidateStruct(&c,
			validation.Field(&c.Login, loginRules()...),
			validation.Field(&c.Email, emailRules()...),
			validation.Field(&c.Name, nameRules()...),
			validation.Field(&c.Surname, nameRules()...),
		)
	}, "invalid account data"))
}

// Validate checks the fields that are set.
func (p ProfileChanges) Validate() error {
	var email, name, surname string
	if p.Email != nil {
		email = normalizeEmail(*p.Email)
	}
	if p.Name != nil {
		name = strings.TrimSpace(*p.Name)
	}
	if p.Surname != nil {
		surname = strings.TrimSpace(*p.Surname)
	}

	return validationError(goerrors.ValidateWithOzzo(func() error {
		return validation.Errors{
			"email":   validation.Validate(email, validation.When(p.Email != nil, emailRules()...)),
			"name":    validation.Validate(name, validation.When(p.Name != nil, nameRules()...)),
			"surname": validation.Validate(surname, validation.When(p.Surname != nil, nameRules()...)),
		}.Filter()
	}, "invalid profile data"))
}

func validateEmail(email string) error {
	return validationError(goerrors.ValidateWithOzzo(func() error {
		return validation.Errors{
			"email": validation.Validate(email, emailRules()...),
		}.Filter()
	}, "invalid email address"))
}

// validationError keeps a typed nil *goerrors.Error from becoming a non nil error.
func validationError(err *goerrors.Error) error {
	if err == nil {
		return nil
	}
	return err.WithTextCode(TextCodeInvalidAccountData)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
