package accounts

import (
	"regexp"
	"strings"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// MinPasswordLength is measured in runes after trimming surrounding whitespace.
	MinPasswordLength = 8
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
)

// CredentialPolicy validates, hashes and verifies passwords. It holds no
// mutable state and is safe for concurrent use.
type CredentialPolicy struct {
	cost  int
	rules []validation.Rule
}

// CredentialPolicyOption configures a CredentialPolicy.
type CredentialPolicyOption func(*CredentialPolicy)

// WithHashCost overrides the bcrypt cost. Values outside the bcrypt range are clamped.
func WithHashCost(cost int) CredentialPolicyOption {
	return func(p *CredentialPolicy) {
		p.cost = clampHashCost(cost)
	}
}

// WithPasswordRules adds ozzo-validation rules evaluated after the length check.
// Any failing rule is reported as ErrWeakPassword.
func WithPasswordRules(rules ...validation.Rule) CredentialPolicyOption {
	return func(p *CredentialPolicy) {
		p.rules = append(p.rules, rules...)
	}
}

// NewCredentialPolicy returns the length only policy unless rules are added.
func NewCredentialPolicy(opts ...CredentialPolicyOption) *CredentialPolicy {
	p := &CredentialPolicy{
		cost: DefaultHashCost(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// ComplexityRules requires a digit, a lower case letter, an upper case
// letter and a symbol.
func ComplexityRules() []validation.Rule {
	return []validation.Rule{
		validation.Match(regexp.MustCompile(`[0-9]`)).Error("must contain a digit"),
		validation.Match(regexp.MustCompile(`[a-z]`)).Error("must contain a lower case letter"),
		validation.Match(regexp.MustCompile(`[A-Z]`)).Error("must contain an upper case letter"),
		validation.Match(regexp.MustCompile(`[^A-Za-z0-9\s]`)).Error("must contain a symbol"),
	}
}

// Validate returns ErrWeakPassword when raw fails the policy.
func (p *CredentialPolicy) Validate(raw string) error {
	if utf8.RuneCountInString(strings.TrimSpace(raw)) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(raw) > MaxPasswordBytes {
		return ErrWeakPassword
	}
	rules := p.policy().rules
	if len(rules) == 0 {
		return nil
	}
	if err := validation.Validate(raw, rules...); err != nil {
		return ErrWeakPassword
	}
	return nil
}

// Hash hashes raw as given, surrounding whitespace included.
func (p *CredentialPolicy) Hash(raw string) (string, error) {
	return hashPassword(raw, p.policy().cost)
}

// Verify reports whether raw matches hash.
func (p *CredentialPolicy) Verify(raw, hash string) bool {
	if hash == "" {
		return false
	}
	return comparePasswordAndHash(raw, hash) == nil
}

// Cost returns the bcrypt cost used by Hash.
func (p *CredentialPolicy) Cost() int {
	return p.policy().cost
}

func (p *CredentialPolicy) policy() *CredentialPolicy {
	if p == nil {
		return &CredentialPolicy{cost: DefaultHashCost()}
	}
	return p
}
