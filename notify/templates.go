package notify

import (
	"github.com/flosch/pongo2/v6"
	goerrors "github.com/goliatone/go-errors"
)

// Message kinds, one per template pair.
const (
	KindRegistration        = "registration"
	KindPasswordReset       = "password_reset"
	KindForcedPasswordReset = "password_reset_forced"
	KindEmailChange         = "email_change"
	KindAccountUnblock      = "account_unblock"
	KindLockout             = "lockout"
	KindAccountActivated    = "account_activated"
	KindAccountBlocked      = "account_blocked"
	KindAccessLevelGranted  = "access_level_granted"
	KindAccessLevelRevoked  = "access_level_revoked"
)

// Template is a subject and body pair in django syntax. Both are rendered
// with autoescaping off since messages are plain text.
type Template struct {
	Subject string
	Body    string
}

// DefaultTemplates returns the built in English templates.
func DefaultTemplates() map[string]Template {
	return map[string]Template{
		KindRegistration: {
			Subject: "Confirm your account",
			Body: `Hello {{ name }},

please confirm your registration as {{ login }} by opening the link below before {{ expires_at }}:

{{ link }}
`,
		},
		KindPasswordReset: {
			Subject: "Reset your password",
			Body: `Hello {{ name }},

a password reset was requested for {{ login }}. Open the link below before {{ expires_at }} to choose a new password:

{{ link }}

If you did not ask for this you can ignore this message.
`,
		},
		KindForcedPasswordReset: {
			Subject: "Your password must be changed",
			Body: `Hello {{ name }},

an administrator requires you to set a new password for {{ login }}. Open the link below before {{ expires_at }}:

{{ link }}
`,
		},
		KindEmailChange: {
			Subject: "Confirm your new email address",
			Body: `Hello {{ name }},

open the link below before {{ expires_at }} to use {{ email }} for {{ login }}:

{{ link }}
`,
		},
		KindAccountUnblock: {
			Subject: "Unblock your account",
			Body: `Hello {{ name }},

your account {{ login }} was blocked. Open the link below before {{ expires_at }} to unblock it:

{{ link }}
`,
		},
		KindLockout: {
			Subject: "Your account was blocked",
			Body: `Hello {{ name }},

your account {{ login }} was blocked after repeated failed login attempts.
`,
		},
		KindAccountActivated: {
			Subject: "Your account is active",
			Body: `Hello {{ name }},

your account {{ login }} is active again.
`,
		},
		KindAccountBlocked: {
			Subject: "Your account was blocked",
			Body: `Hello {{ name }},

your account {{ login }} was blocked by an administrator.
`,
		},
		KindAccessLevelGranted: {
			Subject: "Access level granted",
			Body: `Hello {{ name }},

your account {{ login }} was granted the {{ access_level }} access level.
`,
		},
		KindAccessLevelRevoked: {
			Subject: "Access level revoked",
			Body: `Hello {{ name }},

the {{ access_level }} access level was revoked from your account {{ login }}.
`,
		},
	}
}

type compiledTemplate struct {
	subject *pongo2.Template
	body    *pongo2.Template
}

func compileTemplate(kind string, t Template) (*compiledTemplate, error) {
	subject, err := pongo2.FromString(plainText(t.Subject))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid subject template "+kind)
	}
	body, err := pongo2.FromString(plainText(t.Body))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid body template "+kind)
	}
	return &compiledTemplate{subject: subject, body: body}, nil
}

func (t *compiledTemplate) render(data pongo2.Context) (string, string, error) {
	subject, err := t.subject.Execute(data)
	if err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render subject")
	}
	body, err := t.body.Execute(data)
	if err != nil {
		return "", "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render body")
	}
	return subject, body, nil
}

func plainText(tpl string) string {
	return "{% autoescape off %}" + tpl + "{% endautoescape %}"
}
