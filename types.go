package accounts

import (
	"fmt"
	"strings"
)

// Logger is the structured logging contract used across the package. Args
// are alternating key/value pairs, the same shape glog and slog accept.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// AccountCandidate carries the data needed to create an account.
type AccountCandidate struct {
	Login    string `json:"login"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Surname  string `json:"surname"`
	Password string `json:"password"`
}

// InitialStatus lets an administrator choose the starting flags.
type InitialStatus struct {
	Active     bool `json:"active"`
	Registered bool `json:"registered"`
}

// ProfileChanges lists the editable profile fields. Nil fields are left untouched.
type ProfileChanges struct {
	Email   *string `json:"email,omitempty"`
	Name    *string `json:"name,omitempty"`
	Surname *string `json:"surname,omitempty"`
}

// IsEmpty reports whether no field is set.
func (p ProfileChanges) IsEmpty() bool {
	return p.Email == nil && p.Name == nil && p.Surname == nil
}

// Registration is returned by the registration operations. Token is nil
// when no confirmation is needed.
type Registration struct {
	Account *Account           `json:"account"`
	Token   *VerificationToken `json:"token,omitempty"`
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] ACCOUNTS " + line(msg, args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] ACCOUNTS " + line(msg, args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] ACCOUNTS " + line(msg, args))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] ACCOUNTS " + line(msg, args))
}

func line(msg string, args []any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	b.WriteString("\n")
	return b.String()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger discards everything.
func NopLogger() Logger {
	return nopLogger{}
}
