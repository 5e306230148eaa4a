package activitymap_test

import (
	"testing"
	"time"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/activitymap"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeDefaults(t *testing.T) {
	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := accounts.ActivityEvent{
		EventType: accounts.ActivityEventAccountStatusChanged,
		AccountID: "account-100",
		Login:     "bob",
		Metadata: map[string]any{
			"active": false,
			"ticket": "SEC-204",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	assert.Equal(t, "account-100", out.ActorID)
	assert.Equal(t, string(accounts.ActivityEventAccountStatusChanged), out.Verb)
	assert.Equal(t, "account", out.ObjectType)
	assert.Equal(t, "account-100", out.ObjectID)
	assert.Equal(t, "accounts", out.Channel)
	assert.True(t, out.OccurredAt.Equal(ts))

	assert.Equal(t, "SEC-204", out.Metadata["ticket"])
	assert.Equal(t, "bob", out.Metadata[activitymap.MetadataKeyLogin])
	assert.Equal(t, activitymap.StatusBlocked, out.Metadata[activitymap.MetadataKeyToStatus])
	assert.Len(t, event.Metadata, 2, "source metadata is not modified")
}

func TestNormalizeResultingStatus(t *testing.T) {
	tests := []struct {
		name   string
		event  accounts.ActivityEvent
		status any
	}{
		{
			name:   "lockout blocks",
			event:  accounts.ActivityEvent{EventType: accounts.ActivityEventAccountLockedOut, AccountID: "account-7"},
			status: activitymap.StatusBlocked,
		},
		{
			name: "activation",
			event: accounts.ActivityEvent{
				EventType: accounts.ActivityEventAccountStatusChanged,
				AccountID: "account-7",
				Metadata:  map[string]any{"active": true},
			},
			status: activitymap.StatusActive,
		},
		{
			name: "status change without flag",
			event: accounts.ActivityEvent{
				EventType: accounts.ActivityEventAccountStatusChanged,
				AccountID: "account-7",
			},
			status: nil,
		},
		{
			name:   "unrelated event",
			event:  accounts.ActivityEvent{EventType: accounts.ActivityEventPasswordChanged, AccountID: "account-7"},
			status: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := activitymap.Normalize(tt.event)
			assert.Equal(t, tt.status, out.Metadata[activitymap.MetadataKeyToStatus])
		})
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	event := accounts.ActivityEvent{
		EventType: accounts.ActivityEventPasswordReset,
		AccountID: "account-200",
		Login:     "carol",
		Metadata: map[string]any{
			activitymap.MetadataKeyLogin: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel(" security "),
		activitymap.WithDefaultObjectType("credential"),
		activitymap.WithClock(func() time.Time { return fixed }),
	)

	assert.Equal(t, "security", out.Channel)
	assert.Equal(t, "credential", out.ObjectType)
	assert.Equal(t, "account-200", out.ObjectID)
	assert.Equal(t, "existing", out.Metadata[activitymap.MetadataKeyLogin], "event metadata wins")
	assert.True(t, out.OccurredAt.Equal(fixed), "falls back to the clock")
}

func TestNormalizeUnknownAccount(t *testing.T) {
	out := activitymap.Normalize(accounts.ActivityEvent{EventType: accounts.ActivityEventLoginFailure})

	assert.Equal(t, activitymap.SystemActor, out.ActorID)
	assert.Empty(t, out.ObjectID)
	assert.Nil(t, out.Metadata)
	assert.False(t, out.OccurredAt.IsZero())
}
