package activitymap

import (
	"maps"
	"strings"
	"time"

	accounts "github.com/goliatone/go-accounts"
)

const (
	// MetadataKeyLogin stores the login of the account the event is about.
	MetadataKeyLogin = "login"
	// MetadataKeyToStatus stores the resulting status for status changes.
	MetadataKeyToStatus = "to_status"
)

const (
	StatusActive  = "active"
	StatusBlocked = "blocked"
)

// SystemActor is the actor of events that concern no known account, such
// as failed logins against an unknown login.
const SystemActor = "system"

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizer)

type normalizer struct {
	channel    string
	objectType string
	now        func() time.Time
}

// WithDefaultChannel sets the channel for normalized records.
func WithDefaultChannel(channel string) Option {
	return func(n *normalizer) { n.channel = strings.TrimSpace(channel) }
}

// WithDefaultObjectType sets the object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(n *normalizer) { n.objectType = strings.TrimSpace(objectType) }
}

// WithClock sets the time source used for events recorded without a time.
func WithClock(now func() time.Time) Option {
	return func(n *normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// Normalize converts an accounts.ActivityEvent into a generic normalized shape.
// Lifecycle events are attributed to the account they concern, which is
// both actor and object.
func Normalize(event accounts.ActivityEvent, opts ...Option) Normalized {
	n := normalizer{channel: "accounts", objectType: "account", now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&n)
		}
	}

	accountID := strings.TrimSpace(event.AccountID)
	actorID := accountID
	if actorID == "" {
		actorID = SystemActor
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = n.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: n.objectType,
		ObjectID:   accountID,
		Channel:    n.channel,
		Metadata:   metadataFor(event),
		OccurredAt: occurredAt,
	}
}

// metadataFor copies the event metadata and fills in derived keys. Keys the
// event already carries win.
func metadataFor(event accounts.ActivityEvent) map[string]any {
	derived := map[string]any{}
	if login := strings.TrimSpace(event.Login); login != "" {
		derived[MetadataKeyLogin] = login
	}
	if status, ok := resultingStatus(event); ok {
		derived[MetadataKeyToStatus] = status
	}

	if len(event.Metadata) == 0 && len(derived) == 0 {
		return nil
	}

	out := maps.Clone(event.Metadata)
	if out == nil {
		out = make(map[string]any, len(derived))
	}
	for key, value := range derived {
		if _, exists := out[key]; !exists {
			out[key] = value
		}
	}
	return out
}

func resultingStatus(event accounts.ActivityEvent) (string, bool) {
	switch event.EventType {
	case accounts.ActivityEventAccountLockedOut:
		return StatusBlocked, true
	case accounts.ActivityEventAccountStatusChanged:
		active, ok := event.Metadata["active"].(bool)
		if !ok {
			return "", false
		}
		if active {
			return StatusActive, true
		}
		return StatusBlocked, true
	default:
		return "", false
	}
}
