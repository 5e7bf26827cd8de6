// Package activitymap flattens auth activity events into records that can be
// shipped to log pipelines or an external activity service.
package activitymap

import (
	"strings"
	"time"

	auth "github.com/folio-cms/go-admin-auth"
)

const (
	// MetadataKeyActorType holds auth.ActorRef.Type unless the event already set it.
	MetadataKeyActorType = "actor_type"
	// MetadataKeyIdentifier holds the email submitted with a login attempt.
	MetadataKeyIdentifier = "identifier"
)

// Login outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeLocked  = "locked"
)

const (
	defaultChannel = "admin-auth"
	systemActor    = "system"
)

// Record is the flattened form of an auth.ActivityEvent
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Outcome    string         `json:"outcome,omitempty"`
	Channel    string         `json:"channel"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes Normalize
type Option func(*config)

type config struct {
	channel        string
	objectType     string
	maskIdentifier bool
}

// WithChannel overrides the channel, "admin-auth" by default.
func WithChannel(channel string) Option {
	return func(c *config) {
		if ch := strings.TrimSpace(channel); ch != "" {
			c.channel = ch
		}
	}
}

// WithObjectType forces the object type for every record.
func WithObjectType(objectType string) Option {
	return func(c *config) {
		c.objectType = strings.TrimSpace(objectType)
	}
}

// WithMaskedIdentifier keeps only the first character of the identifier's
// local part, e.g. "a***@example.com".
func WithMaskedIdentifier() Option {
	return func(c *config) {
		c.maskIdentifier = true
	}
}

// Normalize converts event into a Record. The event metadata is copied,
// never modified.
func Normalize(event auth.ActivityEvent, opts ...Option) Record {
	cfg := config{channel: defaultChannel}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	objectType := cfg.objectType
	if objectType == "" {
		objectType = objectTypeFor(event.EventType)
	}

	return Record{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.Actor.ID), strings.TrimSpace(event.UserID), systemActor),
		Verb:       string(event.EventType),
		ObjectType: objectType,
		ObjectID:   strings.TrimSpace(event.UserID),
		Outcome:    OutcomeOf(event.EventType),
		Channel:    cfg.channel,
		Metadata:   metadataFor(event, cfg),
		OccurredAt: occurredAt.UTC(),
	}
}

// OutcomeOf reports the login outcome carried by an event type, or "" for
// events that are not login attempts.
func OutcomeOf(eventType auth.ActivityEventType) string {
	if !eventType.IsLoginAttempt() {
		return ""
	}
	switch eventType {
	case auth.ActivityEventLoginSuccess:
		return OutcomeSuccess
	case auth.ActivityEventLoginFailure:
		return OutcomeFailure
	default:
		return OutcomeLocked
	}
}

func objectTypeFor(eventType auth.ActivityEventType) string {
	switch eventType {
	case auth.ActivityEventAdminCreated:
		return "admin_user"
	default:
		return "session"
	}
}

func metadataFor(event auth.ActivityEvent, cfg config) map[string]any {
	metadata := make(map[string]any, len(event.Metadata)+1)
	for k, v := range event.Metadata {
		metadata[k] = v
	}

	if actorType := strings.TrimSpace(event.Actor.Type); actorType != "" {
		if _, ok := metadata[MetadataKeyActorType]; !ok {
			metadata[MetadataKeyActorType] = actorType
		}
	}

	if cfg.maskIdentifier {
		if identifier, ok := metadata[MetadataKeyIdentifier].(string); ok {
			metadata[MetadataKeyIdentifier] = maskEmail(identifier)
		}
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
