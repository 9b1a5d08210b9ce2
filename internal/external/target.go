// Package external sends job lifecycle events to third-party monitoring
// services (healthchecks.io, cronitor, plain webhooks) alongside the
// primary backend. Targets come from a per-user config file and are
// consumed as an opaque resolved list.
package external

import "fmt"

// Kind identifies a monitor target protocol. The set is closed: every
// send path switches exhaustively over these values.
type Kind string

const (
	KindHealthchecks Kind = "healthchecks"
	KindCronitor     Kind = "cronitor"
	KindWebhook      Kind = "webhook"
)

// Target is one resolved external monitor, ready to receive pings.
// Which fields are meaningful depends on Kind:
//
//	KindHealthchecks: Endpoint, UUID
//	KindCronitor:     Endpoint, APIKey, MonitorKey
//	KindWebhook:      URL
type Target struct {
	Kind       Kind
	Endpoint   string
	UUID       string
	APIKey     string
	MonitorKey string
	URL        string
}

// Name returns the service name for log lines.
func (t Target) Name() string {
	switch t.Kind {
	case KindHealthchecks:
		return "healthchecks.io"
	case KindCronitor:
		return "cronitor"
	case KindWebhook:
		return "webhook"
	}
	return string(t.Kind)
}

// DisplayURL returns a loggable URL with credentials hidden.
func (t Target) DisplayURL() string {
	switch t.Kind {
	case KindHealthchecks:
		return fmt.Sprintf("%s/%s", t.Endpoint, t.UUID)
	case KindCronitor:
		// Hide the API key.
		return fmt.Sprintf("%s/p/***/%s", t.Endpoint, t.MonitorKey)
	case KindWebhook:
		return t.URL
	}
	return ""
}
