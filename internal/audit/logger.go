package audit

import (
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Actions recorded by the planauth services.
const (
	ActionLogin      = "login"
	ActionLogout     = "logout"
	ActionDeleteUser = "delete_user"
)

// Event represents an audit log event.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Action    string    `json:"action"`
	User      string    `json:"user,omitempty"`   // User ID or login name
	Target    string    `json:"target,omitempty"` // Target resource ID or name
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

var (
	mu     sync.RWMutex
	output *zerolog.Logger
)

// SetOutput sends audit events to w instead of the global logger. A nil w
// restores the default.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		output = nil
		return
	}
	l := zerolog.New(w).With().Timestamp().Logger()
	output = &l
}

func logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if output != nil {
		return *output
	}
	return zlog.Logger
}

// Log records an audit event.
func Log(service, action, user, target string, success bool, err error) {
	event := Event{
		Timestamp: time.Now().UTC(),
		Service:   service,
		Action:    action,
		User:      user,
		Target:    target,
		Success:   success,
	}
	if err != nil {
		event.Error = err.Error()
	}

	l := logger()
	l.Log().
		Str("channel", "audit").
		Time("event_time", event.Timestamp).
		Str("service", event.Service).
		Str("action", event.Action).
		Str("user", event.User).
		Str("target", event.Target).
		Bool("success", event.Success).
		Str("error", event.Error).
		Msg("audit")
}
