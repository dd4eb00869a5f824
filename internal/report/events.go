package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	EventLogin          EventType = "login"
	EventLogout         EventType = "logout"
	EventRegister       EventType = "register"
	EventAdd            EventType = "add"
	EventView           EventType = "view"
	EventModify         EventType = "modify"
	EventDelete         EventType = "delete"
	EventDenied         EventType = "denied"
	EventDecryptFailure EventType = "decrypt_failure"
	EventUserRemoved    EventType = "user_removed"
	EventError          EventType = "error"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

var levelPriority = map[EventLevel]int{
	LevelDebug:   0,
	LevelInfo:    1,
	LevelWarning: 2,
	LevelError:   3,
}

// ParseLevel maps a level name to an EventLevel, defaulting to info
func ParseLevel(s string) EventLevel {
	l := EventLevel(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levelPriority[l]; ok {
		return l
	}
	return LevelInfo
}

// Event is one line of the session log
type Event struct {
	Timestamp  time.Time  `json:"ts"`
	Level      EventLevel `json:"level"`
	Event      EventType  `json:"event"`
	SessionID  string     `json:"session_id"`
	UserID     string     `json:"user_id,omitempty"`
	ArtifactID string     `json:"artifact_id,omitempty"`
	Action     string     `json:"action,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// EventLogger writes one CLI session's events to a JSONL file
type EventLogger struct {
	file      *os.File
	encoder   *json.Encoder
	mu        sync.Mutex
	path      string
	minLevel  EventLevel
	sessionID string
}

// NewEventLogger creates a new event logger with a minimum log level
func NewEventLogger(outputDir string, minLevel EventLevel) (*EventLogger, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	sessionID := uuid.NewString()
	filename := fmt.Sprintf("events-%s-%s.jsonl", time.Now().Format("20060102-150405"), sessionID[:8])
	path := filepath.Join(outputDir, filename)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	return &EventLogger{
		file:      file,
		encoder:   json.NewEncoder(file),
		path:      path,
		minLevel:  minLevel,
		sessionID: sessionID,
	}, nil
}

// Log writes an event to the JSONL file
func (l *EventLogger) Log(event *Event) error {
	if l == nil || l.file == nil {
		return nil
	}

	if levelPriority[event.Level] < levelPriority[l.minLevel] {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	event.SessionID = l.sessionID

	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return nil
}

// LogSession logs login, logout and registration
func (l *EventLogger) LogSession(event EventType, userID, reason string) error {
	return l.Log(&Event{
		Level:  LevelInfo,
		Event:  event,
		UserID: userID,
		Reason: reason,
	})
}

// LogAccess logs an artifact operation and its outcome
func (l *EventLogger) LogAccess(event EventType, userID, artifactID string, err error) error {
	e := &Event{
		Level:      LevelInfo,
		Event:      event,
		UserID:     userID,
		ArtifactID: artifactID,
	}
	if err != nil {
		e.Level = LevelWarning
		e.Error = err.Error()
	}
	return l.Log(e)
}

// LogDenied logs an operation refused by the access policy
func (l *EventLogger) LogDenied(userID, action, reason string) error {
	return l.Log(&Event{
		Level:  LevelWarning,
		Event:  EventDenied,
		UserID: userID,
		Action: action,
		Reason: reason,
	})
}

// LogDecryptFailure logs fields of an artifact that did not decrypt
func (l *EventLogger) LogDecryptFailure(userID, artifactID string, fields []string) error {
	return l.Log(&Event{
		Level:      LevelError,
		Event:      EventDecryptFailure,
		UserID:     userID,
		ArtifactID: artifactID,
		Reason:     strings.Join(fields, ", "),
	})
}

// LogError logs an error event
func (l *EventLogger) LogError(action string, err error) error {
	return l.Log(&Event{
		Level:  LevelError,
		Event:  EventError,
		Action: action,
		Error:  err.Error(),
	})
}

// Close closes the event log file
func (l *EventLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.file.Close()
}

// Path returns the path to the event log file
func (l *EventLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// SessionID returns the identifier stamped on every event
func (l *EventLogger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// NullLogger returns a no-op event logger
func NullLogger() *EventLogger {
	return nil
}
