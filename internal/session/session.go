// Package session owns the session aggregate: the ordered record of
// masked interactions produced by one monitored run, and its durable
// persistence through a pluggable backend.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Status is the session lifecycle state.
type Status string

// Session lifecycle states.
const (
	StatusActive      Status = "active"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
	StatusInterrupted Status = "interrupted"
)

// Role identifies which side of the conversation an interaction
// belongs to.
type Role string

// Interaction roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Interaction is one turn of the reconstructed conversation. Immutable
// once appended to a Session; content is always already masked.
type Interaction struct {
	Seq              int       `json:"sequenceNumber"`
	Timestamp        time.Time `json:"timestamp"`
	Role             Role      `json:"role"`
	Content          string    `json:"content"`
	DetectedPatterns []string  `json:"detectedPatterns"`
	RawRetained      bool      `json:"rawRetained"`
}

// Session is the aggregate for one monitored run.
type Session struct {
	ID           string            `json:"sessionId"`
	ProjectPath  string            `json:"projectPath"`
	StartTime    time.Time         `json:"startTime"`
	EndTime      *time.Time        `json:"endTime,omitempty"`
	Status       Status            `json:"status"`
	Interactions []Interaction     `json:"interactions"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// New creates an active session for the given working directory and
// wrapped command.
func New(projectPath, command string) *Session {
	return &Session{
		ID:          uuid.NewString(),
		ProjectPath: projectPath,
		StartTime:   time.Now().UTC(),
		Status:      StatusActive,
		Metadata: map[string]string{
			"monitor": "pty",
			"command": command,
		},
	}
}

// Summary is the listing view of a stored session.
type Summary struct {
	ID           string     `json:"sessionId"`
	ProjectPath  string     `json:"projectPath"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Status       Status     `json:"status"`
	Interactions int        `json:"interactions"`
}

// Summarize returns the listing view of s.
func (s *Session) Summarize() Summary {
	return Summary{
		ID:           s.ID,
		ProjectPath:  s.ProjectPath,
		StartTime:    s.StartTime,
		EndTime:      s.EndTime,
		Status:       s.Status,
		Interactions: len(s.Interactions),
	}
}
