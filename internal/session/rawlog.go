package session

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// RawEvent is one pre-mask turn as captured, kept only when raw
// retention is enabled.
type RawEvent struct {
	SessionID string    `json:"sessionId"`
	Seq       int       `json:"seq"`
	TS        time.Time `json:"ts"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
}

// RawLog writes pre-mask turn text to a per-session gzip JSONL sidecar.
// Raw retention defaults to off; when on, every stored interaction is
// flagged RawRetained.
type RawLog struct {
	sessionID string
	file      *os.File
	gz        *gzip.Writer
	bw        *bufio.Writer
	closed    bool
}

func rawLogPath(dir, sessionID string) string {
	return filepath.Join(dir, sessionID+".raw.jsonl.gz")
}

// NewRawLog opens the sidecar for one session under dir.
func NewRawLog(dir, sessionID string) (*RawLog, error) {
	if err := validateID(sessionID); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create raw log dir: %w", err)
	}

	path := rawLogPath(dir, sessionID)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec // id is validated
	if err != nil {
		return nil, fmt.Errorf("open raw log: %w", err)
	}

	gz := gzip.NewWriter(file)

	return &RawLog{
		sessionID: sessionID,
		file:      file,
		gz:        gz,
		bw:        bufio.NewWriterSize(gz, 64*1024),
	}, nil
}

// Append records one pre-mask turn.
func (l *RawLog) Append(seq int, role Role, text string, at time.Time) error {
	if l.closed {
		return errors.New("raw log is closed")
	}

	line, err := json.Marshal(&RawEvent{
		SessionID: l.sessionID,
		Seq:       seq,
		TS:        at.UTC(),
		Role:      role,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("marshal raw event: %w", err)
	}

	line = append(line, '\n')
	if _, err := l.bw.Write(line); err != nil {
		return fmt.Errorf("write raw event: %w", err)
	}

	return nil
}

// Close flushes and closes the sidecar.
func (l *RawLog) Close() error {
	if l.closed {
		return nil
	}

	l.closed = true

	var errs []error

	if err := l.bw.Flush(); err != nil {
		errs = append(errs, err)
	}

	if err := l.gz.Close(); err != nil {
		errs = append(errs, err)
	}

	if err := l.file.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ReadRawEvents reads back a session's raw sidecar.
func ReadRawEvents(dir, sessionID string) ([]RawEvent, error) {
	if err := validateID(sessionID); err != nil {
		return nil, err
	}

	file, err := os.Open(rawLogPath(dir, sessionID)) //nolint:gosec // id is validated
	if err != nil {
		return nil, fmt.Errorf("open raw log: %w", err)
	}
	defer func() { _ = file.Close() }()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("read raw log: %w", err)
	}
	defer func() { _ = gz.Close() }()

	var events []RawEvent

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		var ev RawEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("decode raw event: %w", err)
		}

		events = append(events, ev)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan raw log: %w", err)
	}

	return events, nil
}
