package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Category represents the subsystem generating the log
type Category string

const (
	CategoryGuardrail Category = "guardrail"
	CategoryExecutor  Category = "executor"
	CategoryRetry     Category = "retry"
	CategoryHeartbeat Category = "heartbeat"
	CategoryApproval  Category = "approval"
	CategoryRateLimit Category = "ratelimit"
	CategoryNotify    Category = "notify"
	CategoryConfig    Category = "config"
)

// Event represents a structured log event
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     Level             `json:"level"`
	Category  Category          `json:"category"`
	EventType string            `json:"type"`
	AgentID   string            `json:"agent_id,omitempty"`
	StepID    string            `json:"step_id,omitempty"`
	CheckID   string            `json:"check_id,omitempty"`
	Details   map[string]any    `json:"details,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Message   string            `json:"message,omitempty"`
}

// Logger writes structured events to per-agent JSONL files. Errors are
// additionally copied to a shared error log, heartbeat events to a findings
// log, so the monitoring surface can tail each independently.
type Logger struct {
	agentID      string
	baseDir      string
	agentFile    *os.File
	errorFile    *os.File
	findingsFile *os.File
	mu           sync.Mutex
	minLevel     Level
}

// NewLogger creates a new structured logger rooted at baseDir.
func NewLogger(baseDir, agentID string) (*Logger, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	agentsDir := filepath.Join(baseDir, "agents")
	if err := os.MkdirAll(agentsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create agents directory: %w", err)
	}

	agentFile, err := os.OpenFile(
		filepath.Join(agentsDir, agentID+".jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0644,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open agent log: %w", err)
	}

	errorFile, err := os.OpenFile(
		filepath.Join(baseDir, "errors.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0644,
	)
	if err != nil {
		agentFile.Close()
		return nil, fmt.Errorf("failed to open error log: %w", err)
	}

	findingsFile, err := os.OpenFile(
		filepath.Join(baseDir, "findings.jsonl"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0644,
	)
	if err != nil {
		agentFile.Close()
		errorFile.Close()
		return nil, fmt.Errorf("failed to open findings log: %w", err)
	}

	return &Logger{
		agentID:      agentID,
		baseDir:      baseDir,
		agentFile:    agentFile,
		errorFile:    errorFile,
		findingsFile: findingsFile,
		minLevel:     LevelInfo,
	}, nil
}

// SetMinLevel sets the minimum log level
func (l *Logger) SetMinLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.minLevel = level
}

// Log writes an event to appropriate destinations
func (l *Logger) Log(event Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.AgentID == "" {
		event.AgentID = l.agentID
	}

	if !l.shouldLog(event.Level) {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	if l.agentFile != nil {
		if _, err := l.agentFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to agent log: %w", err)
		}
	}

	if event.Level == LevelError && l.errorFile != nil {
		if _, err := l.errorFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to error log: %w", err)
		}
	}

	if event.Category == CategoryHeartbeat && l.findingsFile != nil {
		if _, err := l.findingsFile.Write(data); err != nil {
			return fmt.Errorf("failed to write to findings log: %w", err)
		}
	}

	return nil
}

// shouldLog checks if event should be logged based on level
func (l *Logger) shouldLog(level Level) bool {
	levels := map[Level]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
	}
	return levels[level] >= levels[l.minLevel]
}

// Debug logs a debug event
func (l *Logger) Debug(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelDebug,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Info logs an info event
func (l *Logger) Info(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelInfo,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Warn logs a warning event
func (l *Logger) Warn(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelWarn,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Error logs an error event
func (l *Logger) Error(category Category, eventType string, message string, details map[string]any) error {
	return l.Log(Event{
		Level:     LevelError,
		Category:  category,
		EventType: eventType,
		Message:   message,
		Details:   details,
	})
}

// Close closes all log files
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var errs []error
	for _, f := range []*os.File{l.agentFile, l.errorFile, l.findingsFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing log files: %v", errs)
	}
	return nil
}

// ReadRecentEvents reads the last N events from a JSONL log file.
func ReadRecentEvents(logPath string, count int) ([]Event, error) {
	file, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}
	defer file.Close()

	var events []Event
	decoder := json.NewDecoder(file)
	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			break
		}
		events = append(events, event)
	}

	if len(events) > count {
		events = events[len(events)-count:]
	}
	return events, nil
}
