package summary

import (
	"sync"

	"go.uber.org/zap"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Entry struct {
	Scope   string
	Level   Level
	Message string
}

// Log accumulates the human readable outcome of a job run while writing
// every entry through zap. Children scope entries to one student or file.
type Log struct {
	mu       sync.Mutex
	scope    string
	log      *zap.Logger
	entries  []Entry
	children []*Log
}

func New(log *zap.Logger, scope string) *Log {
	if log == nil {
		log = zap.NewNop()
	}
	return &Log{scope: scope, log: log}
}

func (l *Log) Child(scope string, fields ...zap.Field) *Log {
	child := &Log{scope: scope, log: l.log.With(fields...)}
	l.mu.Lock()
	l.children = append(l.children, child)
	l.mu.Unlock()
	return child
}

func (l *Log) Info(msg string, fields ...zap.Field) {
	l.log.Info(msg, fields...)
	l.add(LevelInfo, msg)
}

func (l *Log) Warn(msg string, fields ...zap.Field) {
	l.log.Warn(msg, fields...)
	l.add(LevelWarning, msg)
}

func (l *Log) Error(msg string, err error, fields ...zap.Field) {
	l.log.Error(msg, append(fields, zap.Error(err))...)
	if err != nil {
		msg = msg + ": " + err.Error()
	}
	l.add(LevelError, msg)
}

func (l *Log) add(level Level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Scope: l.scope, Level: level, Message: msg})
}

// HasErrors reports whether this log or any child recorded an error.
func (l *Log) HasErrors() bool {
	return l.Count(LevelError) > 0
}

func (l *Log) Count(level Level) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	count := 0
	for _, e := range l.entries {
		if e.Level == level {
			count++
		}
	}
	for _, child := range l.children {
		count += child.Count(level)
	}
	return count
}

// Entries flattens this log and its children depth first.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]Entry(nil), l.entries...)
	for _, child := range l.children {
		out = append(out, child.Entries()...)
	}
	return out
}
