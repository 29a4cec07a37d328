package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	defaultLogFileMaxBytes = 2 * 1024 * 1024
	// keepSessions is how many past sessions' log parts survive startup.
	keepSessions  = 10
	sessionPrefix = "session-"
)

// fileSink appends JSONL events under dir, one file series per process.
type fileSink struct {
	mu       sync.Mutex
	dir      string
	tag      string
	maxBytes int64
	part     int
	file     *os.File
	size     int64
	closed   bool
}

type logRecord struct {
	Time      string         `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
}

func DefaultLogDirPath() (string, error) {
	root, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, "maple-party", "logs"), nil
}

func newFileSink(maxBytes int64) (*fileSink, error) {
	dir, err := DefaultLogDirPath()
	if err != nil {
		return nil, err
	}
	return openFileSink(dir, time.Now().UTC().Format("20060102-150405"), maxBytes)
}

func openFileSink(dir, tag string, maxBytes int64) (*fileSink, error) {
	if maxBytes <= 0 {
		maxBytes = defaultLogFileMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	pruneSessions(dir, keepSessions)
	s := &fileSink{dir: dir, tag: tag, maxBytes: maxBytes}
	if err := s.nextPartLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// pruneSessions removes the log parts of all but the newest keep sessions.
// Session tags sort chronologically, so file names order by age.
func pruneSessions(dir string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	bySession := map[string][]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, sessionPrefix) || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		tag := sessionTag(name)
		bySession[tag] = append(bySession[tag], name)
	}
	if len(bySession) <= keep {
		return
	}
	tags := make([]string, 0, len(bySession))
	for tag := range bySession {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags[:len(tags)-keep] {
		for _, name := range bySession[tag] {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}

// sessionTag strips the prefix and the trailing part counter from name.
func sessionTag(name string) string {
	base := strings.TrimSuffix(strings.TrimPrefix(name, sessionPrefix), ".jsonl")
	if i := strings.LastIndexByte(base, '-'); i > 0 {
		return base[:i]
	}
	return base
}

func (s *fileSink) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *fileSink) WriteEvent(event Event) error {
	if s == nil {
		return nil
	}
	line, err := encodeRecord(event)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	if s.file == nil || (s.size > 0 && s.size+int64(len(line)) > s.maxBytes) {
		if err := s.nextPartLocked(); err != nil {
			return err
		}
	}
	n, err := s.file.Write(line)
	s.size += int64(n)
	return err
}

func encodeRecord(event Event) ([]byte, error) {
	record := logRecord{
		Time:      event.Time.UTC().Format(time.RFC3339Nano),
		Level:     strings.ToUpper(event.Level.String()),
		Component: event.Component,
		Message:   event.Message,
	}
	if len(event.Fields) > 0 {
		record.Fields = make(map[string]any, len(event.Fields))
		for key, value := range event.Fields {
			record.Fields[key] = recordValue(RedactField(key, value))
		}
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	return append(payload, '\n'), nil
}

func recordValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case slog.Level:
		return v.String()
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return value
	}
}

func (s *fileSink) nextPartLocked() error {
	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	s.part++
	path := filepath.Join(s.dir, fmt.Sprintf("%s%s-%03d.jsonl", sessionPrefix, s.tag, s.part))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	s.file = f
	s.size = info.Size()
	return nil
}
