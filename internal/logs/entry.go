package logs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"squish/internal/logging"
)

// Entry is one decoded journal line.
type Entry struct {
	Time      time.Time
	Level     string
	Message   string
	Component string
	RecordID  string
	EventType string
	Attrs     map[string]any
	Raw       string
}

var levelRank = map[string]int{
	"debug":   0,
	"info":    1,
	"warn":    2,
	"warning": 2,
	"error":   3,
}

// ParseEntry decodes a JSON journal line.
func ParseEntry(line string) (Entry, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return Entry{}, fmt.Errorf("decode log line: %w", err)
	}
	entry := Entry{Raw: line, Attrs: make(map[string]any)}
	for key, value := range fields {
		switch key {
		case "ts":
			if s, ok := value.(string); ok {
				if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
					entry.Time = parsed
				}
			}
		case "level":
			entry.Level = strings.ToLower(fmt.Sprint(value))
		case "msg":
			entry.Message = fmt.Sprint(value)
		case logging.FieldComponent:
			entry.Component = fmt.Sprint(value)
		case logging.FieldRecordID:
			entry.RecordID = fmt.Sprint(value)
		case logging.FieldEventType:
			entry.EventType = fmt.Sprint(value)
		default:
			entry.Attrs[key] = value
		}
	}
	return entry, nil
}

// Format renders the entry as a single human-readable line.
func (e Entry) Format() string {
	var b strings.Builder
	if !e.Time.IsZero() {
		b.WriteString(e.Time.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	fmt.Fprintf(&b, "%-5s", strings.ToUpper(e.Level))
	if e.Component != "" {
		fmt.Fprintf(&b, " [%s]", e.Component)
	}
	if e.RecordID != "" {
		fmt.Fprintf(&b, " %s", e.RecordID)
	}
	b.WriteString(" ")
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Attrs))
	for key := range e.Attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%v", key, e.Attrs[key])
	}
	return b.String()
}

// Filter narrows journal lines. Zero fields match everything.
type Filter struct {
	RecordID  string
	Component string
	MinLevel  string
}

// Empty reports whether the filter matches every line.
func (f Filter) Empty() bool {
	return f.RecordID == "" && f.Component == "" && f.MinLevel == ""
}

// Match reports whether line passes the filter. Lines that are not valid JSON
// only pass an empty filter.
func (f Filter) Match(line string) bool {
	if f.Empty() {
		return true
	}
	entry, err := ParseEntry(line)
	if err != nil {
		return false
	}
	return f.MatchEntry(entry)
}

// MatchEntry reports whether entry passes the filter.
func (f Filter) MatchEntry(entry Entry) bool {
	if f.RecordID != "" && entry.RecordID != f.RecordID {
		return false
	}
	if f.Component != "" && !strings.EqualFold(entry.Component, f.Component) {
		return false
	}
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToLower(f.MinLevel)]
		if ok && levelRank[entry.Level] < want {
			return false
		}
	}
	return true
}

// ValidLevel reports whether level is a recognised minimum level.
func ValidLevel(level string) bool {
	_, ok := levelRank[strings.ToLower(strings.TrimSpace(level))]
	return ok
}
