package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// JSONFormatter renders an Entry as a single line of JSON.
type JSONFormatter struct{}

func (JSONFormatter) Format(entry *Entry) ([]byte, error) {
	m := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		m[k] = v
	}
	m["level"] = entry.Level.String()
	m["msg"] = entry.Message
	m["ts"] = entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00")
	if entry.Caller != "" {
		m["caller"] = entry.Caller
	}
	if entry.Error != nil {
		m["error"] = entry.Error.Error()
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// TextFormatter renders an Entry as a human-readable single line.
type TextFormatter struct{}

func (TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %-5s %s", entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"), entry.Level.String(), entry.Message)
	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&buf, " %s=%v", k, entry.Fields[k])
		}
	}
	if entry.Caller != "" {
		fmt.Fprintf(&buf, " caller=%s", entry.Caller)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
