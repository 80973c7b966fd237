package logs

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Filter selects JSON log lines. The zero value matches everything.
type Filter struct {
	ItemID    int64
	Component string
	MinLevel  string
}

func (f Filter) empty() bool {
	return f.ItemID == 0 && f.Component == "" && f.MinLevel == ""
}

var levelRank = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// Match reports whether line passes the filter. Lines that are not JSON only
// match an empty filter.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		return false
	}
	if f.ItemID != 0 && !matchesItem(entry["item_id"], f.ItemID) {
		return false
	}
	if f.Component != "" {
		component, _ := entry["component"].(string)
		if !strings.EqualFold(component, f.Component) {
			return false
		}
	}
	if f.MinLevel != "" {
		want, ok := levelRank[strings.ToUpper(f.MinLevel)]
		level, _ := entry["level"].(string)
		have, known := levelRank[strings.ToUpper(level)]
		if ok && known && have < want {
			return false
		}
	}
	return true
}

func matchesItem(value any, id int64) bool {
	switch v := value.(type) {
	case float64:
		return int64(v) == id
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		return err == nil && parsed == id
	default:
		return false
	}
}
