package types

import (
	"strings"
	"time"
)

// TimestampLayout is the stored form of every log timestamp: UTC with
// millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp accepts TimestampLayout or any RFC 3339 timestamp and
// returns it in UTC truncated to milliseconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidTimestamp
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, ErrInvalidTimestamp
	}
	return t.UTC().Truncate(time.Millisecond), nil
}

// LogEntry is one timestamped occurrence with its items.
type LogEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	TypeID    string         `json:"type_id"`
	TypeName  string         `json:"type_name"`
	Comment   string         `json:"comment,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	Items     []LogEntryItem `json:"items"`
}

// ItemIDs returns the ids of the entry's items.
func (e LogEntry) ItemIDs() []string {
	ids := make([]string, len(e.Items))
	for i, it := range e.Items {
		ids[i] = it.ItemID
	}
	return ids
}

// LogEntryItem is an item recorded on an entry. SourceBundleID is set when
// the item was added by expanding a bundle.
type LogEntryItem struct {
	ItemID           string                    `json:"item_id"`
	ItemName         string                    `json:"item_name"`
	CategoryID       string                    `json:"category_id"`
	CategoryName     string                    `json:"category_name"`
	SourceBundleID   string                    `json:"source_bundle_id,omitempty"`
	SourceBundleName string                    `json:"source_bundle_name,omitempty"`
	Quantifiers      []LogEntryQuantifierValue `json:"quantifiers,omitempty"`
}

// LogEntryQuantifierValue is a recorded value joined with its definition.
type LogEntryQuantifierValue struct {
	QuantifierID string   `json:"quantifier_id"`
	Name         string   `json:"name"`
	Value        float64  `json:"value"`
	MinValue     *float64 `json:"min_value,omitempty"`
	MaxValue     *float64 `json:"max_value,omitempty"`
	Units        string   `json:"units,omitempty"`
}

// QuantifierValueInput is one value to record for an item's quantifier.
type QuantifierValueInput struct {
	QuantifierID string  `json:"quantifier_id"`
	Value        float64 `json:"value"`
}

// LogItemInput is one item to record on an entry.
type LogItemInput struct {
	ItemID         string                 `json:"item_id"`
	SourceBundleID string                 `json:"source_bundle_id,omitempty"`
	Quantifiers    []QuantifierValueInput `json:"quantifiers,omitempty"`
}

// LogEntryInput carries the full content of an entry for create or update.
// Items repeating an item id are written once; the first occurrence wins.
type LogEntryInput struct {
	Timestamp time.Time      `json:"timestamp"`
	TypeID    string         `json:"type_id"`
	Comment   string         `json:"comment,omitempty"`
	Items     []LogItemInput `json:"items,omitempty"`
}

// Validate checks the fields every backend requires.
func (in LogEntryInput) Validate() error {
	if in.TypeID == "" {
		return ErrInvalidID
	}
	if in.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	for _, it := range in.Items {
		if it.ItemID == "" {
			return ErrInvalidID
		}
		for _, q := range it.Quantifiers {
			if q.QuantifierID == "" {
				return ErrInvalidID
			}
		}
	}
	return nil
}

// LogFilter narrows GetAllLogEntries. Zero values match everything.
type LogFilter struct {
	TypeID string
	From   time.Time // inclusive
	To     time.Time // exclusive
	Limit  int
}
