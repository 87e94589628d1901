package render

import (
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-dynform/pkg/gateway"
)

// HiddenField is a hidden input emitted next to the schema fields.
type HiddenField struct {
	Name  string
	Value string
}

// SessionFieldName is the hidden input holding the session identifier.
const SessionFieldName = "_session"

// SessionField carries the server-side session identifier of a rendered
// form so the POST handler can find it again.
func SessionField(id string) HiddenField {
	return HiddenField{Name: SessionFieldName, Value: id}
}

// CleanHiddenFields trims names, drops empty ones and lets later fields win
// on collisions. The result is sorted by name.
func CleanHiddenFields(fields ...HiddenField) []HiddenField {
	byName := make(map[string]string, len(fields))
	for _, field := range fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		byName[name] = field.Value
	}
	if len(byName) == 0 {
		return nil
	}
	out := make([]HiddenField, 0, len(byName))
	for name, value := range byName {
		out = append(out, HiddenField{Name: name, Value: value})
	}
	slices.SortFunc(out, func(a, b HiddenField) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// SubmissionRows prepares submissions for display. Input order is kept;
// data keys are sorted.
func SubmissionRows(subs []gateway.Submission) []SubmissionRow {
	if len(subs) == 0 {
		return nil
	}
	rows := make([]SubmissionRow, 0, len(subs))
	for _, sub := range subs {
		keys := make([]string, 0, len(sub.Data))
		for key := range sub.Data {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		row := SubmissionRow{
			ID:        sub.ID,
			FormTitle: sub.FormTitle,
			CreatedAt: sub.CreatedAt.UTC().Format(time.RFC3339),
			Fields:    make([]KeyValue, 0, len(keys)),
		}
		for _, key := range keys {
			row.Fields = append(row.Fields, KeyValue{Key: key, Value: sub.Data[key]})
		}
		rows = append(rows, row)
	}
	return rows
}
