package storage

import (
	"strconv"
	"strings"
	"time"

	"github.com/julianstephens/doselit/internal/models"
)

// Placeholder renders the n-th (1-based) bind parameter of a SQL dialect.
type Placeholder func(n int) string

// QuestionMark binds with "?" (SQLite).
func QuestionMark(int) string { return "?" }

// Dollar binds with "$n" (PostgreSQL).
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// IntakeQuery builds the SELECT used by ListIntakes for both SQL backends.
// encodeTime converts instants to the driver representation of scheduled_time.
func IntakeQuery(f models.IntakeFilter, ph Placeholder, encodeTime func(time.Time) any) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, strings.Replace(cond, "?", ph(len(args)), 1))
	}

	if f.UserID != "" {
		add("t.user_id = ?", f.UserID)
	}
	if f.TreatmentID != "" {
		add("m.treatment_id = ?", f.TreatmentID)
	}
	if f.MedicationID != "" {
		add("i.medication_id = ?", f.MedicationID)
	}
	if !f.From.IsZero() {
		add("i.scheduled_time >= ?", encodeTime(f.From))
	}
	if !f.To.IsZero() {
		add("i.scheduled_time < ?", encodeTime(f.To))
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			args = append(args, string(st))
			marks[i] = ph(len(args))
		}
		where = append(where, "i.status IN ("+strings.Join(marks, ", ")+")")
	}

	var b strings.Builder
	b.WriteString(`SELECT i.id, i.medication_id, i.scheduled_time, i.status, i.taken_at, i.created_at
		FROM medication_intakes i
		JOIN medications m ON m.id = i.medication_id
		JOIN treatments t ON t.id = m.treatment_id`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY i.scheduled_time ASC, i.medication_id ASC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		b.WriteString(" LIMIT " + ph(len(args)))
	}
	return b.String(), args
}

// DedupeInstants normalizes instants to UTC seconds and removes duplicates,
// preserving first-seen order.
func DedupeInstants(instants []time.Time) []time.Time {
	seen := make(map[int64]struct{}, len(instants))
	out := make([]time.Time, 0, len(instants))
	for _, t := range instants {
		t = t.UTC().Truncate(time.Second)
		if _, ok := seen[t.Unix()]; ok {
			continue
		}
		seen[t.Unix()] = struct{}{}
		out = append(out, t)
	}
	return out
}
