// Package posology turns a medication's time-of-day slots into concrete intake instants.
package posology

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/julianstephens/doselit/internal/utils"
)

// Expand returns one UTC instant per (civil date × slot) for every date d in
// loc with from <= d <= to. Only the calendar dates of from and to matter.
// The result is sorted and free of duplicates. An empty slot list yields no
// instants and no error.
func Expand(slots []string, from, to time.Time, loc *time.Location) ([]time.Time, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	if loc == nil {
		loc = time.UTC
	}

	for _, slot := range slots {
		if !utils.ValidateTimeFormat(slot) {
			return nil, fmt.Errorf("invalid time slot %q (expected HH:MM)", slot)
		}
	}

	fy, fm, fd := from.In(loc).Date()
	ty, tm, td := to.In(loc).Date()
	first := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	last := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	if last.Before(first) {
		return nil, nil
	}

	seen := make(map[int64]struct{})
	var out []time.Time
	// Days are walked on a UTC calendar so DST transitions in loc never skip or repeat a date.
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, slot := range slots {
			at, err := utils.CombineDayAndTime(day, slot, loc)
			if err != nil {
				return nil, err
			}
			at = at.UTC()
			if _, dup := seen[at.Unix()]; dup {
				continue
			}
			seen[at.Unix()] = struct{}{}
			out = append(out, at)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, nil
}

// NormalizeSlots trims, validates, sorts and deduplicates HH:MM slots.
// Single-digit hours ("8:00") are zero-padded.
func NormalizeSlots(slots []string) ([]string, error) {
	seen := make(map[string]struct{}, len(slots))
	out := make([]string, 0, len(slots))
	for _, raw := range slots {
		slot := strings.TrimSpace(raw)
		if slot == "" {
			continue
		}
		if len(slot) == 4 && slot[1] == ':' {
			slot = "0" + slot
		}
		if !utils.ValidateTimeFormat(slot) {
			return nil, fmt.Errorf("invalid time slot %q (expected HH:MM)", raw)
		}
		if _, ok := seen[slot]; ok {
			continue
		}
		seen[slot] = struct{}{}
		out = append(out, slot)
	}
	sort.Strings(out)
	return out, nil
}

// TakesPerDay is the static daily intake count implied by the slots.
func TakesPerDay(slots []string) int {
	return len(slots)
}

var keywordSlots = map[string]string{
	"matin":    "08:00",
	"morning":  "08:00",
	"midi":     "12:00",
	"noon":     "12:00",
	"lunch":    "12:00",
	"soir":     "20:00",
	"evening":  "20:00",
	"coucher":  "22:00",
	"bedtime":  "22:00",
	"nuit":     "22:00",
	"night":    "22:00",
	"dejeuner": "12:00",
	"diner":    "20:00",
	"dinner":   "20:00",
}

var countWords = map[string]int{
	"une": 1, "un": 1, "once": 1, "one": 1,
	"deux": 2, "twice": 2, "two": 2,
	"trois": 3, "three": 3,
	"quatre": 4, "four": 4,
}

// ParsePosology derives default slots from a free-text posology such as
// "1 comprimé matin et soir" or "2 times a day". It reports false when
// nothing in the text maps to a time of day.
func ParsePosology(text string) ([]string, bool) {
	words := tokenize(text)

	var slots []string
	for _, w := range words {
		if slot, ok := keywordSlots[w]; ok {
			slots = append(slots, slot)
		}
	}
	if len(slots) > 0 {
		normalized, err := NormalizeSlots(slots)
		return normalized, err == nil
	}

	if n := dailyCount(words); n > 0 {
		return EvenSlots(n), true
	}
	return nil, false
}

// dailyCount finds "N fois par jour", "N times a day", "twice daily" and the like.
func dailyCount(words []string) int {
	for i, w := range words {
		var n int
		if v, err := strconv.Atoi(w); err == nil {
			n = v
		} else if v, ok := countWords[w]; ok {
			n = v
		}
		if w == "once" || w == "twice" {
			return n
		}
		if n <= 0 || i+1 >= len(words) {
			continue
		}
		if next := words[i+1]; next == "fois" || next == "times" || next == "x" {
			return n
		}
	}
	return 0
}

// EvenSlots spreads n intakes over the waking day, 08:00 to 20:00.
func EvenSlots(n int) []string {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []string{"08:00"}
	}
	const startMin, endMin = 8 * 60, 20 * 60
	step := (endMin - startMin) / (n - 1)
	out := make([]string, n)
	for i := range out {
		m := startMin + i*step
		out[i] = fmt.Sprintf("%02d:%02d", m/60, m%60)
	}
	return out
}

func tokenize(text string) []string {
	folded := strings.Map(func(r rune) rune {
		switch r {
		case 'é', 'è', 'ê', 'ë':
			return 'e'
		case 'î', 'ï':
			return 'i'
		case 'à', 'â':
			return 'a'
		case 'ô':
			return 'o'
		case 'û', 'ù':
			return 'u'
		}
		return unicode.ToLower(r)
	}, text)
	return strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Describe renders the slots for display, e.g. "08:00, 20:00 (2/day)".
func Describe(slots []string) string {
	if len(slots) == 0 {
		return "unscheduled"
	}
	return fmt.Sprintf("%s (%d/day)", strings.Join(slots, ", "), len(slots))
}
