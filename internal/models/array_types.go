package models

import (
	"database/sql/driver"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ScheduleDays is the set of weekdays a run operates on, stored as TEXT[] in
// PostgreSQL using upper-case weekday names (MONDAY, TUESDAY, ...).
// An empty set means the run operates every day.
type ScheduleDays []string

// Value implements the driver.Valuer interface
func (d ScheduleDays) Value() (driver.Value, error) {
	if d == nil {
		return pq.Array([]string{}).Value()
	}
	return pq.Array([]string(d)).Value()
}

// Scan implements the sql.Scanner interface
func (d *ScheduleDays) Scan(src interface{}) error {
	if src == nil {
		*d = nil
		return nil
	}
	slice := (*[]string)(d)
	return pq.Array(slice).Scan(src)
}

// Includes reports whether the run operates on the given weekday.
func (d ScheduleDays) Includes(day time.Weekday) bool {
	if len(d) == 0 {
		return true
	}
	name := strings.ToUpper(day.String())
	for _, s := range d {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return true
		}
	}
	return false
}

// Sorted returns the days in calendar order starting from Monday.
func (d ScheduleDays) Sorted() []string {
	out := make([]string, len(d))
	copy(out, d)
	sort.Slice(out, func(i, j int) bool {
		return weekdayIndex(out[i]) < weekdayIndex(out[j])
	})
	return out
}

// ParseScheduleDays normalizes full weekday names ("monday", "Friday") into
// a ScheduleDays set. Duplicates are dropped.
func ParseScheduleDays(days []string) (ScheduleDays, error) {
	seen := make(map[string]bool, len(days))
	out := make(ScheduleDays, 0, len(days))
	for _, raw := range days {
		name := strings.ToUpper(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if weekdayIndex(name) < 0 {
			return nil, ErrInvalidInput(fmt.Sprintf("invalid schedule day: %s", raw))
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// weekdayIndex maps MONDAY..SUNDAY to 0..6, or -1 when unknown.
func weekdayIndex(name string) int {
	switch strings.ToUpper(name) {
	case "MONDAY":
		return 0
	case "TUESDAY":
		return 1
	case "WEDNESDAY":
		return 2
	case "THURSDAY":
		return 3
	case "FRIDAY":
		return 4
	case "SATURDAY":
		return 5
	case "SUNDAY":
		return 6
	}
	return -1
}

// Int64Array is a custom type for handling BIGINT[] arrays in PostgreSQL
type Int64Array []int64

// Value implements the driver.Valuer interface
func (a Int64Array) Value() (driver.Value, error) {
	if a == nil {
		return pq.Array([]int64{}).Value()
	}
	return pq.Array([]int64(a)).Value()
}

// Scan implements the sql.Scanner interface
func (a *Int64Array) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	slice := (*[]int64)(a)
	return pq.Array(slice).Scan(src)
}

// ParseWeekday parses a full weekday name ignoring case
func ParseWeekday(name string) (time.Weekday, error) {
	idx := weekdayIndex(strings.TrimSpace(name))
	if idx < 0 {
		return 0, ErrInvalidInput(fmt.Sprintf("invalid day of week: %s", name))
	}
	return time.Weekday((idx + 1) % 7), nil
}
