package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// specials expands the cron shorthand entries into 5-field form.
// @reboot has no 5-field equivalent and is passed through unchanged.
var specials = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

// ZoneOffset returns the UTC offset in minutes for a schedule time zone at
// the given instant. Accepts an IANA zone name, a fixed offset such as
// "+05:30" or "-04:00", "UTC", or the empty string.
func ZoneOffset(tz string, at time.Time) (int, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" || strings.EqualFold(tz, "UTC") {
		return 0, nil
	}

	if tz[0] == '+' || tz[0] == '-' {
		return parseFixedOffset(tz)
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		return 0, fmt.Errorf("schedule: unknown time zone %q: %w", tz, err)
	}
	_, seconds := at.In(loc).Zone()
	return seconds / 60, nil
}

// parseFixedOffset parses "+H", "+HH:MM", "-H:MM" style offsets.
func parseFixedOffset(s string) (int, error) {
	sign := 1
	if s[0] == '-' {
		sign = -1
	}
	body := s[1:]

	hs, ms, _ := strings.Cut(body, ":")
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, fmt.Errorf("schedule: bad offset %q", s)
	}
	m := 0
	if ms != "" {
		m, err = strconv.Atoi(ms)
		if err != nil {
			return 0, fmt.Errorf("schedule: bad offset %q", s)
		}
	}
	if h > 14 || m > 59 {
		return 0, fmt.Errorf("schedule: offset %q out of range", s)
	}
	return sign * (h*60 + m), nil
}

// Normalize rewrites a cron string from a zone at the given UTC offset (in
// minutes) into UTC. The minute field is shifted by the offset's minute
// component with the borrow carried into the hour shift; the hour field is
// shifted by the offset's hour component. Lists, ranges, and steps are
// transformed element-wise under the same modular arithmetic; "*" fields
// are left as-is. Normalize(c, 0) == c for canonical 5-field input.
func Normalize(cronStr string, offsetMinutes int) (string, error) {
	cronStr = strings.TrimSpace(cronStr)

	if cronStr == "@reboot" {
		return cronStr, nil
	}
	if expanded, ok := specials[cronStr]; ok {
		cronStr = expanded
	}

	fields := strings.Fields(cronStr)
	if len(fields) != 5 {
		return "", fmt.Errorf("schedule: cron %q: want 5 fields, got %d", cronStr, len(fields))
	}

	offH := offsetMinutes / 60
	offM := offsetMinutes % 60

	// Minute adjustment may borrow into the hour shift, but only a single
	// plain minute value has an unambiguous borrow.
	minuteShift := -offM
	carry := 0
	minuteField := fields[0]
	if v, err := strconv.Atoi(minuteField); err == nil {
		total := v - offM
		norm := mod(total, 60)
		carry = (total - norm) / 60
		minuteField = strconv.Itoa(norm)
	} else {
		minuteField, err = transformField(minuteField, minuteShift, 60)
		if err != nil {
			return "", fmt.Errorf("schedule: cron %q: minute field: %w", cronStr, err)
		}
	}

	hourField, err := transformField(fields[1], -offH+carry, 24)
	if err != nil {
		return "", fmt.Errorf("schedule: cron %q: hour field: %w", cronStr, err)
	}

	return strings.Join([]string{minuteField, hourField, fields[2], fields[3], fields[4]}, " "), nil
}

// NormalizeAt normalises a cron string using the zone's offset at the given
// instant (DST-aware for IANA zones).
func NormalizeAt(cronStr, tz string, at time.Time) (string, error) {
	offset, err := ZoneOffset(tz, at)
	if err != nil {
		return "", err
	}
	return Normalize(cronStr, offset)
}

// transformField shifts every element of a cron field by shift modulo m.
func transformField(field string, shift, m int) (string, error) {
	if field == "*" || shift%fieldStepOrOne(field) == 0 && strings.HasPrefix(field, "*/") {
		// "*" unchanged; "*/n" unchanged when the shift is a multiple of n
		// because the fired set maps onto itself.
		return field, nil
	}

	var values []int
	var parts []string
	expanded := false

	for element := range strings.SplitSeq(field, ",") {
		vals, keep, err := transformElement(element, shift, m)
		if err != nil {
			return "", err
		}
		if keep != "" {
			parts = append(parts, keep)
			continue
		}
		expanded = true
		values = append(values, vals...)
	}

	if !expanded && len(values) == 0 {
		return strings.Join(parts, ","), nil
	}

	// Mixed or expanded output collapses to a sorted, deduplicated value list.
	for _, p := range parts {
		vals, err := expandElement(p, m)
		if err != nil {
			return "", err
		}
		values = append(values, vals...)
	}
	values = sortedUnique(values)

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(v)
	}
	return strings.Join(out, ","), nil
}

// transformElement shifts one field element. It returns either a literal
// replacement element (keep != "") or the expanded shifted values.
func transformElement(element string, shift, m int) (values []int, keep string, err error) {
	// Plain value.
	if v, atoiErr := strconv.Atoi(element); atoiErr == nil {
		return nil, strconv.Itoa(mod(v+shift, m)), nil
	}

	// Step over a range or star: "a-b/n", "*/n".
	if base, stepStr, found := strings.Cut(element, "/"); found {
		step, stepErr := strconv.Atoi(stepStr)
		if stepErr != nil || step <= 0 {
			return nil, "", fmt.Errorf("bad step in %q", element)
		}
		lo, hi := 0, m-1
		if base != "*" {
			lo, hi, err = parseRange(base, m)
			if err != nil {
				return nil, "", err
			}
		}
		if base == "*" && mod(shift, step) == 0 {
			return nil, element, nil
		}
		for v := lo; v <= hi; v += step {
			values = append(values, mod(v+shift, m))
		}
		return values, "", nil
	}

	// Range "a-b".
	if strings.Contains(element, "-") {
		lo, hi, rangeErr := parseRange(element, m)
		if rangeErr != nil {
			return nil, "", rangeErr
		}
		loS, hiS := mod(lo+shift, m), mod(hi+shift, m)
		if loS <= hiS {
			return nil, fmt.Sprintf("%d-%d", loS, hiS), nil
		}
		// Shifted range wraps; expand to values.
		for v := lo; v <= hi; v++ {
			values = append(values, mod(v+shift, m))
		}
		return values, "", nil
	}

	return nil, "", fmt.Errorf("unsupported element %q", element)
}

// expandElement expands a literal element into its value set.
func expandElement(element string, m int) ([]int, error) {
	if v, err := strconv.Atoi(element); err == nil {
		return []int{v}, nil
	}
	if base, stepStr, found := strings.Cut(element, "/"); found {
		step, err := strconv.Atoi(stepStr)
		if err != nil || step <= 0 {
			return nil, fmt.Errorf("bad step in %q", element)
		}
		lo, hi := 0, m-1
		if base != "*" {
			if lo, hi, err = parseRange(base, m); err != nil {
				return nil, err
			}
		}
		var vals []int
		for v := lo; v <= hi; v += step {
			vals = append(vals, v)
		}
		return vals, nil
	}
	if lo, hi, err := parseRange(element, m); err == nil {
		vals := make([]int, 0, hi-lo+1)
		for v := lo; v <= hi; v++ {
			vals = append(vals, v)
		}
		return vals, nil
	}
	return nil, fmt.Errorf("unsupported element %q", element)
}

func parseRange(s string, m int) (lo, hi int, err error) {
	loS, hiS, found := strings.Cut(s, "-")
	if !found {
		return 0, 0, fmt.Errorf("bad range %q", s)
	}
	lo, err = strconv.Atoi(loS)
	if err != nil {
		return 0, 0, fmt.Errorf("bad range %q", s)
	}
	hi, err = strconv.Atoi(hiS)
	if err != nil {
		return 0, 0, fmt.Errorf("bad range %q", s)
	}
	if lo > hi || lo < 0 || hi >= m {
		return 0, 0, fmt.Errorf("range %q out of bounds", s)
	}
	return lo, hi, nil
}

func fieldStepOrOne(field string) int {
	if _, stepStr, found := strings.Cut(field, "/"); found {
		if step, err := strconv.Atoi(stepStr); err == nil && step > 0 {
			return step
		}
	}
	return 1
}

func sortedUnique(values []int) []int {
	sort.Ints(values)
	out := values[:0]
	var prev int
	for i, v := range values {
		if i > 0 && v == prev {
			continue
		}
		out = append(out, v)
		prev = v
	}
	return out
}

func mod(x, m int) int {
	return ((x % m) + m) % m
}
