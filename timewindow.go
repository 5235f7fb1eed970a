package sudocache

import (
	"strings"
	"time"
)

// timeLayout is the sudoers timestamp format without the mandatory
// trailing Z, which is checked separately.
const timeLayout = "20060102150405"

// parseRuleTime parses a yyyymmddHHMMSSZ timestamp as UTC.
func parseRuleTime(value string) (time.Time, error) {
	s, ok := strings.CutSuffix(value, "Z")
	if !ok || len(s) != len(timeLayout) {
		return time.Time{}, &MalformedTimestampError{Value: value}
	}
	t, err := time.ParseInLocation(timeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, &MalformedTimestampError{Value: value}
	}
	return t, nil
}

// CheckTimeWindow reports whether the rule is active at the given
// instant. A zero now means the current wall-clock time.
//
// Per sudoers.ldap semantics: with multiple sudoNotBefore values the
// earliest applies, with multiple sudoNotAfter values the last one in
// attribute order applies. An absent or empty attribute leaves that
// bound unrestricted. A malformed timestamp is a hard error, never
// treated as an open or closed bound.
func CheckTimeWindow(rule *Rule, now time.Time) (bool, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if values := rule.Get(AttrNotBefore); len(values) > 0 {
		var earliest time.Time
		for _, v := range values {
			t, err := parseRuleTime(v)
			if err != nil {
				return false, err
			}
			if earliest.IsZero() || t.Before(earliest) {
				earliest = t
			}
		}
		if now.Before(earliest) {
			return false, nil
		}
	}

	if values := rule.Get(AttrNotAfter); len(values) > 0 {
		t, err := parseRuleTime(values[len(values)-1])
		if err != nil {
			return false, err
		}
		if now.After(t) {
			return false, nil
		}
	}

	return true, nil
}

// FilterRulesByTime returns the rules active at the given instant, in
// input order, as a fresh slice. A zero now means the current
// wall-clock time, resolved once so every rule sees the same instant.
//
// A malformed timestamp on any rule fails the whole batch: a cache
// that cannot be parsed should not be served partially.
func FilterRulesByTime(rules []*Rule, now time.Time) ([]*Rule, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	active := make([]*Rule, 0, len(rules))
	for _, rule := range rules {
		ok, err := CheckTimeWindow(rule, now)
		if err != nil {
			return nil, err
		}
		if ok {
			active = append(active, rule)
		}
	}
	return active, nil
}
