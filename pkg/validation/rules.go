package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

// RuleFunc checks one field value. present reports whether the field exists
// in the payload; param is the text after ':' in the rule token ("3" for
// "min:3"). It returns true when the value passes.
type RuleFunc func(value any, present bool, param string) bool

// Ruleset maps a field name to its ordered rule tokens.
type Ruleset map[string][]string

// ParseRules splits a pipe-separated rule string ("required|email").
func ParseRules(s string) []string {
	var out []string
	for _, tok := range strings.Split(s, "|") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

// Fields returns the ruleset's field names in sorted order.
func (r Ruleset) Fields() []string {
	fields := make([]string, 0, len(r))
	for f := range r {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

var (
	rulesMu sync.RWMutex
	rules   = map[string]RuleFunc{
		"required":  required,
		"string":    isString,
		"email":     email,
		"numeric":   numeric,
		"alpha_num": alphaNum,
		"min":       minLength,
		"max":       maxLength,
	}
)

// RegisterRule adds or replaces the rule called name.
func RegisterRule(name string, fn RuleFunc) {
	if name == "" || fn == nil {
		return
	}
	rulesMu.Lock()
	defer rulesMu.Unlock()
	rules[name] = fn
}

// LookupRule returns the rule called name.
func LookupRule(name string) (RuleFunc, bool) {
	rulesMu.RLock()
	defer rulesMu.RUnlock()
	fn, ok := rules[name]
	return fn, ok
}

// splitToken separates "min:3" into ("min", "3").
func splitToken(tok string) (name, param string) {
	tok = strings.TrimSpace(tok)
	if i := strings.IndexByte(tok, ':'); i >= 0 {
		return tok[:i], tok[i+1:]
	}
	return tok, ""
}

// defaultMessage returns the built-in message for a failing rule.
func defaultMessage(field, rule, param string) string {
	switch rule {
	case "required":
		return field + " is required"
	case "string":
		return field + " must be a string"
	case "email":
		return field + " must be a valid email"
	case "numeric":
		return field + " must be a number"
	case "alpha_num":
		return field + " may only contain letters and numbers"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, param)
	}
	return field + " is invalid"
}

// ----------------------------------------------------------------------------
// Built-in rules
// ----------------------------------------------------------------------------

// required fails on absent, nil and whitespace-only values.
func required(value any, present bool, _ string) bool {
	return present && !isBlank(value)
}

// isString fails when the value is present but not a string.
func isString(value any, present bool, _ string) bool {
	if !present || value == nil {
		return true
	}
	_, ok := value.(string)
	return ok
}

// email fails when a non-blank value does not look like an address.
func email(value any, present bool, _ string) bool {
	if !present || isBlank(value) {
		return true
	}
	return emailPattern.MatchString(toString(value))
}

func numeric(value any, present bool, _ string) bool {
	if !present || isBlank(value) {
		return true
	}
	_, err := strconv.ParseFloat(strings.TrimSpace(toString(value)), 64)
	return err == nil
}

func alphaNum(value any, present bool, _ string) bool {
	if !present || isBlank(value) {
		return true
	}
	for _, r := range toString(value) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// minLength leaves empty values to required.
func minLength(value any, present bool, param string) bool {
	n, err := strconv.Atoi(param)
	if err != nil || !present || isBlank(value) {
		return true
	}
	return len([]rune(toString(value))) >= n
}

func maxLength(value any, present bool, param string) bool {
	n, err := strconv.Atoi(param)
	if err != nil || !present {
		return true
	}
	return len([]rune(toString(value))) <= n
}

// ----------------------------------------------------------------------------
// Helper Functions
// ----------------------------------------------------------------------------

// isBlank reports whether a value is nil or formats to whitespace only.
func isBlank(value any) bool {
	if value == nil {
		return true
	}
	return strings.TrimSpace(toString(value)) == ""
}

// toString converts a value to a string.
func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
