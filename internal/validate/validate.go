package validate

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"sync"
)

// patternCache holds compiled template patterns.
var patternCache sync.Map // Pattern -> *regexp.Regexp

// SanitizeJSON decodes raw UTF-8 JSON and validates it against the
// template. Malformed JSON fails with KindMalformedJSON before any
// structural check runs. Numbers are decoded as json.Number.
func SanitizeJSON(raw []byte, template any) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, &Error{Kind: KindMalformedJSON}
	}

	return Sanitize(payload, template)
}

// Sanitize validates a decoded payload against a template and returns a
// new sanitized value containing exactly the template's keys. The input
// is never mutated. The top-level template must be an Object or a List.
func Sanitize(payload, template any) (any, error) {
	switch t := template.(type) {
	case Object:
		obj, ok := payload.(map[string]any)
		if !ok {
			return nil, newTypeError("")
		}
		return sanitizeObject(obj, t)

	case List:
		list, ok := payload.([]any)
		if !ok {
			return nil, newTypeError("")
		}
		return sanitizeList(list, t, "")

	default:
		return nil, newTypeError("")
	}
}

// sanitizeObject validates an object payload against an object template.
//
// Two passes mirror the validation contract: the first checks every
// payload key that the template declares (unknown keys are stripped, not
// rejected, for forward compatibility with clients that send extra
// fields); the second requires and re-checks every template key while
// building the sanitized result. The success counter must come out at
// exactly twice the template size; anything else trips the internal
// invariant error.
func sanitizeObject(payload map[string]any, template Object) (map[string]any, error) {
	successes := 0

	for key, value := range payload {
		fieldTemplate, declared := template[key]
		if !declared {
			continue
		}
		if _, err := sanitizeValue(value, fieldTemplate, key); err != nil {
			return nil, err
		}
		successes++
	}

	out := make(map[string]any, len(template))

	for key, fieldTemplate := range template {
		value, present := payload[key]
		if !present {
			return nil, newMissingKeyError(key)
		}

		sanitized, err := sanitizeValue(value, fieldTemplate, key)
		if err != nil {
			return nil, err
		}

		out[key] = sanitized
		successes++
	}

	if successes != len(template)*2 {
		return nil, &Error{Kind: KindInternal}
	}

	return out, nil
}

// sanitizeList validates each element of a list payload. An empty list
// is always valid.
func sanitizeList(payload []any, template List, key string) ([]any, error) {
	out := make([]any, 0, len(payload))

	for _, element := range payload {
		sanitized, err := sanitizeValue(element, template.Of, key)
		if err != nil {
			return nil, err
		}
		out = append(out, sanitized)
	}

	return out, nil
}

// sanitizeValue validates a single value against its field template and
// returns the sanitized copy. A nil value is accepted regardless of the
// template. key is the nearest field name, used in error reporting.
func sanitizeValue(value, template any, key string) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch t := template.(type) {
	case Kind:
		if !matchKind(value, t) {
			return nil, newTypeError(key)
		}
		return value, nil

	case Pattern:
		if !matchPattern(value, t) {
			return nil, newTypeError(key)
		}
		return value, nil

	case Object:
		obj, ok := value.(map[string]any)
		if !ok {
			return nil, newTypeError(key)
		}
		return sanitizeObject(obj, t)

	case List:
		list, ok := value.([]any)
		if !ok {
			return nil, newTypeError(key)
		}
		return sanitizeList(list, t, key)

	default:
		// A template holding anything else is a programming error in
		// the route definition, not a property of the input.
		return nil, &Error{Kind: KindInternal, Key: key}
	}
}

// matchKind checks a value against a primitive kind.
func matchKind(value any, kind Kind) bool {
	switch kind {
	case Skip:
		return true

	case String:
		_, ok := value.(string)
		return ok

	case Bool:
		s, ok := value.(string)
		return ok && (s == "true" || s == "false")

	case Int:
		return coercibleToInt(value)

	default:
		return false
	}
}

// coercibleToInt reports whether a value converts to an integer:
// any JSON number (floats truncate), an integral decimal string, or a
// boolean.
func coercibleToInt(value any) bool {
	switch v := value.(type) {
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return true
		}
		_, err := v.Float64()
		return err == nil
	case string:
		_, err := strconv.ParseInt(v, 10, 64)
		return err == nil
	case bool:
		return true
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}

// matchPattern checks a text-coercible value against a pattern anchored
// at the start.
func matchPattern(value any, pattern Pattern) bool {
	var text string
	switch v := value.(type) {
	case string:
		text = v
	case json.Number:
		text = v.String()
	case bool:
		text = strconv.FormatBool(v)
	default:
		return false
	}

	re, err := compiledPattern(pattern)
	if err != nil {
		return false
	}

	return re.MatchString(text)
}

// compiledPattern returns the compiled, start-anchored form of a
// template pattern.
func compiledPattern(pattern Pattern) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile("^(?:" + string(pattern) + ")")
	if err != nil {
		return nil, err
	}

	patternCache.Store(pattern, re)
	return re, nil
}
