package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// ValidationError is the first constraint violation encountered while
// walking a schema and a value in parallel. Path is a JSON-pointer-like
// location, e.g. "/a" or "/items/0/name".
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s (at %s)", e.Message, e.Path)
}

// Validate walks s and data in parallel and returns the first
// violation found, or nil if data conforms to s.
func Validate(s Schema, data interface{}) error {
	return validateAt(s, data, "")
}

func validateAt(s Schema, data interface{}, path string) error {
	switch v := s.(type) {
	case Any:
		return nil
	case String:
		return validateString(v, data, path)
	case Number:
		return validateNumber(v, data, path)
	case Integer:
		return validateInteger(v, data, path)
	case Boolean:
		if _, ok := data.(bool); !ok {
			return fail(path, "expected boolean")
		}
		return nil
	case Null:
		if data != nil {
			return fail(path, "expected null")
		}
		return nil
	case Array:
		return validateArray(v, data, path)
	case Object:
		return validateObject(v, data, path)
	case Enum:
		for _, want := range v.Values {
			if deepEqual(want, data) {
				return nil
			}
		}
		return fail(path, "value does not match enum")
	case AllOf:
		for _, sub := range v.Schemas {
			if err := validateAt(sub, data, path); err != nil {
				return err
			}
		}
		return nil
	case AnyOf:
		for _, sub := range v.Schemas {
			if validateAt(sub, data, path) == nil {
				return nil
			}
		}
		return fail(path, "value matches no branch of anyOf")
	case OneOf:
		matches := 0
		for _, sub := range v.Schemas {
			if validateAt(sub, data, path) == nil {
				matches++
			}
		}
		if matches != 1 {
			return fail(path, fmt.Sprintf("value must match exactly one branch of oneOf, matched %d", matches))
		}
		return nil
	case Not:
		if validateAt(v.Schema, data, path) == nil {
			return fail(path, "value must not match schema")
		}
		return nil
	default:
		return fail(path, "unsupported schema node")
	}
}

func fail(path, message string) *ValidationError {
	if path == "" {
		path = "/"
	}
	return &ValidationError{Path: path, Message: message}
}

func validateString(s String, data interface{}, path string) error {
	str, ok := data.(string)
	if !ok {
		return fail(path, "expected string")
	}
	if s.MinLength != nil && len(str) < *s.MinLength {
		return fail(path, fmt.Sprintf("string shorter than minLength %d", *s.MinLength))
	}
	if s.MaxLength != nil && len(str) > *s.MaxLength {
		return fail(path, fmt.Sprintf("string longer than maxLength %d", *s.MaxLength))
	}
	if s.Pattern != "" {
		re, err := regexp.Compile(s.Pattern)
		if err != nil {
			return fail(path, fmt.Sprintf("invalid pattern: %v", err))
		}
		if !re.MatchString(str) {
			return fail(path, fmt.Sprintf("string does not match pattern %q", s.Pattern))
		}
	}
	if len(s.Enum) > 0 {
		found := false
		for _, e := range s.Enum {
			if e == str {
				found = true
				break
			}
		}
		if !found {
			return fail(path, "value does not match enum")
		}
	}
	return nil
}

func validateNumber(s Number, data interface{}, path string) error {
	n, ok := asFloat(data)
	if !ok {
		return fail(path, "expected number")
	}
	return checkNumericBounds(path, n, s.Minimum, s.Maximum, s.ExclusiveMinimum, s.ExclusiveMaximum, s.MultipleOf)
}

func validateInteger(s Integer, data interface{}, path string) error {
	n, ok := asFloat(data)
	if !ok || n != float64(int64(n)) {
		return fail(path, "expected integer")
	}
	var min, max, exMin, exMax, mult *float64
	if s.Minimum != nil {
		f := float64(*s.Minimum)
		min = &f
	}
	if s.Maximum != nil {
		f := float64(*s.Maximum)
		max = &f
	}
	if s.ExclusiveMinimum != nil {
		f := float64(*s.ExclusiveMinimum)
		exMin = &f
	}
	if s.ExclusiveMaximum != nil {
		f := float64(*s.ExclusiveMaximum)
		exMax = &f
	}
	if s.MultipleOf != nil {
		f := float64(*s.MultipleOf)
		mult = &f
	}
	return checkNumericBounds(path, n, min, max, exMin, exMax, mult)
}

func checkNumericBounds(path string, n float64, min, max, exMin, exMax, mult *float64) error {
	if min != nil && n < *min {
		return fail(path, fmt.Sprintf("value below minimum %v", *min))
	}
	if max != nil && n > *max {
		return fail(path, fmt.Sprintf("value above maximum %v", *max))
	}
	if exMin != nil && n <= *exMin {
		return fail(path, fmt.Sprintf("value must be > %v", *exMin))
	}
	if exMax != nil && n >= *exMax {
		return fail(path, fmt.Sprintf("value must be < %v", *exMax))
	}
	if mult != nil && *mult != 0 {
		ratio := n / *mult
		if ratio != float64(int64(ratio)) {
			return fail(path, fmt.Sprintf("value must be a multiple of %v", *mult))
		}
	}
	return nil
}

func validateArray(s Array, data interface{}, path string) error {
	arr, ok := data.([]interface{})
	if !ok {
		return fail(path, "expected array")
	}
	if s.MinItems != nil && len(arr) < *s.MinItems {
		return fail(path, fmt.Sprintf("array shorter than minItems %d", *s.MinItems))
	}
	if s.MaxItems != nil && len(arr) > *s.MaxItems {
		return fail(path, fmt.Sprintf("array longer than maxItems %d", *s.MaxItems))
	}
	if s.UniqueItems {
		for i := 0; i < len(arr); i++ {
			for j := i + 1; j < len(arr); j++ {
				if deepEqual(arr[i], arr[j]) {
					return fail(path, "array items must be unique")
				}
			}
		}
	}
	if s.Items != nil {
		for i, item := range arr {
			if err := validateAt(s.Items, item, fmt.Sprintf("%s/%d", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateObject(s Object, data interface{}, path string) error {
	obj, ok := data.(map[string]interface{})
	if !ok {
		return fail(path, "expected object")
	}
	for _, req := range s.Required {
		if _, ok := obj[req]; !ok {
			return fail(joinPath(path, req), "required property missing")
		}
	}
	for key, deps := range s.DependentRequired {
		if _, present := obj[key]; !present {
			continue
		}
		for _, dep := range deps {
			if _, ok := obj[dep]; !ok {
				return fail(joinPath(path, dep), fmt.Sprintf("required because %q is present", key))
			}
		}
	}
	if s.AdditionalProperties != nil && !*s.AdditionalProperties {
		for key := range obj {
			if _, declared := s.Properties[key]; !declared {
				return fail(joinPath(path, key), "additional property not allowed")
			}
		}
	}
	for key, propSchema := range s.Properties {
		val, present := obj[key]
		if !present {
			continue
		}
		if err := validateAt(propSchema, val, joinPath(path, key)); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(path, segment string) string {
	return path + "/" + escapePointer(segment)
}

func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	s = strings.ReplaceAll(s, "/", "~1")
	return s
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func deepEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}
