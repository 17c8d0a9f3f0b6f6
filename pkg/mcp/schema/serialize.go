package schema

import "fmt"

// Serialize renders a Schema node as a JSON Schema document (the shape
// sent over the wire as Tool.InputSchema/OutputSchema).
func Serialize(s Schema) map[string]interface{} {
	switch v := s.(type) {
	case String:
		doc := map[string]interface{}{"type": "string"}
		if v.MinLength != nil {
			doc["minLength"] = *v.MinLength
		}
		if v.MaxLength != nil {
			doc["maxLength"] = *v.MaxLength
		}
		if v.Pattern != "" {
			doc["pattern"] = v.Pattern
		}
		if v.Format != "" {
			doc["format"] = v.Format
		}
		if len(v.Enum) > 0 {
			vals := make([]interface{}, len(v.Enum))
			for i, e := range v.Enum {
				vals[i] = e
			}
			doc["enum"] = vals
		}
		return doc
	case Number:
		doc := map[string]interface{}{"type": "number"}
		setFloatPtr(doc, "minimum", v.Minimum)
		setFloatPtr(doc, "maximum", v.Maximum)
		setFloatPtr(doc, "exclusiveMinimum", v.ExclusiveMinimum)
		setFloatPtr(doc, "exclusiveMaximum", v.ExclusiveMaximum)
		setFloatPtr(doc, "multipleOf", v.MultipleOf)
		return doc
	case Integer:
		doc := map[string]interface{}{"type": "integer"}
		setIntPtr(doc, "minimum", v.Minimum)
		setIntPtr(doc, "maximum", v.Maximum)
		setIntPtr(doc, "exclusiveMinimum", v.ExclusiveMinimum)
		setIntPtr(doc, "exclusiveMaximum", v.ExclusiveMaximum)
		setIntPtr(doc, "multipleOf", v.MultipleOf)
		return doc
	case Boolean:
		return map[string]interface{}{"type": "boolean"}
	case Null:
		return map[string]interface{}{"type": "null"}
	case Array:
		doc := map[string]interface{}{"type": "array"}
		if v.Items != nil {
			doc["items"] = Serialize(v.Items)
		}
		if v.MinItems != nil {
			doc["minItems"] = *v.MinItems
		}
		if v.MaxItems != nil {
			doc["maxItems"] = *v.MaxItems
		}
		if v.UniqueItems {
			doc["uniqueItems"] = true
		}
		return doc
	case Object:
		doc := map[string]interface{}{"type": "object"}
		if len(v.Properties) > 0 {
			props := make(map[string]interface{}, len(v.Properties))
			for name, prop := range v.Properties {
				props[name] = Serialize(prop)
			}
			doc["properties"] = props
		}
		if len(v.Required) > 0 {
			doc["required"] = append([]string(nil), v.Required...)
		}
		if v.AdditionalProperties != nil {
			doc["additionalProperties"] = *v.AdditionalProperties
		}
		if len(v.DependentRequired) > 0 {
			dr := make(map[string]interface{}, len(v.DependentRequired))
			for k, vs := range v.DependentRequired {
				dr[k] = append([]string(nil), vs...)
			}
			doc["dependentRequired"] = dr
		}
		return doc
	case Enum:
		return map[string]interface{}{"enum": append([]interface{}(nil), v.Values...)}
	case AllOf:
		return map[string]interface{}{"allOf": serializeAll(v.Schemas)}
	case AnyOf:
		return map[string]interface{}{"anyOf": serializeAll(v.Schemas)}
	case OneOf:
		return map[string]interface{}{"oneOf": serializeAll(v.Schemas)}
	case Not:
		return map[string]interface{}{"not": Serialize(v.Schema)}
	case Any:
		return map[string]interface{}{}
	default:
		return map[string]interface{}{}
	}
}

func serializeAll(schemas []Schema) []interface{} {
	out := make([]interface{}, len(schemas))
	for i, s := range schemas {
		out[i] = Serialize(s)
	}
	return out
}

func setFloatPtr(doc map[string]interface{}, key string, v *float64) {
	if v != nil {
		doc[key] = *v
	}
}

func setIntPtr(doc map[string]interface{}, key string, v *int64) {
	if v != nil {
		doc[key] = *v
	}
}

// Parse reconstructs a Schema node from a JSON Schema document. It is
// the inverse of Serialize for every schema this package can produce.
func Parse(doc map[string]interface{}) (Schema, error) {
	if combinator, s, err := parseCombinator(doc); combinator {
		return s, err
	}
	if raw, ok := doc["enum"]; ok && doc["type"] == nil {
		vals, ok := raw.([]interface{})
		if !ok {
			return nil, fmt.Errorf("schema: enum must be an array")
		}
		return Enum{Values: vals}, nil
	}

	typeVal, _ := doc["type"].(string)
	switch typeVal {
	case "string":
		return parseString(doc), nil
	case "number":
		return parseNumber(doc), nil
	case "integer":
		return parseInteger(doc), nil
	case "boolean":
		return Boolean{}, nil
	case "null":
		return Null{}, nil
	case "array":
		return parseArray(doc)
	case "object":
		return parseObject(doc)
	case "":
		return Any{}, nil
	default:
		return nil, fmt.Errorf("schema: unsupported type %q", typeVal)
	}
}

func parseCombinator(doc map[string]interface{}) (bool, Schema, error) {
	for key, ctor := range map[string]func([]Schema) Schema{
		"allOf": func(s []Schema) Schema { return AllOf{Schemas: s} },
		"anyOf": func(s []Schema) Schema { return AnyOf{Schemas: s} },
		"oneOf": func(s []Schema) Schema { return OneOf{Schemas: s} },
	} {
		raw, ok := doc[key]
		if !ok {
			continue
		}
		items, ok := raw.([]interface{})
		if !ok {
			return true, nil, fmt.Errorf("schema: %s must be an array", key)
		}
		schemas := make([]Schema, len(items))
		for i, item := range items {
			m, ok := item.(map[string]interface{})
			if !ok {
				return true, nil, fmt.Errorf("schema: %s[%d] must be an object", key, i)
			}
			s, err := Parse(m)
			if err != nil {
				return true, nil, err
			}
			schemas[i] = s
		}
		return true, ctor(schemas), nil
	}
	if raw, ok := doc["not"]; ok {
		m, ok := raw.(map[string]interface{})
		if !ok {
			return true, nil, fmt.Errorf("schema: not must be an object")
		}
		inner, err := Parse(m)
		if err != nil {
			return true, nil, err
		}
		return true, Not{Schema: inner}, nil
	}
	return false, nil, nil
}

func parseString(doc map[string]interface{}) Schema {
	s := String{}
	if v, ok := doc["minLength"]; ok {
		n := toInt(v)
		s.MinLength = &n
	}
	if v, ok := doc["maxLength"]; ok {
		n := toInt(v)
		s.MaxLength = &n
	}
	if v, ok := doc["pattern"].(string); ok {
		s.Pattern = v
	}
	if v, ok := doc["format"].(string); ok {
		s.Format = v
	}
	if v, ok := doc["enum"].([]interface{}); ok {
		for _, e := range v {
			if str, ok := e.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	return s
}

func parseNumber(doc map[string]interface{}) Schema {
	n := Number{}
	n.Minimum = toFloatPtr(doc["minimum"])
	n.Maximum = toFloatPtr(doc["maximum"])
	n.ExclusiveMinimum = toFloatPtr(doc["exclusiveMinimum"])
	n.ExclusiveMaximum = toFloatPtr(doc["exclusiveMaximum"])
	n.MultipleOf = toFloatPtr(doc["multipleOf"])
	return n
}

func parseInteger(doc map[string]interface{}) Schema {
	n := Integer{}
	n.Minimum = toInt64Ptr(doc["minimum"])
	n.Maximum = toInt64Ptr(doc["maximum"])
	n.ExclusiveMinimum = toInt64Ptr(doc["exclusiveMinimum"])
	n.ExclusiveMaximum = toInt64Ptr(doc["exclusiveMaximum"])
	n.MultipleOf = toInt64Ptr(doc["multipleOf"])
	return n
}

func parseArray(doc map[string]interface{}) (Schema, error) {
	a := Array{}
	if raw, ok := doc["items"].(map[string]interface{}); ok {
		items, err := Parse(raw)
		if err != nil {
			return nil, err
		}
		a.Items = items
	}
	if v, ok := doc["minItems"]; ok {
		n := toInt(v)
		a.MinItems = &n
	}
	if v, ok := doc["maxItems"]; ok {
		n := toInt(v)
		a.MaxItems = &n
	}
	if v, ok := doc["uniqueItems"].(bool); ok {
		a.UniqueItems = v
	}
	return a, nil
}

func parseObject(doc map[string]interface{}) (Schema, error) {
	o := Object{Properties: map[string]Schema{}}
	if raw, ok := doc["properties"].(map[string]interface{}); ok {
		for name, propRaw := range raw {
			propDoc, ok := propRaw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("schema: properties.%s must be an object", name)
			}
			prop, err := Parse(propDoc)
			if err != nil {
				return nil, err
			}
			o.Properties[name] = prop
		}
	}
	switch raw := doc["required"].(type) {
	case []interface{}:
		for _, r := range raw {
			if s, ok := r.(string); ok {
				o.Required = append(o.Required, s)
			}
		}
	case []string:
		o.Required = append(o.Required, raw...)
	}
	if v, ok := doc["additionalProperties"].(bool); ok {
		o.AdditionalProperties = &v
	}
	if raw, ok := doc["dependentRequired"].(map[string]interface{}); ok {
		o.DependentRequired = map[string][]string{}
		for k, vs := range raw {
			if strs, ok := vs.([]string); ok {
				o.DependentRequired[k] = append(o.DependentRequired[k], strs...)
				continue
			}
			list, ok := vs.([]interface{})
			if !ok {
				continue
			}
			for _, v := range list {
				if s, ok := v.(string); ok {
					o.DependentRequired[k] = append(o.DependentRequired[k], s)
				}
			}
		}
	}
	return o, nil
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloatPtr(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	default:
		return nil
	}
}

func toInt64Ptr(v interface{}) *int64 {
	if v == nil {
		return nil
	}
	switch n := v.(type) {
	case int64:
		return &n
	case int:
		i := int64(n)
		return &i
	case float64:
		i := int64(n)
		return &i
	default:
		return nil
	}
}
