// Package typemap maps source property descriptors to target data types and
// complex type annotations.
package typemap

import (
	"strings"

	"github.com/crmoraes/nga/internal/models"
	"github.com/crmoraes/nga/internal/rules"
)

// Descriptor is the type information of one source property.
type Descriptor struct {
	Type  string
	Items *Descriptor
	// Hint is an explicit complex type name supplied by the source, if any.
	Hint string
}

type Mapper struct {
	tm rules.TypeMappings
}

func New(r *rules.Rules) *Mapper {
	return &Mapper{tm: r.TypeMappings}
}

// Resolve maps d to a target type. Arrays recurse into their items; an array
// without items is list[object]. Unknown types fall back to the default.
func (m *Mapper) Resolve(d Descriptor) models.DataType {
	typ := strings.ToLower(strings.TrimSpace(d.Type))
	if typ == "" {
		typ = "object"
	}
	if typ == "array" {
		if d.Items == nil {
			return models.ListOf(models.TypeObject)
		}
		item := m.Resolve(*d.Items)
		if f := m.tm.Complex["array"]; strings.Contains(f, "{itemType}") {
			return models.DataType(strings.ReplaceAll(f, "{itemType}", string(item)))
		}
		return models.ListOf(item)
	}
	if m.tm.RichTextType != "" && strings.EqualFold(d.Hint, m.tm.RichTextType) {
		return models.TypeObject
	}
	if mapped, ok := m.tm.Primitive[typ]; ok && mapped != "" {
		return models.DataType(mapped)
	}
	if mapped, ok := m.tm.Complex[typ]; ok && mapped != "" {
		return models.DataType(mapped)
	}
	return models.DataType(m.tm.Default)
}

// ComplexTypeName returns the annotation for a resolved type. list[object]
// always gets the record info name, whatever the hint says.
func (m *Mapper) ComplexTypeName(t models.DataType, hint string) string {
	switch {
	case t == models.ListOf(models.TypeObject):
		return m.tm.RecordInfoType
	case t == models.TypeObject:
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
		return m.tm.RecordInfoType
	case t == models.TypeString:
		return m.tm.TextType
	case t == models.TypeNumber:
		return m.tm.NumberType
	case t == models.TypeBoolean:
		return m.tm.BooleanType
	}
	return ""
}

// Normalize maps a type written as a string, such as "integer" or
// "list[string]", to a target type.
func (m *Mapper) Normalize(s string) models.DataType {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "list[") && strings.HasSuffix(lower, "]") {
		return models.ListOf(m.Normalize(s[len("list[") : len(s)-1]))
	}
	return m.Resolve(Descriptor{Type: s})
}
