package models

import "strings"

// DataType is a target type string: a primitive, "object", or list[T].
type DataType string

const (
	TypeString  DataType = "string"
	TypeNumber  DataType = "number"
	TypeBoolean DataType = "boolean"
	TypeObject  DataType = "object"
)

func ListOf(elem DataType) DataType {
	return DataType("list[" + string(elem) + "]")
}

// Elem returns the element type of a list, or "" when t is not a list.
func (t DataType) Elem() DataType {
	s := string(t)
	if strings.HasPrefix(s, "list[") && strings.HasSuffix(s, "]") {
		return DataType(s[len("list[") : len(s)-1])
	}
	return ""
}

func (t DataType) IsList() bool {
	return t.Elem() != ""
}

// IsObjectLike is true for object and for lists whose element is object-like.
func (t DataType) IsObjectLike() bool {
	if t == TypeObject {
		return true
	}
	if elem := t.Elem(); elem != "" {
		return elem.IsObjectLike()
	}
	return false
}
