package models

import (
	"slices"
	"time"
)

// ValueKind tags the variant held by a CellValue.
type ValueKind string

const (
	ValueKindText   ValueKind = "text"
	ValueKindNumber ValueKind = "number"
	ValueKindDate   ValueKind = "date"
	ValueKindOption ValueKind = "option"
	ValueKindFile   ValueKind = "file"
	ValueKindBool   ValueKind = "bool"
	ValueKindEmpty  ValueKind = "empty"
)

// CellValue is a tagged variant over the supported column data types.
// Exactly one of the typed fields is meaningful, selected by Kind.
type CellValue struct {
	Kind   ValueKind  `json:"kind" bson:"kind"`
	Text   string     `json:"text,omitempty" bson:"text,omitempty"`
	Number float64    `json:"number,omitempty" bson:"number,omitempty"`
	Date   *time.Time `json:"date,omitempty" bson:"date,omitempty"`
	Option string     `json:"option,omitempty" bson:"option,omitempty"`
	FileID string     `json:"fileId,omitempty" bson:"fileId,omitempty"`
	Bool   bool       `json:"bool,omitempty" bson:"bool,omitempty"`
}

func TextValue(s string) CellValue       { return CellValue{Kind: ValueKindText, Text: s} }
func NumberValue(n float64) CellValue    { return CellValue{Kind: ValueKindNumber, Number: n} }
func DateValue(t time.Time) CellValue    { return CellValue{Kind: ValueKindDate, Date: &t} }
func OptionValue(o string) CellValue     { return CellValue{Kind: ValueKindOption, Option: o} }
func FileValue(id string) CellValue      { return CellValue{Kind: ValueKindFile, FileID: id} }
func BoolValue(b bool) CellValue         { return CellValue{Kind: ValueKindBool, Bool: b} }
func EmptyValue() CellValue              { return CellValue{Kind: ValueKindEmpty} }

// IsEmpty reports whether the cell holds no value.
func (v CellValue) IsEmpty() bool {
	return v.Kind == "" || v.Kind == ValueKindEmpty
}

// kindForColumn maps a column data type to the value kind it accepts.
var kindForColumn = map[ColumnDataType]ValueKind{
	ColumnTypeText:     ValueKindText,
	ColumnTypeNumber:   ValueKindNumber,
	ColumnTypeDate:     ValueKindDate,
	ColumnTypeDropdown: ValueKindOption,
	ColumnTypeFile:     ValueKindFile,
	ColumnTypeCheckbox: ValueKindBool,
}

// Accepts reports whether the value is valid for this column: the kind
// matches the column's data type, numeric/length bounds hold and dropdown
// options come from the declared list. Empty values are accepted for
// non-required columns.
func (c Column) Accepts(v CellValue) bool {
	if v.IsEmpty() {
		return !c.IsRequired
	}
	want, ok := kindForColumn[c.DataType]
	if !ok || v.Kind != want {
		return false
	}
	switch v.Kind {
	case ValueKindText:
		if c.MinLength != nil && len(v.Text) < *c.MinLength {
			return false
		}
		if c.MaxLength != nil && len(v.Text) > *c.MaxLength {
			return false
		}
	case ValueKindNumber:
		if c.Min != nil && v.Number < *c.Min {
			return false
		}
		if c.Max != nil && v.Number > *c.Max {
			return false
		}
	case ValueKindOption:
		return slices.Contains(c.DropdownOptions, v.Option)
	case ValueKindDate:
		return v.Date != nil
	case ValueKindFile:
		return v.FileID != ""
	}
	return true
}

// Compare orders two values of the same kind. Values of different kinds
// compare by kind name so sorting stays total.
func (v CellValue) Compare(other CellValue) int {
	if v.Kind != other.Kind {
		if v.Kind < other.Kind {
			return -1
		}
		return 1
	}
	switch v.Kind {
	case ValueKindNumber:
		switch {
		case v.Number < other.Number:
			return -1
		case v.Number > other.Number:
			return 1
		}
		return 0
	case ValueKindDate:
		if v.Date == nil || other.Date == nil {
			return 0
		}
		return v.Date.Compare(*other.Date)
	case ValueKindBool:
		if v.Bool == other.Bool {
			return 0
		}
		if !v.Bool {
			return -1
		}
		return 1
	case ValueKindOption:
		return compareStrings(v.Option, other.Option)
	case ValueKindFile:
		return compareStrings(v.FileID, other.FileID)
	default:
		return compareStrings(v.Text, other.Text)
	}
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
