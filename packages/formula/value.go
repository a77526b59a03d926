package formula

import (
	"math"
	"strings"
)

// ErrorCode represents standard spreadsheet error codes following
// Excel conventions. the numeric values match ERROR.TYPE.
type ErrorCode uint8

const (
	ErrorCodeNull  ErrorCode = 1  // #NULL! - no cells in common between ranges
	ErrorCodeDiv0  ErrorCode = 2  // #DIV/0! - division by zero
	ErrorCodeValue ErrorCode = 3  // #VALUE! - wrong type of argument or operand
	ErrorCodeRef   ErrorCode = 4  // #REF! - invalid cell reference
	ErrorCodeName  ErrorCode = 5  // #NAME? - unrecognized function or name
	ErrorCodeNum   ErrorCode = 6  // #NUM! - invalid numeric domain or no convergence
	ErrorCodeNA    ErrorCode = 7  // #N/A - value not available, lookup miss
	ErrorCodeSpill ErrorCode = 9  // #SPILL! - blocked spill, produced by the grid layer
	ErrorCodeCalc  ErrorCode = 14 // #CALC! - dynamic array would spill into nothing
)

// ErrorMapper maps error code numbers to their string representations
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeNull:  "#NULL!",
	ErrorCodeDiv0:  "#DIV/0!",
	ErrorCodeValue: "#VALUE!",
	ErrorCodeRef:   "#REF!",
	ErrorCodeName:  "#NAME?",
	ErrorCodeNum:   "#NUM!",
	ErrorCodeNA:    "#N/A",
	ErrorCodeSpill: "#SPILL!",
	ErrorCodeCalc:  "#CALC!",
}

func (c ErrorCode) String() string {
	if s, ok := ErrorMapper[c]; ok {
		return s
	}
	return "#ERROR!"
}

// ParseErrorCode maps an error literal such as "#div/0!" to its code. the
// match is case-insensitive.
func ParseErrorCode(s string) (ErrorCode, bool) {
	upper := strings.ToUpper(s)
	for code, text := range ErrorMapper {
		if text == upper {
			return code, true
		}
	}
	return 0, false
}

// ValueKind is the tag of a Value
type ValueKind uint8

const (
	KindBlank ValueKind = iota
	KindNumber
	KindText
	KindBoolean
	KindError
	KindArray
	KindReference
)

var kindNames = [...]string{"Blank", "Number", "Text", "Boolean", "Error", "Array", "Reference"}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Value is the tagged union every formula evaluates to. the zero Value is
// Blank. values are immutable once constructed and safe to share.
type Value struct {
	kind  ValueKind
	num   float64 // number payload, 1/0 for booleans
	text  string
	code  ErrorCode
	array *Array
	areas []Reference
}

// Number creates a numeric value
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Text creates a text value
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Boolean creates a logical value
func Boolean(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.num = 1
	}
	return v
}

// ErrorValue creates an error value
func ErrorValue(code ErrorCode) Value {
	return Value{kind: KindError, code: code}
}

// Blank returns the empty value
func Blank() Value {
	return Value{}
}

// ArrayValue wraps an array. a nil array is treated as blank.
func ArrayValue(a *Array) Value {
	if a == nil {
		return Value{}
	}
	return Value{kind: KindArray, array: a}
}

// ReferenceValue creates an unresolved reference value. more than one area
// is produced by the union operator.
func ReferenceValue(areas ...Reference) Value {
	if len(areas) == 0 {
		return ErrorValue(ErrorCodeRef)
	}
	cp := make([]Reference, len(areas))
	copy(cp, areas)
	return Value{kind: KindReference, areas: cp}
}

func (v Value) Kind() ValueKind { return v.kind }

func (v Value) IsBlank() bool     { return v.kind == KindBlank }
func (v Value) IsNumber() bool    { return v.kind == KindNumber }
func (v Value) IsText() bool      { return v.kind == KindText }
func (v Value) IsBoolean() bool   { return v.kind == KindBoolean }
func (v Value) IsError() bool     { return v.kind == KindError }
func (v Value) IsArray() bool     { return v.kind == KindArray }
func (v Value) IsReference() bool { return v.kind == KindReference }

// Num returns the numeric payload. booleans report 1 or 0.
func (v Value) Num() float64 { return v.num }

// Str returns the text payload
func (v Value) Str() string { return v.text }

// Bool returns the boolean payload
func (v Value) Bool() bool { return v.kind == KindBoolean && v.num != 0 }

// Code returns the error code of an error value
func (v Value) Code() ErrorCode { return v.code }

// Array returns the array payload, nil for other kinds
func (v Value) Array() *Array { return v.array }

// Areas returns the reference areas of a reference value
func (v Value) Areas() []Reference {
	if v.kind != KindReference {
		return nil
	}
	out := make([]Reference, len(v.areas))
	copy(out, v.areas)
	return out
}

// Equal reports structural equality. numbers compare exactly, NaN equals
// NaN so that identical trees compare equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBlank:
		return true
	case KindNumber:
		return v.num == o.num || (math.IsNaN(v.num) && math.IsNaN(o.num))
	case KindBoolean:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	case KindError:
		return v.code == o.code
	case KindArray:
		return v.array.Equal(o.array)
	case KindReference:
		if len(v.areas) != len(o.areas) {
			return false
		}
		for i := range v.areas {
			if !v.areas[i].Equal(o.areas[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value the way a cell would display it with the
// General format
func (v Value) String() string {
	switch v.kind {
	case KindBlank:
		return ""
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.text
	case KindBoolean:
		if v.num != 0 {
			return "TRUE"
		}
		return "FALSE"
	case KindError:
		return v.code.String()
	case KindArray:
		return v.array.String()
	case KindReference:
		parts := make([]string, len(v.areas))
		for i, r := range v.areas {
			parts[i] = r.String()
		}
		return strings.Join(parts, ",")
	}
	return ""
}
