package formula

import "iter"

// ValueResolver maps a reference to its current value. the reference is
// always normalized: coordinates are absolute and corners ordered. a single
// cell resolves to a scalar and a range to an Array. ok is false when the
// reference points at something that does not exist, which evaluates to
// #REF!.
type ValueResolver interface {
	ResolveReference(ctx *EvaluationContext, ref Reference) (Value, bool)
}

// ReferenceEnumerator is an optional capability of a ValueResolver that
// streams the values of a range without building an Array. empty cells may
// be skipped.
type ReferenceEnumerator interface {
	EnumerateReferenceValues(ctx *EvaluationContext, ref Reference) iter.Seq[Value]
}

// NameResolver is an optional capability that resolves defined names. the
// result may be a Reference value.
type NameResolver interface {
	ResolveName(ctx *EvaluationContext, sheet *SheetRef, name string) (Value, bool)
}

// StructuredReferenceResolver is an optional capability that resolves table
// references. the result may be a Reference value.
type StructuredReferenceResolver interface {
	ResolveStructuredReference(ctx *EvaluationContext, ref StructuredReference) (Value, bool)
}

// WorkbookContext carries workbook-wide state for an evaluation
type WorkbookContext struct {
	Settings CalculationSettings
}

// EvaluationContext describes where a formula is evaluated
type EvaluationContext struct {
	// Address is the cell holding the formula. relative R1C1 references and
	// implicit intersection are computed from it.
	Address CellAddress
	// Workbook holds the calculation settings; nil means defaults.
	Workbook *WorkbookContext
	// ImplicitIntersection reduces an array or range result to a single
	// value, as legacy spreadsheets do for non-array formulas.
	ImplicitIntersection bool
}

func (c *EvaluationContext) settings() CalculationSettings {
	if c == nil || c.Workbook == nil {
		return DefaultCalculationSettings()
	}
	return c.Workbook.Settings.normalize()
}

// noResolver resolves nothing; every reference becomes #REF!
type noResolver struct{}

func (noResolver) ResolveReference(*EvaluationContext, Reference) (Value, bool) {
	return Value{}, false
}
