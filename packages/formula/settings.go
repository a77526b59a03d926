package formula

import (
	"fmt"

	"golang.org/x/text/language"
)

const (
	defaultParseDepth     = 512
	defaultEvalDepth      = 1024
	defaultPrecisionDigit = 15
)

// ParseOptions controls tokenizing and parsing.
type ParseOptions struct {
	// ReferenceMode selects A1 or R1C1 cell notation.
	ReferenceMode AddressMode
	// DecimalSeparator is '.' (default) or ','.
	DecimalSeparator rune
	// ArgumentSeparator is ',' (default) or ';'. it also acts as the union
	// operator inside parentheses.
	ArgumentSeparator rune
	// DisallowLeadingEquals rejects a leading "=" instead of skipping it.
	DisallowLeadingEquals bool
	// MaxDepth bounds expression nesting (default 512).
	MaxDepth int
}

// FormatOptions controls rendering of an expression back to text.
type FormatOptions struct {
	// IncludeLeadingEquals prefixes the output with "=".
	IncludeLeadingEquals bool
	// DecimalSeparator is '.' (default) or ','.
	DecimalSeparator rune
	// ArgumentSeparator is ',' (default) or ';'.
	ArgumentSeparator rune
}

// DateSystem selects the serial date epoch
type DateSystem uint8

const (
	// DateSystem1900 counts from 1900-01-01 = 1 and keeps the fictitious
	// 1900-02-29 (serial 60).
	DateSystem1900 DateSystem = iota
	// DateSystem1904 counts from 1904-01-01 = 0.
	DateSystem1904
)

func (d DateSystem) String() string {
	if d == DateSystem1904 {
		return "1904"
	}
	return "1900"
}

// CalculationSettings are workbook-wide evaluation settings. they are passed
// explicitly with every evaluation.
type CalculationSettings struct {
	DateSystem DateSystem
	// Culture drives text comparison, case mapping and number output. the
	// zero value is the root (invariant) culture.
	Culture language.Tag
	// PrecisionDigits is the number of significant digits arithmetic results
	// are rounded to (default 15). a negative value disables rounding.
	PrecisionDigits int
	// MaxDepth overrides the evaluator nesting limit when positive.
	MaxDepth int
}

// DefaultCalculationSettings returns the settings used when none are given
func DefaultCalculationSettings() CalculationSettings {
	return CalculationSettings{PrecisionDigits: defaultPrecisionDigit}
}

// normalize normalizes the ParseOptions.
func (o *ParseOptions) normalize() ParseOptions {
	if o == nil {
		return ParseOptions{DecimalSeparator: '.', ArgumentSeparator: ',', MaxDepth: defaultParseDepth}
	}

	out := *o
	if out.DecimalSeparator == 0 {
		out.DecimalSeparator = '.'
	}
	if out.ArgumentSeparator == 0 {
		out.ArgumentSeparator = ','
		if out.DecimalSeparator == ',' {
			out.ArgumentSeparator = ';'
		}
	}
	if out.MaxDepth <= 0 {
		out.MaxDepth = defaultParseDepth
	}

	return out
}

func (o ParseOptions) validate() error {
	return validateSeparators(o.DecimalSeparator, o.ArgumentSeparator)
}

// normalize normalizes the FormatOptions.
func (o *FormatOptions) normalize() FormatOptions {
	if o == nil {
		return FormatOptions{DecimalSeparator: '.', ArgumentSeparator: ','}
	}

	out := *o
	if out.DecimalSeparator == 0 {
		out.DecimalSeparator = '.'
	}
	if out.ArgumentSeparator == 0 {
		out.ArgumentSeparator = ','
		if out.DecimalSeparator == ',' {
			out.ArgumentSeparator = ';'
		}
	}

	return out
}

func (o FormatOptions) validate() error {
	return validateSeparators(o.DecimalSeparator, o.ArgumentSeparator)
}

func validateSeparators(decimal, argument rune) error {
	if decimal != '.' && decimal != ',' {
		return fmt.Errorf("%w: decimal separator %q", ErrInvalidOptions, decimal)
	}
	if argument != ',' && argument != ';' {
		return fmt.Errorf("%w: argument separator %q", ErrInvalidOptions, argument)
	}
	if decimal == argument {
		return fmt.Errorf("%w: decimal and argument separators are both %q", ErrInvalidOptions, decimal)
	}
	return nil
}

// normalize fills unset fields with defaults
func (s *CalculationSettings) normalize() CalculationSettings {
	if s == nil {
		return DefaultCalculationSettings()
	}

	out := *s
	if out.PrecisionDigits == 0 {
		out.PrecisionDigits = defaultPrecisionDigit
	}

	return out
}

// arrayColumnSeparator is the column separator inside array literals. it
// follows the argument separator, except that with ';' arguments the
// column separator becomes '\'.
func arrayColumnSeparator(argument rune) rune {
	if argument == ';' {
		return '\\'
	}
	return ','
}
