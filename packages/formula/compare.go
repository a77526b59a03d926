package formula

import (
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// TextComparer compares text case-insensitively using the collation rules
// of a culture. a comparer is not safe for concurrent use; each evaluation
// creates its own.
type TextComparer struct {
	collator *collate.Collator
}

// NewTextComparer creates a comparer for the culture
func NewTextComparer(tag language.Tag) *TextComparer {
	return &TextComparer{collator: collate.New(tag, collate.IgnoreCase, collate.IgnoreWidth)}
}

// Compare returns -1, 0 or 1
func (c *TextComparer) Compare(a, b string) int {
	if a == b {
		return 0
	}
	if isASCII(a) && isASCII(b) {
		// plain ascii letters and digits collate like their lower case form
		la, lb := strings.ToLower(a), strings.ToLower(b)
		if la == lb {
			return 0
		}
		if isAlnum(la) && isAlnum(lb) {
			return strings.Compare(la, lb)
		}
	}
	return c.collator.CompareString(a, b)
}

// Equal reports case-insensitive equality
func (c *TextComparer) Equal(a, b string) bool {
	return c.Compare(a, b) == 0
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !isDigit(ch) && !(ch >= 'a' && ch <= 'z') {
			return false
		}
	}
	return true
}

// kindRank orders kinds the way comparisons do: numbers < text < booleans
// < errors
func kindRank(v Value) int {
	switch v.kind {
	case KindNumber:
		return 1
	case KindText:
		return 2
	case KindBoolean:
		return 3
	case KindError:
		return 4
	}
	return 0
}

// compareValues orders two scalars. a blank takes the zero value of the
// other operand's kind.
func compareValues(a, b Value, tc *TextComparer) int {
	if a.IsBlank() && b.IsBlank() {
		return 0
	}
	if a.IsBlank() {
		a = zeroOfKind(b)
	}
	if b.IsBlank() {
		b = zeroOfKind(a)
	}
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return cmpInt(ra, rb)
	}
	switch a.kind {
	case KindNumber, KindBoolean:
		return cmpFloat(a.num, b.num)
	case KindText:
		return tc.Compare(a.text, b.text)
	case KindError:
		return cmpInt(int(a.code), int(b.code))
	}
	return 0
}

func zeroOfKind(v Value) Value {
	switch v.kind {
	case KindText:
		return Text("")
	case KindBoolean:
		return Boolean(false)
	}
	return Number(0)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
