package formula

// NodePosition represents the character range an expression was parsed from
type NodePosition struct {
	Start int
	End   int
}

// Expression is a node of a parsed formula. trees are immutable after
// parsing and may be evaluated concurrently from several goroutines.
type Expression interface {
	Position() NodePosition
	// Equal compares structure, ignoring positions.
	Equal(other Expression) bool
	String() string
}

// BinaryOp represents binary operators in AST nodes
type BinaryOp int

const (
	BinOpAdd BinaryOp = iota
	BinOpSubtract
	BinOpMultiply
	BinOpDivide
	BinOpPower
	BinOpConcat
	BinOpEqual
	BinOpNotEqual
	BinOpLess
	BinOpLessEqual
	BinOpGreater
	BinOpGreaterEqual
	BinOpUnion
	BinOpIntersect
)

var binaryOpText = map[BinaryOp]string{
	BinOpAdd:          "+",
	BinOpSubtract:     "-",
	BinOpMultiply:     "*",
	BinOpDivide:       "/",
	BinOpPower:        "^",
	BinOpConcat:       "&",
	BinOpEqual:        "=",
	BinOpNotEqual:     "<>",
	BinOpLess:         "<",
	BinOpLessEqual:    "<=",
	BinOpGreater:      ">",
	BinOpGreaterEqual: ">=",
	BinOpUnion:        ",",
	BinOpIntersect:    " ",
}

func (op BinaryOp) String() string { return binaryOpText[op] }

// UnaryOp represents unary operators in AST nodes
type UnaryOp int

const (
	UnaryOpPlus UnaryOp = iota
	UnaryOpMinus
	UnaryOpPercent
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryOpPlus:
		return "+"
	case UnaryOpMinus:
		return "-"
	}
	return "%"
}

// operator precedence, low to high
const (
	precComparison = 1
	precConcat     = 2
	precAdditive   = 3
	precMultiply   = 4
	precPower      = 5
	precUnion      = 6
	precIntersect  = 7
	precUnary      = 8
	precPrimary    = 9
)

func (op BinaryOp) precedence() int {
	switch op {
	case BinOpEqual, BinOpNotEqual, BinOpLess, BinOpLessEqual, BinOpGreater, BinOpGreaterEqual:
		return precComparison
	case BinOpConcat:
		return precConcat
	case BinOpAdd, BinOpSubtract:
		return precAdditive
	case BinOpMultiply, BinOpDivide:
		return precMultiply
	case BinOpPower:
		return precPower
	case BinOpUnion:
		return precUnion
	case BinOpIntersect:
		return precIntersect
	}
	return precPrimary
}

func (op BinaryOp) rightAssociative() bool { return op == BinOpPower }

// LiteralExpr is a constant: number, text, boolean, error or blank
type LiteralExpr struct {
	Value Value
	Pos   NodePosition
}

// NameExpr is a defined name, optionally sheet scoped
type NameExpr struct {
	Sheet *SheetRef
	Name  string
	Pos   NodePosition
}

// ReferenceExpr is a cell or range reference
type ReferenceExpr struct {
	Ref Reference
	Pos NodePosition
}

// StructuredReferenceExpr is a table reference such as Table1[Price]
type StructuredReferenceExpr struct {
	Ref StructuredReference
	Pos NodePosition
}

// FunctionCallExpr calls a function. Name is upper case.
type FunctionCallExpr struct {
	Name string
	Args []Expression
	Pos  NodePosition
}

// ArrayLiteralExpr is an inline array {1,2;3,4}
type ArrayLiteralExpr struct {
	Rows [][]Expression
	Pos  NodePosition
}

// UnaryExpr applies a prefix sign or the postfix percent operator
type UnaryExpr struct {
	Op      UnaryOp
	Operand Expression
	Pos     NodePosition
}

// BinaryExpr combines two operands
type BinaryExpr struct {
	Op    BinaryOp
	Left  Expression
	Right Expression
	Pos   NodePosition
}

func (e *LiteralExpr) Position() NodePosition             { return e.Pos }
func (e *NameExpr) Position() NodePosition                { return e.Pos }
func (e *ReferenceExpr) Position() NodePosition           { return e.Pos }
func (e *StructuredReferenceExpr) Position() NodePosition { return e.Pos }
func (e *FunctionCallExpr) Position() NodePosition        { return e.Pos }
func (e *ArrayLiteralExpr) Position() NodePosition        { return e.Pos }
func (e *UnaryExpr) Position() NodePosition               { return e.Pos }
func (e *BinaryExpr) Position() NodePosition              { return e.Pos }

func (e *LiteralExpr) Equal(other Expression) bool {
	o, ok := other.(*LiteralExpr)
	return ok && e.Value.Equal(o.Value)
}

func (e *NameExpr) Equal(other Expression) bool {
	o, ok := other.(*NameExpr)
	return ok && e.Sheet.equal(o.Sheet) && equalFoldASCII(e.Name, o.Name)
}

func (e *ReferenceExpr) Equal(other Expression) bool {
	o, ok := other.(*ReferenceExpr)
	return ok && e.Ref.Equal(o.Ref)
}

func (e *StructuredReferenceExpr) Equal(other Expression) bool {
	o, ok := other.(*StructuredReferenceExpr)
	return ok && e.Ref.Equal(o.Ref)
}

func (e *FunctionCallExpr) Equal(other Expression) bool {
	o, ok := other.(*FunctionCallExpr)
	if !ok || e.Name != o.Name || len(e.Args) != len(o.Args) {
		return false
	}
	for i := range e.Args {
		if !e.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

func (e *ArrayLiteralExpr) Equal(other Expression) bool {
	o, ok := other.(*ArrayLiteralExpr)
	if !ok || len(e.Rows) != len(o.Rows) {
		return false
	}
	for r := range e.Rows {
		if len(e.Rows[r]) != len(o.Rows[r]) {
			return false
		}
		for c := range e.Rows[r] {
			if !e.Rows[r][c].Equal(o.Rows[r][c]) {
				return false
			}
		}
	}
	return true
}

func (e *UnaryExpr) Equal(other Expression) bool {
	o, ok := other.(*UnaryExpr)
	return ok && e.Op == o.Op && e.Operand.Equal(o.Operand)
}

func (e *BinaryExpr) Equal(other Expression) bool {
	o, ok := other.(*BinaryExpr)
	return ok && e.Op == o.Op && e.Left.Equal(o.Left) && e.Right.Equal(o.Right)
}

func (e *LiteralExpr) String() string             { return Format(e, nil) }
func (e *NameExpr) String() string                { return Format(e, nil) }
func (e *ReferenceExpr) String() string           { return Format(e, nil) }
func (e *StructuredReferenceExpr) String() string { return Format(e, nil) }
func (e *FunctionCallExpr) String() string        { return Format(e, nil) }
func (e *ArrayLiteralExpr) String() string        { return Format(e, nil) }
func (e *UnaryExpr) String() string               { return Format(e, nil) }
func (e *BinaryExpr) String() string              { return Format(e, nil) }

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'a' && ca <= 'z' {
			ca -= 'a' - 'A'
		}
		if cb >= 'a' && cb <= 'z' {
			cb -= 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Walk visits every node depth first, stopping early when fn returns false
func Walk(e Expression, fn func(Expression) bool) bool {
	if !fn(e) {
		return false
	}
	switch n := e.(type) {
	case *FunctionCallExpr:
		for _, a := range n.Args {
			if !Walk(a, fn) {
				return false
			}
		}
	case *ArrayLiteralExpr:
		for _, row := range n.Rows {
			for _, c := range row {
				if !Walk(c, fn) {
					return false
				}
			}
		}
	case *UnaryExpr:
		return Walk(n.Operand, fn)
	case *BinaryExpr:
		return Walk(n.Left, fn) && Walk(n.Right, fn)
	}
	return true
}
