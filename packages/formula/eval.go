package formula

import (
	"iter"
	"math"
	"math/rand/v2"
	"sync"
	"time"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (w *WallClock) Now() time.Time {
	return time.Now()
}

// RandomGenerator interface provides random number generation for testing.
// implementations must be safe for concurrent use.
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (d *DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// SeededRandomGenerator is a reproducible generator. access is serialized
// with a mutex.
type SeededRandomGenerator struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededRandomGenerator creates a generator with a fixed seed
func NewSeededRandomGenerator(seed uint64) *SeededRandomGenerator {
	return &SeededRandomGenerator{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *SeededRandomGenerator) Float64() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.r.Float64()
}

// Evaluator walks expression trees. it holds no per-evaluation state and may
// be shared between goroutines.
type Evaluator struct {
	registry *Registry
	clock    Clock
	rng      RandomGenerator
	maxDepth int
}

// EvaluatorOption configures an Evaluator
type EvaluatorOption func(*Evaluator)

// WithRegistry sets the function registry (default: DefaultRegistry)
func WithRegistry(r *Registry) EvaluatorOption {
	return func(ev *Evaluator) { ev.registry = r }
}

// WithClock sets the clock used by NOW and TODAY
func WithClock(c Clock) EvaluatorOption {
	return func(ev *Evaluator) { ev.clock = c }
}

// WithRandom sets the random source used by RAND and RANDBETWEEN
func WithRandom(r RandomGenerator) EvaluatorOption {
	return func(ev *Evaluator) { ev.rng = r }
}

// WithMaxDepth bounds the evaluation nesting depth (default 1024). deeper
// trees evaluate to #NUM!.
func WithMaxDepth(n int) EvaluatorOption {
	return func(ev *Evaluator) { ev.maxDepth = n }
}

// NewEvaluator creates an evaluator
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	ev := &Evaluator{
		clock:    &WallClock{},
		rng:      &DefaultRandomGenerator{},
		maxDepth: defaultEvalDepth,
	}
	for _, o := range opts {
		o(ev)
	}
	if ev.registry == nil {
		ev.registry = DefaultRegistry()
	}
	if ev.maxDepth <= 0 {
		ev.maxDepth = defaultEvalDepth
	}
	return ev
}

var defaultEvaluator = sync.OnceValue(func() *Evaluator { return NewEvaluator() })

// Evaluate evaluates expr with the default evaluator
func Evaluate(expr Expression, ctx *EvaluationContext, resolver ValueResolver) Value {
	return defaultEvaluator().Evaluate(expr, ctx, resolver)
}

// Registry returns the function registry in use
func (ev *Evaluator) Registry() *Registry { return ev.registry }

// Evaluate evaluates expr at ctx.Address. the result is never a Reference:
// references are resolved through resolver. evaluation never panics; all
// failures are error values.
func (ev *Evaluator) Evaluate(expr Expression, ctx *EvaluationContext, resolver ValueResolver) Value {
	if ctx == nil {
		ctx = &EvaluationContext{}
	}
	if resolver == nil {
		resolver = noResolver{}
	}
	cc := ev.newCallContext(ctx, resolver)
	v := cc.evaluate(expr)
	if ctx.ImplicitIntersection {
		return cc.ImplicitIntersect(v)
	}
	return cc.Deref(v)
}

func (ev *Evaluator) newCallContext(ctx *EvaluationContext, resolver ValueResolver) *CallContext {
	settings := ctx.settings()
	maxDepth := ev.maxDepth
	if settings.MaxDepth > 0 {
		maxDepth = settings.MaxDepth
	}
	return &CallContext{
		Context:   ctx,
		Settings:  settings,
		Resolver:  resolver,
		evaluator: ev,
		maxDepth:  maxDepth,
	}
}

// CallContext is the per-evaluation state handed to functions. it is not
// safe for concurrent use.
type CallContext struct {
	Context  *EvaluationContext
	Settings CalculationSettings
	Resolver ValueResolver

	evaluator *Evaluator
	depth     int
	maxDepth  int
	comparer  *TextComparer
}

// Evaluator returns the evaluator running this call
func (cc *CallContext) Evaluator() *Evaluator { return cc.evaluator }

// Now returns the evaluator clock time
func (cc *CallContext) Now() time.Time { return cc.evaluator.clock.Now() }

// Random returns a value in [0, 1)
func (cc *CallContext) Random() float64 { return cc.evaluator.rng.Float64() }

// Comparer returns the culture text comparer for this evaluation
func (cc *CallContext) Comparer() *TextComparer {
	if cc.comparer == nil {
		cc.comparer = NewTextComparer(cc.Settings.Culture)
	}
	return cc.comparer
}

// Evaluate evaluates a sub-expression and resolves any reference result
func (cc *CallContext) Evaluate(e Expression) Value {
	return cc.Deref(cc.evaluate(e))
}

// EvaluateRaw evaluates a sub-expression keeping reference results
func (cc *CallContext) EvaluateRaw(e Expression) Value {
	return cc.evaluate(e)
}

func (cc *CallContext) evaluate(e Expression) Value {
	cc.depth++
	defer func() { cc.depth-- }()
	if cc.depth > cc.maxDepth {
		return ErrorValue(ErrorCodeNum)
	}

	switch n := e.(type) {
	case *LiteralExpr:
		return n.Value
	case *ReferenceExpr:
		ref, ok := n.Ref.Normalize(cc.Context.Address)
		if !ok {
			return ErrorValue(ErrorCodeRef)
		}
		return ReferenceValue(ref)
	case *NameExpr:
		return cc.resolveName(n)
	case *StructuredReferenceExpr:
		if sr, ok := cc.Resolver.(StructuredReferenceResolver); ok {
			if v, ok := sr.ResolveStructuredReference(cc.Context, n.Ref); ok {
				return cc.normalizeReferences(v)
			}
		}
		return ErrorValue(ErrorCodeRef)
	case *ArrayLiteralExpr:
		return cc.evaluateArrayLiteral(n)
	case *UnaryExpr:
		return cc.unary(n.Op, cc.Evaluate(n.Operand))
	case *BinaryExpr:
		return cc.evaluateBinary(n)
	case *FunctionCallExpr:
		return cc.call(n)
	}
	return ErrorValue(ErrorCodeValue)
}

func (cc *CallContext) resolveName(n *NameExpr) Value {
	nr, ok := cc.Resolver.(NameResolver)
	if !ok {
		return ErrorValue(ErrorCodeName)
	}
	v, ok := nr.ResolveName(cc.Context, n.Sheet, n.Name)
	if !ok {
		return ErrorValue(ErrorCodeName)
	}
	return cc.normalizeReferences(v)
}

// normalizeReferences anchors references produced by a resolver at the
// evaluating cell
func (cc *CallContext) normalizeReferences(v Value) Value {
	if !v.IsReference() {
		return v
	}
	areas := make([]Reference, len(v.areas))
	for i, r := range v.areas {
		nr, ok := r.Normalize(cc.Context.Address)
		if !ok {
			return ErrorValue(ErrorCodeRef)
		}
		areas[i] = nr
	}
	return ReferenceValue(areas...)
}

func (cc *CallContext) evaluateArrayLiteral(n *ArrayLiteralExpr) Value {
	rows := len(n.Rows)
	cols := len(n.Rows[0])
	values := make([]Value, 0, rows*cols)
	for _, row := range n.Rows {
		for _, elem := range row {
			values = append(values, cc.Evaluate(elem))
		}
	}
	return ArrayValue(newArrayNoCopy(rows, cols, values, nil))
}

func (cc *CallContext) call(n *FunctionCallExpr) Value {
	fn, ok := cc.evaluator.registry.TryGetFunction(n.Name)
	if !ok {
		return ErrorValue(ErrorCodeName)
	}
	if len(n.Args) < fn.MinArgs() || (fn.MaxArgs() >= 0 && len(n.Args) > fn.MaxArgs()) {
		return ErrorValue(ErrorCodeValue)
	}

	switch f := fn.(type) {
	case LazyFunction:
		return f.InvokeLazy(cc, n.Args)
	case EagerFunction:
		args := make([]Value, len(n.Args))
		for i, a := range n.Args {
			args[i] = cc.Evaluate(a)
		}
		return f.Invoke(cc, args)
	}
	return ErrorValue(ErrorCodeValue)
}

// Deref resolves a reference value. multi-area references cannot be
// resolved to a single value and give #VALUE!.
func (cc *CallContext) Deref(v Value) Value {
	if !v.IsReference() {
		return v
	}
	if len(v.areas) != 1 {
		return ErrorValue(ErrorCodeValue)
	}
	return cc.resolveArea(v.areas[0])
}

func (cc *CallContext) resolveArea(ref Reference) Value {
	v, ok := cc.Resolver.ResolveReference(cc.Context, ref)
	if !ok {
		return ErrorValue(ErrorCodeRef)
	}
	if v.IsArray() {
		if _, has := v.Array().Origin(); !has {
			v = ArrayValue(v.Array().WithOrigin(ref.TopLeft(cc.Context.Address.Sheet)))
		}
	}
	return v
}

// ImplicitIntersection reduces an array or range to the single cell
// sharing the row or column of the evaluating cell
func (cc *CallContext) ImplicitIntersect(v Value) Value {
	if v.IsReference() {
		if len(v.areas) != 1 {
			return ErrorValue(ErrorCodeValue)
		}
		ref := v.areas[0]
		at := cc.Context.Address
		row1, col1, row2, col2 := ref.Bounds()
		var row, col int
		switch {
		case row1 == row2 && col1 == col2:
			row, col = row1, col1
		case col1 == col2 && at.Row >= row1 && at.Row <= row2:
			row, col = at.Row, col1
		case row1 == row2 && at.Column >= col1 && at.Column <= col2:
			row, col = row1, at.Column
		default:
			return ErrorValue(ErrorCodeValue)
		}
		cell := CellReference("", row, col)
		cell.Sheet = ref.Sheet
		v = cc.resolveArea(cell)
	}
	if v.IsArray() {
		return ApplyImplicitIntersection(v, cc.Context.Address)
	}
	return v
}

// Flatten evaluates argument expressions and yields every value they hold.
// the flag is true for a scalar written directly as an argument, which
// aggregates coerce, and false for values coming out of ranges and arrays,
// which aggregates filter by type.
func (cc *CallContext) Flatten(args []Expression) iter.Seq2[Value, bool] {
	return func(yield func(Value, bool) bool) {
		for _, a := range args {
			v := cc.evaluate(a)
			if !cc.yieldValues(v, yield) {
				return
			}
		}
	}
}

func (cc *CallContext) yieldValues(v Value, yield func(Value, bool) bool) bool {
	switch {
	case v.IsReference():
		for _, area := range v.areas {
			for x := range cc.AreaValues(area) {
				if !yield(x, false) {
					return false
				}
			}
		}
	case v.IsArray():
		for x := range v.Array().PresentValues() {
			if !yield(x, false) {
				return false
			}
		}
	default:
		return yield(v, true)
	}
	return true
}

// AreaValues streams the values of one reference area, through the
// resolver's ReferenceEnumerator when it has one
func (cc *CallContext) AreaValues(ref Reference) iter.Seq[Value] {
	if en, ok := cc.Resolver.(ReferenceEnumerator); ok {
		return en.EnumerateReferenceValues(cc.Context, ref)
	}
	return func(yield func(Value) bool) {
		v := cc.resolveArea(ref)
		if !v.IsArray() {
			yield(v)
			return
		}
		for x := range v.Array().Values() {
			if !yield(x) {
				return
			}
		}
	}
}

// operand splits a value into a scalar or an array. 1x1 arrays act as
// scalars.
func operand(v Value) (Value, *Array) {
	if !v.IsArray() {
		return v, nil
	}
	a := v.Array()
	if a.rows == 1 && a.cols == 1 && a.IsPresent(0, 0) {
		return a.At(0, 0), nil
	}
	return v, a
}

// broadcastN applies fn to every combination of cells at the same
// position. the result takes the largest shape; a single row or column is
// stretched and positions outside a smaller array are #N/A. an error in
// any input is the result at that position.
func broadcastN(vals []Value, fn func([]Value) Value) Value {
	arrays := make([]*Array, len(vals))
	scalars := make([]Value, len(vals))
	rows, cols := 0, 0
	for i, v := range vals {
		scalars[i], arrays[i] = operand(v)
		if a := arrays[i]; a != nil {
			rows, cols = max(rows, a.rows), max(cols, a.cols)
		}
	}
	elem := func(args []Value) Value {
		for _, a := range args {
			if a.IsError() {
				return a
			}
		}
		return fn(args)
	}
	if rows == 0 {
		return elem(scalars)
	}

	values := make([]Value, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			args := make([]Value, len(vals))
			for i, a := range arrays {
				if a == nil {
					args[i] = scalars[i]
				} else {
					args[i] = broadcastAt(a, row, col)
				}
			}
			values[row*cols+col] = elem(args)
		}
	}
	return ArrayValue(newArrayNoCopy(rows, cols, values, nil))
}

// broadcastAt reads a at the given position, stretching a single row or
// column across the other axis. positions outside a are #N/A.
func broadcastAt(a *Array, row, col int) Value {
	if a.rows == 1 {
		row = 0
	}
	if a.cols == 1 {
		col = 0
	}
	if row >= a.rows || col >= a.cols {
		return ErrorValue(ErrorCodeNA)
	}
	return a.At(row, col)
}

// broadcast1 applies fn elementwise. errors pass through without calling
// fn and gaps stay gaps.
func broadcast1(v Value, fn func(Value) Value) Value {
	if v.IsError() {
		return v
	}
	v, a := operand(v)
	if a == nil {
		if v.IsError() {
			return v
		}
		return fn(v)
	}
	return ArrayValue(a.Map(func(x Value) Value {
		if x.IsError() {
			return x
		}
		return fn(x)
	}))
}

// broadcast2 combines two operands elementwise. arrays must share a shape,
// a scalar is paired with every cell, and a gap in either operand yields a
// gap without calling fn.
func broadcast2(l, r Value, fn func(a, b Value) Value) Value {
	elem := func(a, b Value) Value {
		if a.IsError() {
			return a
		}
		if b.IsError() {
			return b
		}
		return fn(a, b)
	}

	l, la := operand(l)
	r, ra := operand(r)
	switch {
	case la == nil && ra == nil:
		return elem(l, r)
	case la != nil && ra != nil:
		if la.rows != ra.rows || la.cols != ra.cols {
			return ErrorValue(ErrorCodeValue)
		}
	}

	shape := la
	if shape == nil {
		shape = ra
	}
	values := make([]Value, shape.Len())
	var present []bool
	if (la != nil && la.HasMask()) || (ra != nil && ra.HasMask()) {
		present = make([]bool, len(values))
	}
	for row := 0; row < shape.rows; row++ {
		for col := 0; col < shape.cols; col++ {
			a, b := l, r
			if la != nil {
				if !la.IsPresent(row, col) {
					continue
				}
				a = la.At(row, col)
			}
			if ra != nil {
				if !ra.IsPresent(row, col) {
					continue
				}
				b = ra.At(row, col)
			}
			idx := row*shape.cols + col
			values[idx] = elem(a, b)
			if present != nil {
				present[idx] = true
			}
		}
	}
	out := newArrayNoCopy(shape.rows, shape.cols, values, present)
	out.origin = shape.origin
	return ArrayValue(out)
}

func (cc *CallContext) unary(op UnaryOp, v Value) Value {
	return broadcast1(v, func(x Value) Value {
		if op == UnaryOpPlus {
			return x
		}
		n, errv := coerceNumber(x)
		if errv.IsError() {
			return errv
		}
		if op == UnaryOpMinus {
			if n == 0 {
				return Number(0)
			}
			return Number(-n)
		}
		return Number(cc.Settings.snap(n / 100))
	})
}

func (cc *CallContext) evaluateBinary(n *BinaryExpr) Value {
	switch n.Op {
	case BinOpUnion:
		return cc.union(n)
	case BinOpIntersect:
		return cc.intersect(n)
	}

	l := cc.Evaluate(n.Left)
	if l.IsError() {
		return l
	}
	r := cc.Evaluate(n.Right)
	if r.IsError() {
		return r
	}
	return broadcast2(l, r, func(a, b Value) Value {
		return cc.binary(n.Op, a, b)
	})
}

// binary applies an operator to two scalars
func (cc *CallContext) binary(op BinaryOp, a, b Value) Value {
	switch op {
	case BinOpConcat:
		sa, errv := coerceText(a)
		if errv.IsError() {
			return errv
		}
		sb, errv := coerceText(b)
		if errv.IsError() {
			return errv
		}
		return Text(sa + sb)
	case BinOpEqual, BinOpNotEqual, BinOpLess, BinOpLessEqual, BinOpGreater, BinOpGreaterEqual:
		c := compareValues(a, b, cc.Comparer())
		switch op {
		case BinOpEqual:
			return Boolean(c == 0)
		case BinOpNotEqual:
			return Boolean(c != 0)
		case BinOpLess:
			return Boolean(c < 0)
		case BinOpLessEqual:
			return Boolean(c <= 0)
		case BinOpGreater:
			return Boolean(c > 0)
		}
		return Boolean(c >= 0)
	}

	x, errv := coerceNumber(a)
	if errv.IsError() {
		return errv
	}
	y, errv := coerceNumber(b)
	if errv.IsError() {
		return errv
	}

	var res float64
	switch op {
	case BinOpAdd:
		res = x + y
	case BinOpSubtract:
		res = x - y
	case BinOpMultiply:
		res = x * y
	case BinOpDivide:
		if y == 0 {
			return ErrorValue(ErrorCodeDiv0)
		}
		res = x / y
	case BinOpPower:
		if x == 0 && y == 0 {
			return ErrorValue(ErrorCodeNum)
		}
		if x == 0 && y < 0 {
			return ErrorValue(ErrorCodeDiv0)
		}
		res = math.Pow(x, y)
	default:
		return ErrorValue(ErrorCodeValue)
	}
	return checkNumber(cc.Settings.snap(res))
}

func (cc *CallContext) union(n *BinaryExpr) Value {
	l := cc.evaluate(n.Left)
	if l.IsError() {
		return l
	}
	r := cc.evaluate(n.Right)
	if r.IsError() {
		return r
	}
	if !l.IsReference() || !r.IsReference() {
		return ErrorValue(ErrorCodeValue)
	}
	return ReferenceValue(append(l.Areas(), r.areas...)...)
}

func (cc *CallContext) intersect(n *BinaryExpr) Value {
	l := cc.evaluate(n.Left)
	if l.IsError() {
		return l
	}
	r := cc.evaluate(n.Right)
	if r.IsError() {
		return r
	}
	if !l.IsReference() || !r.IsReference() {
		return ErrorValue(ErrorCodeValue)
	}
	var out []Reference
	for _, a := range l.areas {
		for _, b := range r.areas {
			if x, ok := a.Intersect(b, cc.Context.Address.Sheet); ok {
				out = append(out, x)
			}
		}
	}
	if len(out) == 0 {
		return ErrorValue(ErrorCodeNull)
	}
	return ReferenceValue(out...)
}
