package formula

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Function describes a named spreadsheet function. a usable function also
// implements EagerFunction or LazyFunction.
type Function interface {
	Name() string
	MinArgs() int
	// MaxArgs is -1 for variadic functions
	MaxArgs() int
	// IsVolatile marks results that can change without their inputs
	// changing. it is metadata for recalculation schedulers only.
	IsVolatile() bool
}

// EagerFunction receives its arguments evaluated and dereferenced
type EagerFunction interface {
	Function
	Invoke(cc *CallContext, args []Value) Value
}

// LazyFunction receives its argument expressions unevaluated. it can skip
// arguments, stream references or inspect reference arguments directly.
type LazyFunction interface {
	Function
	InvokeLazy(cc *CallContext, args []Expression) Value
}

type functionInfo struct {
	name     string
	minArgs  int
	maxArgs  int
	volatile bool
}

func (f *functionInfo) Name() string     { return f.name }
func (f *functionInfo) MinArgs() int     { return f.minArgs }
func (f *functionInfo) MaxArgs() int     { return f.maxArgs }
func (f *functionInfo) IsVolatile() bool { return f.volatile }

type eagerFunction struct {
	functionInfo
	fn func(cc *CallContext, args []Value) Value
}

func (f *eagerFunction) Invoke(cc *CallContext, args []Value) Value {
	return f.fn(cc, args)
}

type lazyFunction struct {
	functionInfo
	fn func(cc *CallContext, args []Expression) Value
}

func (f *lazyFunction) InvokeLazy(cc *CallContext, args []Expression) Value {
	return f.fn(cc, args)
}

// NewEagerFunction wraps fn as an EagerFunction
func NewEagerFunction(name string, minArgs, maxArgs int, volatile bool, fn func(cc *CallContext, args []Value) Value) EagerFunction {
	return &eagerFunction{
		functionInfo: functionInfo{name: strings.ToUpper(name), minArgs: minArgs, maxArgs: maxArgs, volatile: volatile},
		fn:           fn,
	}
}

// NewLazyFunction wraps fn as a LazyFunction
func NewLazyFunction(name string, minArgs, maxArgs int, volatile bool, fn func(cc *CallContext, args []Expression) Value) LazyFunction {
	return &lazyFunction{
		functionInfo: functionInfo{name: strings.ToUpper(name), minArgs: minArgs, maxArgs: maxArgs, volatile: volatile},
		fn:           fn,
	}
}

// Registry maps function names to implementations. lookups are
// case-insensitive. it is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{functions: make(map[string]Function)}
}

// NewDefaultRegistry creates a registry holding every built-in function
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	registerMathFunctions(r)
	registerStatisticalFunctions(r)
	registerLogicalFunctions(r)
	registerTextFunctions(r)
	registerDateTimeFunctions(r)
	registerFinancialFunctions(r)
	registerLookupFunctions(r)
	registerDynamicArrayFunctions(r)
	registerInfoFunctions(r)
	return r
}

// DefaultRegistry returns the shared registry used by evaluators created
// without WithRegistry
var DefaultRegistry = sync.OnceValue(NewDefaultRegistry)

// Register adds fn, replacing any function with the same name
func (r *Registry) Register(fn Function) error {
	if fn == nil {
		return fmt.Errorf("%w: nil function", ErrInvalidFunction)
	}
	name := strings.ToUpper(fn.Name())
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidFunction)
	}
	if fn.MinArgs() < 0 || (fn.MaxArgs() >= 0 && fn.MaxArgs() < fn.MinArgs()) {
		return fmt.Errorf("%w: %s has arity %d..%d", ErrInvalidFunction, name, fn.MinArgs(), fn.MaxArgs())
	}
	_, eager := fn.(EagerFunction)
	_, lazy := fn.(LazyFunction)
	if !eager && !lazy {
		return fmt.Errorf("%w: %s has no Invoke or InvokeLazy", ErrInvalidFunction, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[name] = fn
	return nil
}

// mustRegister is used for the built-in tables, which are known valid
func (r *Registry) mustRegister(fns ...Function) {
	for _, fn := range fns {
		if err := r.Register(fn); err != nil {
			panic(err)
		}
	}
}

// TryGetFunction looks a function up by name. the _xlfn. and _xlws. prefixes
// written by newer file formats are ignored.
func (r *Registry) TryGetFunction(name string) (Function, bool) {
	name = canonicalFunctionName(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[name]
	return fn, ok
}

func canonicalFunctionName(name string) string {
	name = strings.ToUpper(name)
	for _, prefix := range []string{"_XLFN.", "_XLWS."} {
		name = strings.TrimPrefix(name, prefix)
	}
	return name
}

// Names returns every registered name in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Suggest returns up to limit registered names close to an unknown name:
// names containing its letters in order, then names within two edits
func (r *Registry) Suggest(name string, limit int) []string {
	name = canonicalFunctionName(name)
	if name == "" || limit <= 0 {
		return nil
	}
	names := r.Names()

	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if !seen[s] && s != name && len(out) < limit {
			seen[s] = true
			out = append(out, s)
		}
	}

	ranks := fuzzy.RankFindFold(name, names)
	sort.Sort(ranks)
	for _, rank := range ranks {
		add(rank.Target)
	}

	type candidate struct {
		name     string
		distance int
	}
	var near []candidate
	for _, n := range names {
		if d := fuzzy.LevenshteinDistance(name, n); d <= 2 {
			near = append(near, candidate{n, d})
		}
	}
	slices.SortStableFunc(near, func(a, b candidate) int { return cmpInt(a.distance, b.distance) })
	for _, c := range near {
		add(c.name)
	}
	return out
}
