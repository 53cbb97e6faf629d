package expect

import (
	"reflect"
	"strings"
	"sync"

	"github.com/lucasmaystre/govgp/inducing"
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/meanfn"
	"github.com/lucasmaystre/govgp/probdist"
	"github.com/lucasmaystre/govgp/utils"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var ErrUnsupportedExpectation = errors.New("unsupported expectation")

// Operand is one side of an expectation: a kernel or mean function, and the
// inducing variable it is evaluated against, if any.
type Operand struct {
	Obj  interface{}
	Feat *inducing.Points
}

// Op is an operand without inducing variable.
func Op(obj interface{}) Operand {
	return Operand{Obj: obj}
}

// OpZ is an operand evaluated against an inducing variable.
func OpZ(obj interface{}, feat *inducing.Points) Operand {
	return Operand{Obj: obj, Feat: feat}
}

// Handler computes one kind of expectation. It may call back into the
// registry to decompose its operands.
type Handler func(r *Registry, p probdist.Distribution, a, b Operand) (*Tensor, error)

// signature is the class tuple (distribution, obj1, feat1, obj2, feat2).
type signature [5]*Class

func (s signature) String() string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.String()
	}
	return "(" + strings.Join(names, ", ") + ")"
}

// moreSpecific reports whether every class of s descends from the matching
// class of o.
func (s signature) moreSpecific(o signature) bool {
	for i := range s {
		if !s[i].IsA(o[i]) {
			return false
		}
	}
	return true
}

type rule struct {
	sig     signature
	handler Handler
	seq     int
}

// Registry maps class tuples to handlers. Rules are kept sorted so that a rule
// always comes before the rules it is more specific than; the first matching
// rule wins.
type Registry struct {
	mu      sync.RWMutex
	classes map[reflect.Type]*Class
	rules   []*rule
	cache   map[signature]*rule
	nextSeq int
}

func NewRegistry() *Registry {
	return &Registry{
		classes: builtinClasses(),
		cache:   make(map[signature]*rule),
	}
}

// RegisterClass declares the class of values with the same dynamic type as
// sample.
func (r *Registry) RegisterClass(sample interface{}, class *Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[reflect.TypeOf(sample)] = class
	r.cache = make(map[signature]*rule)
}

// Register adds the handler for every combination of the given classes.
func (r *Registry) Register(h Handler, dist, obj1, feat1, obj2, feat2 []*Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c0 := range dist {
		for _, c1 := range obj1 {
			for _, c2 := range feat1 {
				for _, c3 := range obj2 {
					for _, c4 := range feat2 {
						r.rules = append(r.rules, &rule{
							sig:     signature{c0, c1, c2, c3, c4},
							handler: h,
							seq:     r.nextSeq,
						})
						r.nextSeq++
					}
				}
			}
		}
	}
	r.rules = sortBySpecificity(r.rules)
	r.cache = make(map[signature]*rule)
}

// sortBySpecificity orders rules topologically, more specific first. Among
// unrelated rules the earliest registered comes first.
func sortBySpecificity(rules []*rule) []*rule {
	n := len(rules)
	indeg := make([]int, n)
	succ := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && rules[i].sig != rules[j].sig && rules[i].sig.moreSpecific(rules[j].sig) {
				succ[i] = append(succ[i], j)
				indeg[j]++
			}
		}
	}
	done := make([]bool, n)
	out := make([]*rule, 0, n)
	for len(out) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indeg[i] == 0 && (next < 0 || rules[i].seq < rules[next].seq) {
				next = i
			}
		}
		done[next] = true
		out = append(out, rules[next])
		for _, j := range succ[next] {
			indeg[j]--
		}
	}
	return out
}

func (r *Registry) classOf(v interface{}) (*Class, error) {
	if v == nil {
		return NoneClass, nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return NoneClass, nil
	}
	r.mu.RLock()
	c, ok := r.classes[reflect.TypeOf(v)]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}
	switch v.(type) {
	case kern.Kernel:
		return KernelClass, nil
	case meanfn.Function:
		return MeanFunctionClass, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedExpectation, "no class for operand of type %T", v)
}

func (r *Registry) signatureOf(p probdist.Distribution, a, b Operand) (signature, error) {
	var sig signature
	var feat1, feat2 interface{}
	if a.Feat != nil {
		feat1 = a.Feat
	}
	if b.Feat != nil {
		feat2 = b.Feat
	}
	for i, v := range []interface{}{p, a.Obj, feat1, b.Obj, feat2} {
		c, err := r.classOf(v)
		if err != nil {
			return sig, err
		}
		sig[i] = c
	}
	return sig, nil
}

// resolve returns the most specific rule for sig.
func (r *Registry) resolve(sig signature) (*rule, error) {
	r.mu.RLock()
	found, ok := r.cache[sig]
	r.mu.RUnlock()
	if ok {
		return found, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, candidate := range r.rules {
		if sig.moreSpecific(candidate.sig) {
			found = candidate
			break
		}
	}
	if found == nil {
		return nil, errors.Wrapf(ErrUnsupportedExpectation, "no rule for %v", sig)
	}
	log.WithFields(log.Fields{
		"request": sig.String(),
		"rule":    found.sig.String(),
	}).Debug("expect: resolved rule")
	r.cache[sig] = found
	return found, nil
}

// Expectation computes <a b>_p. The second operand may be empty for
// expectations of a single kernel.
func (r *Registry) Expectation(p probdist.Distribution, a, b Operand) (*Tensor, error) {
	if a.Obj == nil {
		return nil, errors.Wrap(ErrUnsupportedExpectation, "first operand is empty")
	}
	if b.Obj == nil && b.Feat != nil {
		return nil, errors.Wrap(ErrUnsupportedExpectation, "second operand has an inducing variable but no object")
	}
	for _, feat := range []*inducing.Points{a.Feat, b.Feat} {
		if feat != nil && feat.Dim() != p.Dim() {
			return nil, errors.Wrapf(utils.ErrShapeMismatch, "inducing points have dimension %d, inputs have dimension %d",
				feat.Dim(), p.Dim())
		}
	}
	sig, err := r.signatureOf(p, a, b)
	if err != nil {
		return nil, err
	}
	found, err := r.resolve(sig)
	if err != nil {
		return nil, err
	}
	return found.handler(r, p, a, b)
}

// Default holds the built-in rules.
var Default = NewRegistry()

// Expectation computes <a b>_p with the default registry.
func Expectation(p probdist.Distribution, a, b Operand) (*Tensor, error) {
	return Default.Expectation(p, a, b)
}

func unexpected(obj interface{}) error {
	return errors.Wrapf(ErrUnsupportedExpectation, "handler received operand of type %T", obj)
}
