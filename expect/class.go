package expect

import (
	"reflect"

	"github.com/lucasmaystre/govgp/inducing"
	"github.com/lucasmaystre/govgp/kern"
	"github.com/lucasmaystre/govgp/meanfn"
	"github.com/lucasmaystre/govgp/probdist"
)

// Class is a node of the operand hierarchy used for dispatch. A rule
// registered for a class applies to all its descendants.
type Class struct {
	name   string
	parent *Class
}

func NewClass(name string, parent *Class) *Class {
	return &Class{name: name, parent: parent}
}

func (c *Class) String() string {
	return c.name
}

// IsA reports whether c is other or one of its descendants.
func (c *Class) IsA(other *Class) bool {
	for cur := c; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

// Of groups classes for registration.
func Of(classes ...*Class) []*Class {
	return classes
}

var (
	NoneClass = NewClass("none", nil)

	GaussianClass         = NewClass("Gaussian", nil)
	DiagonalGaussianClass = NewClass("DiagonalGaussian", GaussianClass)
	MarkovGaussianClass   = NewClass("MarkovGaussian", GaussianClass)

	KernelClass             = NewClass("Kernel", nil)
	SquaredExponentialClass = NewClass("SquaredExponential", KernelClass)
	LinearClass             = NewClass("Linear", KernelClass)
	SumClass                = NewClass("Sum", KernelClass)
	Matern12Class           = NewClass("Matern12", KernelClass)
	Matern32Class           = NewClass("Matern32", KernelClass)
	ConstantClass           = NewClass("Constant", KernelClass)

	MeanFunctionClass = NewClass("MeanFunction", nil)
	LinearMeanClass   = NewClass("LinearMean", MeanFunctionClass)
	IdentityMeanClass = NewClass("IdentityMean", LinearMeanClass)
	ConstantMeanClass = NewClass("ConstantMean", MeanFunctionClass)
	ZeroMeanClass     = NewClass("ZeroMean", ConstantMeanClass)

	InducingPointsClass = NewClass("InducingPoints", nil)
)

func builtinClasses() map[reflect.Type]*Class {
	return map[reflect.Type]*Class{
		reflect.TypeOf((*probdist.Gaussian)(nil)):         GaussianClass,
		reflect.TypeOf((*probdist.DiagonalGaussian)(nil)): DiagonalGaussianClass,
		reflect.TypeOf((*probdist.MarkovGaussian)(nil)):   MarkovGaussianClass,

		reflect.TypeOf((*kern.SquaredExponential)(nil)): SquaredExponentialClass,
		reflect.TypeOf((*kern.Linear)(nil)):             LinearClass,
		reflect.TypeOf((*kern.Sum)(nil)):                SumClass,
		reflect.TypeOf((*kern.Matern12)(nil)):           Matern12Class,
		reflect.TypeOf((*kern.Matern32)(nil)):           Matern32Class,
		reflect.TypeOf((*kern.Constant)(nil)):           ConstantClass,

		reflect.TypeOf((*meanfn.Linear)(nil)):   LinearMeanClass,
		reflect.TypeOf((*meanfn.Identity)(nil)): IdentityMeanClass,
		reflect.TypeOf((*meanfn.Constant)(nil)): ConstantMeanClass,
		reflect.TypeOf((*meanfn.Zero)(nil)):     ZeroMeanClass,

		reflect.TypeOf((*inducing.Points)(nil)): InducingPointsClass,
	}
}

// sameObject reports whether a and b are the same pointer.
func sameObject(a, b interface{}) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != reflect.Ptr || vb.Kind() != reflect.Ptr {
		return false
	}
	return va.Type() == vb.Type() && va.Pointer() == vb.Pointer()
}
