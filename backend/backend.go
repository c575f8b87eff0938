// Package backend defines the interface between the compiler and a concrete
// machine target. A target consumes the constructed intermediate
// representation of the entry function and returns the bytes of a relocatable
// object file, or a build error.
//
// The entry function is exported under its own name; every extern the
// function declares becomes an imported symbol the linker must resolve.
package backend

import "github.com/thymoze/brainlift/ir"

// Target emits a linkable object for one translation unit.
type Target interface {
	// Name identifies the target, e.g. "amd64".
	Name() string

	// Object lowers the function to machine code and returns the bytes of a
	// relocatable object file. The function must have passed ir.Verify; any
	// error is an internal defect, not a user error.
	Object(fn *ir.Func) ([]byte, error)
}
