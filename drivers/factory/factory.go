// Package factory implements upd.factory: a PROG file that, on
// PROG_EXEC, instantiates a fresh file of whatever driver name was
// given as its own creation parameter. Grounded on
// original_source/src/driver/factory.c.
package factory

import (
	"github.com/kvothestack/upd"
)

// Name is the registry name of the factory driver.
const Name = "upd.factory"

type ctx struct {
	target upd.Driver
}

// Driver is the upd.factory driver instance.
type Driver struct {
	Registry *upd.Registry
}

var _ upd.Driver = Driver{}

func (Driver) Name() string               { return Name }
func (Driver) Categories() []upd.Category { return []upd.Category{upd.CategoryProg} }
func (Driver) Flags() upd.DriverFlags     { return 0 }

// Init looks up f.Param() (the target driver's registry name) and
// fails if it is not registered.
func (d Driver) Init(f *upd.File) bool {
	target, ok := d.Registry.Lookup(f.Param())
	if !ok {
		f.Iso().Msgf("upd.factory: unknown driver %q", f.Param())
		return false
	}
	f.SetContext(&ctx{target: target})
	return true
}

func (Driver) Deinit(f *upd.File) {}

func (d Driver) Handle(req *upd.Request) bool {
	if req.Type != upd.ReqProgExec {
		req.Result = upd.ResultInvalid
		return false
	}

	c := req.File.Context().(*ctx)
	product, err := req.File.Iso().NewFile(c.target, "")
	if err != nil {
		req.File.Iso().Msgf("upd.factory: product creation failure: %v", err)
		req.Result = upd.ResultAborted
		return false
	}

	req.Payload.(*upd.ProgExec).File = product
	req.Result = upd.ResultOK
	if req.Callback != nil {
		req.Callback(req)
	}
	product.Unref() // the creation ref; a caller that keeps the product takes its own ref in its callback.
	return true
}
