// Package scripting provides thin stub drivers for the two scripting
// glue points the original exposes, upd.dev.lua and upd.dev.duktape.
// Binding an actual Lua or JavaScript engine is explicitly out of
// scope (spec.md Non-goals); these exist only to prove the uniform
// driver contract extends to them, grounded on
// original_source/src/driver/dev/{lua,duktape}.c, both of which accept
// no request categories and reject every Handle call.
package scripting

import "github.com/kvothestack/upd"

// LuaName is the registry name of the Lua glue stub.
const LuaName = "upd.dev.lua"

// DuktapeName is the registry name of the Duktape (JS) glue stub.
const DuktapeName = "upd.dev.duktape"

// stubDriver is shared by both glue points: neither accepts any
// request category, so Handle always rejects.
type stubDriver struct {
	name string
}

var _ upd.Driver = stubDriver{}

func (s stubDriver) Name() string               { return s.name }
func (stubDriver) Categories() []upd.Category   { return nil }
func (stubDriver) Flags() upd.DriverFlags       { return 0 }
func (stubDriver) Init(*upd.File) bool          { return true }
func (stubDriver) Deinit(*upd.File)             {}
func (stubDriver) Handle(req *upd.Request) bool {
	req.Result = upd.ResultInvalid
	return false
}

// LuaDriver is the upd.dev.lua stub. A real binding would create a
// Lua state in Init and destroy it in Deinit; that engine integration
// is not part of this implementation.
func LuaDriver() upd.Driver { return stubDriver{name: LuaName} }

// DuktapeDriver is the upd.dev.duktape stub, the JavaScript-engine
// counterpart of LuaDriver.
func DuktapeDriver() upd.Driver { return stubDriver{name: DuktapeName} }
