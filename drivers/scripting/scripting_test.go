package scripting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvothestack/upd"
)

func TestStubDriversAcceptNoCategories(t *testing.T) {
	for _, d := range []upd.Driver{LuaDriver(), DuktapeDriver()} {
		assert.Empty(t, d.Categories())
	}
}

func TestStubDriversRejectEveryRequest(t *testing.T) {
	iso := upd.NewTestIso()
	for _, d := range []upd.Driver{LuaDriver(), DuktapeDriver()} {
		f, err := iso.NewFile(d, "")
		require.NoError(t, err)

		req := &upd.Request{File: f, Type: upd.ReqStatAccess, Payload: &upd.DirAccess{}}
		accepted := iso.Req(req)
		assert.False(t, accepted)
		assert.Equal(t, upd.ResultInvalid, req.Result)
	}
}

func TestStubDriverNames(t *testing.T) {
	assert.Equal(t, "upd.dev.lua", LuaDriver().Name())
	assert.Equal(t, "upd.dev.duktape", DuktapeDriver().Name())
}
