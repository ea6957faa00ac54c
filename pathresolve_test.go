package upd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dirStub is a minimal DIR_FIND-only driver, enough to exercise
// PathFind's walk without pulling in the full directory driver.
func dirStub(entries map[string]*File) *MockDriver {
	return &MockDriver{
		CategoriesFunc: func() []Category { return []Category{CategoryDir} },
		HandleFunc: func(req *Request) bool {
			if req.Type != ReqDirFind {
				req.complete(ResultInvalid)
				return false
			}
			find := req.Payload.(*DirFind)
			target, ok := entries[find.Name]
			if !ok {
				req.complete(ResultInvalid)
				return false
			}
			find.ID = target.ID()
			req.complete(ResultOK)
			return true
		},
	}
}

func TestPathFindFullMatch(t *testing.T) {
	iso := NewTestIso()
	rootEntries := map[string]*File{}
	root, err := iso.NewFile(dirStub(rootEntries), "")
	require.NoError(t, err)
	require.Equal(t, RootFileID, root.ID())
	leaf, err := iso.NewFile(&MockDriver{}, "")
	require.NoError(t, err)
	mid, err := iso.NewFile(dirStub(map[string]*File{"b": leaf}), "")
	require.NoError(t, err)
	rootEntries["a"] = mid

	pf := &PathFind{Path: "a/b"}
	iso.PathFind(pf)

	assert.Equal(t, leaf.ID(), pf.ResultFile.ID())
	assert.Empty(t, pf.Remainder)
}

func TestPathFindPartialMatch(t *testing.T) {
	iso := NewTestIso()
	rootEntries := map[string]*File{}
	_, err := iso.NewFile(dirStub(rootEntries), "")
	require.NoError(t, err)
	leaf, err := iso.NewFile(&MockDriver{}, "")
	require.NoError(t, err)
	mid, err := iso.NewFile(dirStub(map[string]*File{"b": leaf}), "")
	require.NoError(t, err)
	rootEntries["a"] = mid

	pf := &PathFind{Path: "a/b/c/d"}
	iso.PathFind(pf)

	assert.Equal(t, leaf.ID(), pf.ResultFile.ID())
	assert.Equal(t, "c/d", pf.Remainder)
}

func TestPathFindEmptyPathResolvesToRoot(t *testing.T) {
	iso := NewTestIso()
	root, err := iso.NewFile(dirStub(nil), "")
	require.NoError(t, err)

	pf := &PathFind{Path: ""}
	iso.PathFind(pf)

	assert.Equal(t, root.ID(), pf.ResultFile.ID())
	assert.Empty(t, pf.Remainder)
}

func TestPathFindWithDupRefsResult(t *testing.T) {
	iso := NewTestIso()
	rootEntries := map[string]*File{}
	_, err := iso.NewFile(dirStub(rootEntries), "")
	require.NoError(t, err)
	leaf, err := iso.NewFile(&MockDriver{}, "")
	require.NoError(t, err)
	rootEntries["x"] = leaf

	pf := &PathFind{Path: "x"}
	iso.PathFindWithDup(pf)

	leaf.Unref()
	_, ok := iso.GetFile(leaf.ID())
	assert.True(t, ok, "the extra ref from PathFindWithDup must keep the file alive")

	leaf.Unref()
	_, ok = iso.GetFile(leaf.ID())
	assert.False(t, ok)
}
