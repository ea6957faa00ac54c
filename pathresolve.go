package upd

import "strings"

// PathFind resolves a slash-separated path to the longest prefix of
// directory entries it can walk, starting at Root (or the Iso's root
// file if Root is nil). It is the Go counterpart of upd_pathfind_t:
// repeated DIR_FIND requests down the tree (spec.md §4.5). Since the
// directory driver in this implementation always answers synchronously,
// resolution itself is synchronous; nothing here assumes that of
// directories in general.
type PathFind struct {
	Root *File
	Path string

	// ResultFile is the last file successfully resolved: the target
	// itself on a full match, or the deepest file reached on a partial
	// one (which need not be a directory).
	ResultFile *File
	// Remainder is whatever path segment could not be resolved past
	// ResultFile. It is empty on a full match.
	Remainder string
}

// PathFind walks pf.Path from pf.Root (or the Iso's root) and fills in
// pf.ResultFile/pf.Remainder.
func (iso *Iso) PathFind(pf *PathFind) {
	root := pf.Root
	if root == nil {
		r, ok := iso.GetFile(RootFileID)
		if !ok {
			pf.ResultFile = nil
			pf.Remainder = pf.Path
			return
		}
		root = r
	}

	cur := root
	path := strings.Trim(pf.Path, "/")
	if path == "" {
		pf.ResultFile = cur
		pf.Remainder = ""
		return
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		req := &Request{File: cur, Type: ReqDirFind, Payload: &DirFind{Name: seg}}
		accepted := iso.Req(req)
		if !accepted || req.Result != ResultOK {
			pf.ResultFile = cur
			pf.Remainder = strings.Join(segments[i:], "/")
			return
		}
		next, ok := iso.GetFile(req.Payload.(*DirFind).ID)
		if !ok {
			pf.ResultFile = cur
			pf.Remainder = strings.Join(segments[i:], "/")
			return
		}
		cur = next
	}

	pf.ResultFile = cur
	pf.Remainder = ""
}

// PathFindWithDup behaves like PathFind but takes an extra Ref on the
// resolved file on the caller's behalf, mirroring call sites (such as
// the parallelism driver's session setup) that must keep the target
// alive across a subsequent asynchronous step.
func (iso *Iso) PathFindWithDup(pf *PathFind) {
	iso.PathFind(pf)
	if pf.ResultFile != nil {
		pf.ResultFile.Ref()
	}
}
