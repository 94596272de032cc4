package model

import (
	"path"
	"strings"
)

// CVSPath is an interned file or directory path within one project's CVS
// repository, e.g. "module/src/foo.c". Interning it behind a PathID lets
// every revision, branch, and tag reference the path by a 4-byte integer
// instead of repeating the string.
type CVSPath struct {
	ID        PathID
	Project   ProjectID
	Path      string // forward-slash separated, relative to the project root
	IsDirectory bool
}

// BaseName returns the final path component.
func (p *CVSPath) BaseName() string {
	return path.Base(p.Path)
}

// PathTable interns CVSPaths for one project, handing out stable PathIDs.
type PathTable struct {
	byID   []*CVSPath
	byPath map[string]PathID
}

// NewPathTable creates an empty interning table.
func NewPathTable() *PathTable {
	return &PathTable{
		byID:   []*CVSPath{nil}, // PathID 0 is reserved/unused
		byPath: make(map[string]PathID),
	}
}

// Intern returns the PathID for p, allocating one if this is the first time
// the path has been seen under this project.
func (t *PathTable) Intern(project ProjectID, cvsPath string, isDirectory bool) PathID {
	key := pathKey(project, cvsPath)
	if id, ok := t.byPath[key]; ok {
		return id
	}
	id := PathID(len(t.byID))
	t.byID = append(t.byID, &CVSPath{ID: id, Project: project, Path: cvsPath, IsDirectory: isDirectory})
	t.byPath[key] = id
	return id
}

// Lookup returns the interned path, or nil if id is unknown.
func (t *PathTable) Lookup(id PathID) *CVSPath {
	if int(id) >= len(t.byID) {
		return nil
	}
	return t.byID[id]
}

// All returns every interned path (index 0 is always nil and is skipped).
func (t *PathTable) All() []*CVSPath {
	if len(t.byID) == 0 {
		return nil
	}
	return t.byID[1:]
}

// LoadPathTable rebuilds a PathTable from a flat list (as returned by All).
func LoadPathTable(paths []*CVSPath) *PathTable {
	t := NewPathTable()
	for _, p := range paths {
		t.byID = append(t.byID, p)
		t.byPath[pathKey(p.Project, p.Path)] = p.ID
	}
	return t
}

func pathKey(project ProjectID, cvsPath string) string {
	var b strings.Builder
	b.Grow(len(cvsPath) + 8)
	b.WriteString(cvsPath)
	b.WriteByte(0)
	for shift := 0; shift < 32; shift += 8 {
		b.WriteByte(byte(project >> shift))
	}
	return b.String()
}

// PathMap is a copy-on-write mapping from SVN path component sequences to
// opaque per-path values, used to take an O(changed subtree) snapshot of a
// project's tree shape at every commit instead of copying the whole tree.
// Adapted from the teacher's PathMap (surgeon/pathmap.go): same sharing
// discipline (mark-shared-then-copy-on-write), generalized from
// *NodeAction-valued blobs to the sink's directory-entry value type.
type PathMap struct {
	dirs   map[string]*PathMap
	blobs  map[string]interface{}
	shared bool
}

// NewPathMap returns an empty tree.
func NewPathMap() *PathMap {
	return &PathMap{
		dirs:  make(map[string]*PathMap),
		blobs: make(map[string]interface{}),
	}
}

func (pm *PathMap) markShared() {
	if pm.shared {
		return
	}
	pm.shared = true
	for _, v := range pm.dirs {
		v.markShared()
	}
}

// Snapshot returns an O(1) copy of pm that shares unmodified subtrees with
// pm; either tree can then be mutated independently, paying the copy cost
// only for the directories actually touched afterward.
func (pm *PathMap) Snapshot() *PathMap {
	r := &PathMap{
		dirs:  make(map[string]*PathMap, len(pm.dirs)),
		blobs: make(map[string]interface{}, len(pm.blobs)),
	}
	for k, v := range pm.dirs {
		r.dirs[k] = v
		v.markShared()
	}
	for k, v := range pm.blobs {
		r.blobs[k] = v
	}
	return r
}

func (pm *PathMap) unshare() *PathMap {
	if pm.shared {
		return pm.Snapshot()
	}
	return pm
}

func (pm *PathMap) createTree(components []string) *PathMap {
	tree := pm
	for _, c := range components {
		subtree, ok := tree.dirs[c]
		if ok {
			subtree = subtree.unshare()
		} else {
			subtree = NewPathMap()
		}
		tree.dirs[c] = subtree
		tree = subtree
	}
	return tree
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// Set records value at the given path, copying only the directories along
// the path that were shared with another snapshot.
func (pm *PathMap) Set(p string, value interface{}) {
	components := splitPath(p)
	if len(components) == 0 {
		return
	}
	dir := pm.createTree(components[:len(components)-1])
	dir.blobs[components[len(components)-1]] = value
}

// Get returns the value at p and whether it was present.
func (pm *PathMap) Get(p string) (interface{}, bool) {
	components := splitPath(p)
	if len(components) == 0 {
		return nil, false
	}
	tree := pm
	for _, c := range components[:len(components)-1] {
		subtree, ok := tree.dirs[c]
		if !ok {
			return nil, false
		}
		tree = subtree
	}
	v, ok := tree.blobs[components[len(components)-1]]
	return v, ok
}

// Remove deletes the entry (or subtree) at p, copying only the path's
// ancestor directories. Reports whether anything was removed.
func (pm *PathMap) Remove(p string) bool {
	components := splitPath(p)
	if len(components) == 0 {
		return false
	}
	parentComponents := components[:len(components)-1]
	last := components[len(components)-1]
	tree := pm
	for _, c := range parentComponents {
		subtree, ok := tree.dirs[c]
		if !ok {
			return false
		}
		subtree = subtree.unshare()
		tree.dirs[c] = subtree
		tree = subtree
	}
	if _, ok := tree.blobs[last]; ok {
		delete(tree.blobs, last)
		return true
	}
	if _, ok := tree.dirs[last]; ok {
		delete(tree.dirs, last)
		return true
	}
	return false
}

// Walk visits every blob in the tree in an unspecified order, calling fn
// with the blob's full path and value.
func (pm *PathMap) Walk(fn func(path string, value interface{})) {
	pm.walk("", fn)
}

func (pm *PathMap) walk(prefix string, fn func(string, interface{})) {
	for name, v := range pm.blobs {
		fn(path.Join(prefix, name), v)
	}
	for name, sub := range pm.dirs {
		sub.walk(path.Join(prefix, name), fn)
	}
}
