package cardfs

// Handle designates a dedicated file owned by a Tree.
type Handle int

// MasterFileHandle is the handle of the root DF in every tree.
const MasterFileHandle Handle = 0

// Tree owns the dedicated files of a card and tracks the current selection.
type Tree struct {
	arena []*DedicatedFile

	currentDF  Handle
	currentADF Handle
}

// NewTree creates a tree rooted at mf. Both the current DF and the current
// application DF start on the Master File.
func NewTree(mf *DedicatedFile) *Tree {
	return &Tree{
		arena:      []*DedicatedFile{mf},
		currentDF:  MasterFileHandle,
		currentADF: MasterFileHandle,
	}
}

// Resolve returns the DF behind h, or nil for a handle the tree never issued.
func (t *Tree) Resolve(h Handle) *DedicatedFile {
	if h < 0 || int(h) >= len(t.arena) {
		return nil
	}
	return t.arena[h]
}

// MasterFile returns the root DF.
func (t *Tree) MasterFile() *DedicatedFile {
	return t.arena[MasterFileHandle]
}

// CurrentDedicatedFile returns the currently selected DF.
func (t *Tree) CurrentDedicatedFile() *DedicatedFile {
	return t.Resolve(t.currentDF)
}

// CurrentApplicationDedicatedFile returns the currently selected application DF.
func (t *Tree) CurrentApplicationDedicatedFile() *DedicatedFile {
	return t.Resolve(t.currentADF)
}
