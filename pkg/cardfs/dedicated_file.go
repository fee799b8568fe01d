package cardfs

import "bytes"

// MaxChildren is the number of child slots every dedicated file allocates.
const MaxChildren = 8

// DedicatedFile is a File that can own child files and carry a DF name (AID).
type DedicatedFile struct {
	File

	name []byte

	// Allocated with the DF and never populated: no command creates or
	// selects children yet.
	children [MaxChildren]*File
}

// NewDedicatedFile creates a DF with maxObjects data object slots.
// name is used as the DF name in selection responses; it may be nil.
func NewDedicatedFile(maxObjects int, fid, name []byte) (*DedicatedFile, error) {
	f, err := newFile(maxObjects, fid)
	if err != nil {
		return nil, err
	}
	return &DedicatedFile{
		File: *f,
		name: bytes.Clone(name),
	}, nil
}

// Name returns the DF name, or nil.
func (d *DedicatedFile) Name() []byte {
	return d.name
}

// ChildCapacity returns the number of child slots.
func (d *DedicatedFile) ChildCapacity() int {
	return len(d.children)
}

// ChildCount returns the number of populated child slots. Nothing populates
// them yet, so it reports 0 until child file creation exists.
func (d *DedicatedFile) ChildCount() int {
	n := 0
	for _, c := range d.children {
		if c != nil {
			n++
		}
	}
	return n
}
