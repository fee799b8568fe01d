package cardfs

import (
	"bytes"
	"errors"
	"fmt"
)

var (
	// ErrFileFull is returned when a new tag is written to a file with no empty slot.
	ErrFileFull = errors.New("file full")

	// ErrUnsupported is returned for file layouts the hierarchy does not model.
	ErrUnsupported = errors.New("unsupported file operation")
)

// MaxObjects bounds the number of data object slots of a single file.
const MaxObjects = 255

// File is a fixed-capacity store of data objects, optionally named by a file identifier.
type File struct {
	objects []*DataObject
	fid     []byte
}

// NewFile creates a file with maxObjects slots.
// Only dedicated files have children, so a nonzero maxChildren is rejected.
func NewFile(maxObjects, maxChildren int, fid []byte) (*File, error) {
	if maxChildren != 0 {
		return nil, fmt.Errorf("%w: file with %d children (only dedicated files have children)", ErrUnsupported, maxChildren)
	}
	return newFile(maxObjects, fid)
}

func newFile(maxObjects int, fid []byte) (*File, error) {
	if maxObjects < 0 || maxObjects > MaxObjects {
		return nil, fmt.Errorf("object capacity %d out of range [0, %d]", maxObjects, MaxObjects)
	}
	return &File{
		objects: make([]*DataObject, maxObjects),
		fid:     bytes.Clone(fid),
	}, nil
}

// FileIdentifier returns the file identifier, or nil if the file has none.
func (f *File) FileIdentifier() []byte {
	return f.fid
}

// Capacity returns the number of slots.
func (f *File) Capacity() int {
	return len(f.objects)
}

// Len returns the number of occupied slots.
func (f *File) Len() int {
	n := 0
	for _, o := range f.objects {
		if o != nil {
			n++
		}
	}
	return n
}

// Objects returns the occupied slots in slot order.
func (f *File) Objects() []*DataObject {
	var out []*DataObject
	for _, o := range f.objects {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// Find returns the object holding tag, or nil.
func (f *File) Find(tag []byte) *DataObject {
	for _, o := range f.objects {
		if o != nil && o.TagEquals(tag) {
			return o
		}
	}
	return nil
}

// Read returns the value stored under tag.
func (f *File) Read(tag []byte) ([]byte, bool) {
	o := f.Find(tag)
	if o == nil {
		return nil, false
	}
	return o.Value(), true
}

// Write stores value under tag. An existing object is updated in its slot;
// otherwise a new object takes the first empty slot. When the tag is new and
// every slot is taken the file is left unchanged and ErrFileFull is returned.
func (f *File) Write(tag, value []byte) error {
	open := -1
	for i, o := range f.objects {
		if o == nil {
			if open < 0 {
				open = i
			}
			continue
		}
		if o.TagEquals(tag) {
			o.SetValue(value)
			return nil
		}
	}

	if open < 0 {
		return fmt.Errorf("%w: no slot left for tag %X (%d/%d used)", ErrFileFull, tag, len(f.objects), len(f.objects))
	}

	o := NewDataObject(tag)
	o.SetValue(value)
	f.objects[open] = o
	return nil
}
