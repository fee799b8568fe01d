package cardfs

import "bytes"

// DataObject is a tagged value stored in a file slot.
// The tag is fixed at construction; only the value changes.
type DataObject struct {
	tag   []byte
	value []byte
}

// NewDataObject creates an object for tag with no value yet.
// The tag bytes are copied.
func NewDataObject(tag []byte) *DataObject {
	return &DataObject{tag: bytes.Clone(tag)}
}

// Tag returns a copy of the object's tag.
func (o *DataObject) Tag() []byte {
	return bytes.Clone(o.tag)
}

// Value returns the stored value, or nil if the object was never written.
// The returned slice must not be modified.
func (o *DataObject) Value() []byte {
	return o.value
}

// SetValue replaces the stored value with a copy of value.
func (o *DataObject) SetValue(value []byte) {
	if value == nil {
		value = []byte{}
	}
	o.value = bytes.Clone(value)
}

// TagEquals reports whether the object's tag is exactly tag (length and bytes).
func (o *DataObject) TagEquals(tag []byte) bool {
	return bytes.Equal(o.tag, tag)
}
