/*
Package cardfs models the ISO/IEC 7816-4 file hierarchy of the card: a Master
File (MF) at the root, Dedicated Files (DF) that behave like directories, and
the data objects stored inside each file.

# Storage Model

A file does not hold a byte stream. It holds a fixed number of slots, each
either empty or occupied by a DataObject (an immutable tag and a mutable
value). Writing a tag either replaces the value of the slot already holding
that tag or claims the first empty slot. There is no delete, so capacity only
ever shrinks, and a write that finds neither a match nor a free slot fails
with ErrFileFull.

	mf, _ := cardfs.NewDedicatedFile(8, []byte{0x3F, 0x00}, aid)
	_ = mf.Write([]byte{0xDE}, []byte("01234567"))
	value, ok := mf.Read([]byte{0xDE})

# Hierarchy

A DedicatedFile owns a fixed array of child slots. No command populates or
walks them yet; they are allocated so that file creation and path selection
can be added without changing the layout.

The Tree owns every DF in an arena and hands out Handles. The "current DF" and
"current application DF" are Handles into that arena, not pointers, so the
tree stays the single owner of its files.
*/
package cardfs
