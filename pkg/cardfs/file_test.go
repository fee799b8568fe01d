package cardfs

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewFile(t *testing.T) {
	t.Run("Elementary file without children", func(t *testing.T) {
		f, err := NewFile(4, 0, []byte{0x2F, 0x01})
		if err != nil {
			t.Fatalf("NewFile failed: %v", err)
		}
		if f.Capacity() != 4 || f.Len() != 0 {
			t.Errorf("Capacity/Len = %d/%d; want 4/0", f.Capacity(), f.Len())
		}
		if !bytes.Equal(f.FileIdentifier(), []byte{0x2F, 0x01}) {
			t.Errorf("FileIdentifier = %X; want 2F01", f.FileIdentifier())
		}
	})

	t.Run("Children on a base file are unsupported", func(t *testing.T) {
		_, err := NewFile(4, 1, nil)
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("NewFile(4, 1) error = %v; want ErrUnsupported", err)
		}
	})

	t.Run("Capacity bounds", func(t *testing.T) {
		for _, n := range []int{-1, MaxObjects + 1, math.MaxInt} {
			if _, err := NewFile(n, 0, nil); err == nil {
				t.Errorf("NewFile(%d) accepted", n)
			}
			if _, err := NewDedicatedFile(n, nil, nil); err == nil {
				t.Errorf("NewDedicatedFile(%d) accepted", n)
			}
		}
		if f, err := NewFile(MaxObjects, 0, nil); err != nil || f.Capacity() != MaxObjects {
			t.Errorf("NewFile(MaxObjects) = %v, %v", f, err)
		}
	})
}

func TestFile_WriteSameTagTwice(t *testing.T) {
	f, _ := NewFile(4, 0, nil)

	if err := f.Write([]byte{0xDE}, []byte("first")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := f.Write([]byte{0xDE}, []byte("second")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	if f.Len() != 1 {
		t.Errorf("Len = %d after rewriting one tag; want 1", f.Len())
	}
	got, ok := f.Read([]byte{0xDE})
	if !ok || string(got) != "second" {
		t.Errorf("Read(DE) = %q, %v; want \"second\", true", got, ok)
	}
}

func TestFile_FindOrCreateUpToCapacity(t *testing.T) {
	const capacity = 3
	f, _ := NewFile(capacity, 0, nil)

	for i := 0; i < capacity; i++ {
		before := f.Len()
		if err := f.Write([]byte{0x80 + byte(i)}, []byte{byte(i)}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		if f.Len() != before+1 {
			t.Errorf("Len after write %d = %d; want %d", i, f.Len(), before+1)
		}
	}

	snapshot := dump(f)

	err := f.Write([]byte{0x9F}, []byte{0xFF})
	if !errors.Is(err, ErrFileFull) {
		t.Fatalf("write beyond capacity error = %v; want ErrFileFull", err)
	}
	if diff := cmp.Diff(snapshot, dump(f)); diff != "" {
		t.Errorf("failed write changed the file (-before +after):\n%s", diff)
	}

	// A full file still accepts updates to tags it already holds.
	if err := f.Write([]byte{0x81}, []byte("updated")); err != nil {
		t.Errorf("update in full file: %v", err)
	}
}

func TestFile_TagMatchIsExact(t *testing.T) {
	f, _ := NewFile(4, 0, nil)
	_ = f.Write([]byte{0x5F, 0x2D}, []byte("en"))

	tests := []struct {
		name string
		tag  []byte
		want bool
	}{
		{"Same bytes", []byte{0x5F, 0x2D}, true},
		{"Prefix only", []byte{0x5F}, false},
		{"Longer", []byte{0x5F, 0x2D, 0x00}, false},
		{"Different", []byte{0x5F, 0x2E}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.Find(tt.tag) != nil; got != tt.want {
				t.Errorf("Find(%X) found = %v; want %v", tt.tag, got, tt.want)
			}
		})
	}
}

func TestFile_WriteCopiesInput(t *testing.T) {
	f, _ := NewFile(2, 0, nil)
	tag := []byte{0xDE}
	value := []byte("abc")

	_ = f.Write(tag, value)
	tag[0] = 0x00
	value[0] = 'X'

	got, ok := f.Read([]byte{0xDE})
	if !ok || string(got) != "abc" {
		t.Errorf("Read(DE) = %q, %v; want \"abc\", true", got, ok)
	}
}

func TestFile_EmptyValueIsStored(t *testing.T) {
	f, _ := NewFile(2, 0, nil)
	_ = f.Write([]byte{0xDE}, nil)

	got, ok := f.Read([]byte{0xDE})
	if !ok {
		t.Fatal("Read(DE) not found after writing an empty value")
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Read(DE) = %#v; want empty non-nil slice", got)
	}

	if _, ok := f.Read([]byte{0xDF}); ok {
		t.Error("Read(DF) found a tag that was never written")
	}
}

func TestDataObject_TagImmutable(t *testing.T) {
	o := NewDataObject([]byte{0xDE})
	tag := o.Tag()
	tag[0] = 0x00

	if !o.TagEquals([]byte{0xDE}) {
		t.Errorf("Tag changed through the returned copy: %X", o.Tag())
	}
	if o.Value() != nil {
		t.Errorf("Value of a fresh object = %X; want nil", o.Value())
	}
}

func dump(f *File) []string {
	var out []string
	for _, o := range f.Objects() {
		out = append(out, fmt.Sprintf("%X=%X", o.Tag(), o.Value()))
	}
	return out
}
