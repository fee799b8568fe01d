package applet

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"github.com/gregLibert/isosceles/pkg/cardfs"
)

// ImageVersion is the format version written by SaveImage.
const ImageVersion = 1

// ErrImageCorrupt is returned by LoadImage when the envelope does not match its payload.
var ErrImageCorrupt = errors.New("card image corrupt")

// Image is a snapshot of an installed applet: its AID and the contents of
// the Master File in slot order.
type Image struct {
	AID        []byte    `cbor:"aid"`
	MasterFile FileImage `cbor:"mf"`
}

// FileImage describes one file of an Image.
type FileImage struct {
	FID      []byte        `cbor:"fid"`
	Name     []byte        `cbor:"name,omitempty"`
	Capacity int           `cbor:"capacity"`
	Objects  []ObjectImage `cbor:"objects"`
}

// ObjectImage is one stored data object.
type ObjectImage struct {
	Tag   []byte `cbor:"tag"`
	Value []byte `cbor:"value"`
}

// imageEnvelope carries the encoded Image with a BLAKE3-256 digest of it.
type imageEnvelope struct {
	Version int    `cbor:"1,keyasint"`
	Digest  []byte `cbor:"2,keyasint"`
	Payload []byte `cbor:"3,keyasint"`
}

// encMode produces Core Deterministic Encoding (RFC 8949 §4.2), so the same
// card contents always give the same image bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("applet: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("applet: CBOR decoder initialization failed: " + err.Error())
	}
}

// Snapshot captures the current contents of the applet.
func (a *Applet) Snapshot() Image {
	mf := a.tree.MasterFile()

	img := Image{
		AID: bytes.Clone(a.aid),
		MasterFile: FileImage{
			FID:      bytes.Clone(mf.FileIdentifier()),
			Name:     bytes.Clone(mf.Name()),
			Capacity: mf.Capacity(),
			Objects:  []ObjectImage{},
		},
	}
	for _, o := range mf.Objects() {
		img.MasterFile.Objects = append(img.MasterFile.Objects, ObjectImage{
			Tag:   o.Tag(),
			Value: bytes.Clone(o.Value()),
		})
	}
	return img
}

// SaveImage writes a digest-protected snapshot of the applet to w.
func (a *Applet) SaveImage(w io.Writer) error {
	payload, err := encMode.Marshal(a.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}

	digest := blake3.Sum256(payload)
	env := imageEnvelope{
		Version: ImageVersion,
		Digest:  digest[:],
		Payload: payload,
	}

	if err := encMode.NewEncoder(w).Encode(env); err != nil {
		return fmt.Errorf("writing image: %w", err)
	}
	return nil
}

// LoadImage reads an image written by SaveImage and restores it.
func LoadImage(r io.Reader, opts Options) (*Applet, error) {
	var env imageEnvelope
	if err := decMode.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}

	if env.Version != ImageVersion {
		return nil, fmt.Errorf("%w: version %d, want %d", ErrImageCorrupt, env.Version, ImageVersion)
	}
	if digest := blake3.Sum256(env.Payload); !bytes.Equal(digest[:], env.Digest) {
		return nil, fmt.Errorf("%w: payload digest mismatch", ErrImageCorrupt)
	}

	var img Image
	if err := decMode.Unmarshal(env.Payload, &img); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageCorrupt, err)
	}
	return Restore(img, opts)
}

// Restore installs a fresh applet from img and replays its objects in slot
// order, so each object lands in the slot it was saved from. The capacity
// recorded in img overrides opts.MasterFileCapacity.
func Restore(img Image, opts Options) (*Applet, error) {
	if len(img.AID) > MaxAIDLength {
		return nil, fmt.Errorf("%w: AID of %d bytes", ErrImageCorrupt, len(img.AID))
	}
	if !bytes.Equal(img.MasterFile.FID, MasterFileID) {
		return nil, fmt.Errorf("%w: master file identifier %X", ErrImageCorrupt, img.MasterFile.FID)
	}
	if !bytes.Equal(img.MasterFile.Name, img.AID) {
		return nil, fmt.Errorf("%w: master file name %X differs from AID %X", ErrImageCorrupt, img.MasterFile.Name, img.AID)
	}
	if img.MasterFile.Capacity <= 0 || img.MasterFile.Capacity > cardfs.MaxObjects {
		return nil, fmt.Errorf("%w: master file capacity %d", ErrImageCorrupt, img.MasterFile.Capacity)
	}

	for i, o := range img.MasterFile.Objects {
		for _, prev := range img.MasterFile.Objects[:i] {
			if bytes.Equal(prev.Tag, o.Tag) {
				return nil, fmt.Errorf("%w: tag %X listed twice", ErrImageCorrupt, o.Tag)
			}
		}
	}

	opts.MasterFileCapacity = img.MasterFile.Capacity
	a, err := Install(append([]byte{byte(len(img.AID))}, img.AID...), opts)
	if err != nil {
		return nil, err
	}

	mf := a.tree.MasterFile()
	for i, o := range img.MasterFile.Objects {
		if err := mf.Write(o.Tag, o.Value); err != nil {
			return nil, fmt.Errorf("restoring object %d (tag %X): %w", i, o.Tag, err)
		}
	}
	return a, nil
}
