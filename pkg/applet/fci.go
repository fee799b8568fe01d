package applet

import (
	"fmt"

	"github.com/gregLibert/isosceles/pkg/cardfs"
)

// FCI layout returned on selection:
//
//	6F L  [83 02 FID]  [84 n DF-name]
const (
	tagFCITemplate    = 0x6F
	tagFileIdentifier = 0x83
	tagDFName         = 0x84

	fciBufferSize   = 32
	fciLengthOffset = 1
)

// buildFCI writes the FCI of df into buf and returns the number of bytes used.
//
// The template length byte holds the final write offset minus its own
// position, one more than the number of bytes that follow it: 0x11 for an
// MF with a 10-byte name.
func buildFCI(buf []byte, df *cardfs.DedicatedFile) (int, error) {
	fid := df.FileIdentifier()
	name := df.Name()

	hasFID := len(fid) == 2 && (fid[0] != 0 || fid[1] != 0)

	need := 2
	if hasFID {
		need += 2 + len(fid)
	}
	if len(name) > 0 {
		need += 2 + len(name)
	}
	if need > len(buf) {
		return 0, fmt.Errorf("FCI of %d bytes does not fit a %d-byte buffer", need, len(buf))
	}

	off := 0
	buf[off] = tagFCITemplate
	off++
	off++ // length, patched below

	if hasFID {
		buf[off] = tagFileIdentifier
		buf[off+1] = byte(len(fid))
		off += 2
		off += copy(buf[off:], fid)
	}

	if len(name) > 0 {
		buf[off] = tagDFName
		buf[off+1] = byte(len(name))
		off += 2
		off += copy(buf[off:], name)
	}

	buf[fciLengthOffset] = byte(off - fciLengthOffset)
	return off, nil
}
