package tlv

import (
	"errors"
	"fmt"

	"github.com/gregLibert/isosceles/pkg/bits"
)

// CARD-SIDE TAG/LENGTH DECODING:
// The card does not decode a full BER-TLV tree. It only needs to know, at a
// given offset, how many bytes the tag occupies, how many bytes the length
// occupies, and how long the value is, so it can carve consecutive records
// out of a command body.
//
// TAG FIELD (X.690 8.1.2):
//   - b5-b1 of the first byte != 11111: the tag is that single byte.
//   - b5-b1 == 11111: the tag number follows. If b8 of the second byte is
//     set another byte follows (3-byte tag), otherwise the tag ends there.
//     Tags needing a fourth byte are not supported.
//
// LENGTH FIELD:
//   - b8 clear: short form, the byte itself is the length (0-127).
//   - b8 set: a 2-byte length field. Both bytes are read as a big-endian
//     16-bit value, b8 of the first byte included. This is not the X.690
//     long form ('82 01 00' would mean 256 there); it is the decoding the
//     card applet has always used and existing command vectors depend on it.

const (
	tagSingle = 1
	tagDouble = 2
	tagTriple = 3

	lengthShort = 1
	lengthLong  = 2

	// MaxShortValue is the largest value length the short length form encodes.
	MaxShortValue = 0x7F
)

// ErrMalformed reports a record whose fields run past the end of the buffer.
var ErrMalformed = errors.New("malformed tlv record")

// TagFieldSize returns the number of bytes (1, 2 or 3) taken by the tag
// starting at buf[off]. The caller guarantees buf[off] exists, and buf[off+1]
// when the first byte carries the high tag number escape.
func TagFieldSize(buf []byte, off int) int {
	if !bits.AllSet(buf[off], 5, 1) {
		return tagSingle
	}
	if bits.IsSet(buf[off+1], 8) {
		return tagTriple
	}
	return tagDouble
}

// LengthFieldSize returns the number of bytes (1 or 2) taken by the length
// field starting at buf[off].
func LengthFieldSize(buf []byte, off int) int {
	if bits.IsSet(buf[off], 8) {
		return lengthLong
	}
	return lengthShort
}

// ValueLength decodes the length field starting at buf[off].
// The 2-byte form keeps b8 of the first byte, so '82 00' decodes to 0x8200.
func ValueLength(buf []byte, off int) int {
	if LengthFieldSize(buf, off) == lengthShort {
		return int(buf[off])
	}
	return int(buf[off])<<8 | int(buf[off+1])
}

// Record is one tag/value pair carved out of a buffer.
// Both slices alias the scanned buffer.
type Record struct {
	Tag   []byte
	Value []byte
}

// Records splits buf into back-to-back records starting at offset 0.
// Every field is bounds-checked before it is decoded, and the whole record
// must fit in buf before its value is taken. The first violation fails the
// scan: callers get either every record or an error wrapping ErrMalformed.
func Records(buf []byte) ([]Record, error) {
	var records []Record

	for off := 0; off < len(buf); {
		if bits.AllSet(buf[off], 5, 1) && off+1 >= len(buf) {
			return nil, fmt.Errorf("%w: tag at offset %d truncated", ErrMalformed, off)
		}
		tagSize := TagFieldSize(buf, off)

		lengthOff := off + tagSize
		if lengthOff >= len(buf) {
			return nil, fmt.Errorf("%w: no length field after tag at offset %d", ErrMalformed, off)
		}
		lengthSize := LengthFieldSize(buf, lengthOff)
		if lengthOff+lengthSize > len(buf) {
			return nil, fmt.Errorf("%w: length field at offset %d truncated", ErrMalformed, lengthOff)
		}
		valueLen := ValueLength(buf, lengthOff)

		valueOff := lengthOff + lengthSize
		end := valueOff + valueLen
		if end > len(buf) {
			return nil, fmt.Errorf("%w: value of %d bytes at offset %d overruns %d-byte buffer",
				ErrMalformed, valueLen, valueOff, len(buf))
		}

		records = append(records, Record{
			Tag:   buf[off:lengthOff],
			Value: buf[valueOff:end],
		})
		off = end
	}

	return records, nil
}

// Encode serialises a record in the form the card decodes back unchanged:
// the tag as given followed by a short-form length. Values longer than
// MaxShortValue are rejected because the card's 2-byte length decoding would
// read them as a different length.
func Encode(r Record) ([]byte, error) {
	if len(r.Tag) == 0 {
		return nil, fmt.Errorf("empty tag")
	}
	// One spare byte so a lone escape byte decodes instead of indexing out of range.
	padded := make([]byte, len(r.Tag)+1)
	copy(padded, r.Tag)
	if size := TagFieldSize(padded, 0); size != len(r.Tag) {
		return nil, fmt.Errorf("tag %X does not match its own encoding (%d bytes declared)", r.Tag, size)
	}
	if len(r.Value) > MaxShortValue {
		return nil, fmt.Errorf("value of %d bytes exceeds short form maximum %d", len(r.Value), MaxShortValue)
	}

	out := make([]byte, 0, len(r.Tag)+1+len(r.Value))
	out = append(out, r.Tag...)
	out = append(out, byte(len(r.Value)))
	return append(out, r.Value...), nil
}

// EncodeAll concatenates the encodings of records, as a PUT DATA body.
func EncodeAll(records ...Record) ([]byte, error) {
	var out []byte
	for i, r := range records {
		enc, err := Encode(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		out = append(out, enc...)
	}
	return out, nil
}
