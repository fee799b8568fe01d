package iso7816

import (
	"fmt"

	"github.com/gregLibert/isosceles/pkg/tlv"
)

// DATA OBJECT COMMANDS (ISO 7816-4):
// PUT DATA (INS 'DB') stores BER-TLV data objects in a file; GET DATA (INS 'CB')
// retrieves one of them.
//
// With the odd INS codes, P1-P2 designate the target file:
// - P1 = '3F': reserved file identifier space.
// - P2 = '00': the Master File.
// - P2 = 'FF': the current Dedicated File.
//
// The PUT DATA body is a concatenation of TLV records. Each record is written
// independently: an existing tag is updated, a new tag takes a free slot.
//
// The GET DATA body holds a single tag list; the card answers with the value.

// FileReservedP1 is the P1 value that selects the reserved file identifier space.
const FileReservedP1 byte = 0x3F

// DataTarget is the P2 value naming the file a data object command operates on.
type DataTarget byte

const (
	TargetMasterFile DataTarget = 0x00
	TargetCurrentDF  DataTarget = 0xFF
)

func (t DataTarget) String() string {
	switch t {
	case TargetMasterFile:
		return "Master File"
	case TargetCurrentDF:
		return "Current DF"
	default:
		return fmt.Sprintf("Unknown Target (0x%02X)", byte(t))
	}
}

// NewPutDataCommand creates a PUT DATA command storing records in the target file.
// PUT DATA is a Case 3 command: data sent, no response data expected.
func NewPutDataCommand(cla Class, target DataTarget, records ...tlv.Record) (*CommandAPDU, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("PUT DATA requires at least one record")
	}

	body, err := tlv.EncodeAll(records...)
	if err != nil {
		return nil, fmt.Errorf("encoding PUT DATA body: %w", err)
	}

	ins, _ := NewInstruction(INS_PUT_DATA_BER)
	return NewCommandAPDU(cla, ins, FileReservedP1, byte(target), body, 0), nil
}

// NewGetDataCommand creates a GET DATA command reading tag from the target file.
// GET DATA is a Case 4 command; Le is set to the short maximum.
func NewGetDataCommand(cla Class, target DataTarget, tag []byte) (*CommandAPDU, error) {
	if len(tag) == 0 || len(tag) > 3 {
		return nil, fmt.Errorf("GET DATA tag must be 1 to 3 bytes, got %d", len(tag))
	}

	ins, _ := NewInstruction(INS_GET_DATA_BER)
	return NewCommandAPDU(cla, ins, FileReservedP1, byte(target), append([]byte(nil), tag...), MaxShortLe), nil
}
