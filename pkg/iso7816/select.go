package iso7816

import (
	"fmt"

	"github.com/gregLibert/isosceles/pkg/bits"
)

// SELECT (INS 'A4'):
// P1 names the selection method. P2 packs two fields: b4-b3 choose the
// response template (FCI, FCP, FMD or nothing) and b2-b1 the occurrence
// when several files match.

// SelectionMethod is the P1 of a SELECT.
type SelectionMethod byte

const (
	SelectByFileID          SelectionMethod = 0x00
	SelectChildDF           SelectionMethod = 0x01
	SelectEFUnderCurrentDF  SelectionMethod = 0x02
	SelectParentDF          SelectionMethod = 0x03
	SelectByDFName          SelectionMethod = 0x04 // application selection by AID
	SelectPathFromMF        SelectionMethod = 0x08
	SelectPathFromCurrentDF SelectionMethod = 0x09
)

var methodNames = map[SelectionMethod]string{
	SelectByFileID:          "Select by File ID",
	SelectChildDF:           "Select Child DF",
	SelectEFUnderCurrentDF:  "Select EF under current DF",
	SelectParentDF:          "Select Parent DF",
	SelectByDFName:          "Select by DF Name (AID)",
	SelectPathFromMF:        "Select Path from MF",
	SelectPathFromCurrentDF: "Select Path from Current DF",
}

func (s SelectionMethod) String() string {
	if name, ok := methodNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown Method (0x%02X)", byte(s))
}

// FileOccurrence is P2 b2-b1.
type FileOccurrence byte

const (
	FirstOrOnlyOccurrence FileOccurrence = 0b00
	LastOccurrence        FileOccurrence = 0b01
	NextOccurrence        FileOccurrence = 0b10
	PreviousOccurrence    FileOccurrence = 0b11
)

var occurrenceNames = [...]string{"First/Only", "Last", "Next", "Previous"}

func (f FileOccurrence) String() string {
	if int(f) < len(occurrenceNames) {
		return occurrenceNames[f]
	}
	return "Unknown Occurrence"
}

// SelectionControl is P2 b4-b3, kept in place (0x00, 0x04, 0x08, 0x0C).
type SelectionControl byte

const (
	ReturnFCI    SelectionControl = 0b00 << 2
	ReturnFCP    SelectionControl = 0b01 << 2
	ReturnFMD    SelectionControl = 0b10 << 2
	ReturnNoData SelectionControl = 0b11 << 2
)

var controlNames = map[SelectionControl]string{
	ReturnFCI:    "Return FCI",
	ReturnFCP:    "Return FCP",
	ReturnFMD:    "Return FMD",
	ReturnNoData: "No Response Data",
}

func (s SelectionControl) String() string {
	if name, ok := controlNames[s]; ok {
		return name
	}
	return "Unknown Control"
}

// SplitSelectP2 separates the two fields of a SELECT P2. Bits above b4 are
// ignored.
func SplitSelectP2(p2 byte) (SelectionControl, FileOccurrence) {
	return SelectionControl(p2 & bits.Mask(4, 3)), FileOccurrence(bits.GetRange(p2, 2, 1))
}

// IsSelectByDFName reports whether cmd selects an application by its AID.
func IsSelectByDFName(cmd *CommandAPDU) bool {
	return cmd.Instruction.Raw == INS_SELECT && SelectionMethod(cmd.P1) == SelectByDFName
}

// NewSelectCommand builds a SELECT.
//
// A SELECT carrying data is sent without Le: T=0 cannot carry Lc and Le
// together, and the card announces its response with '61 XX' which the
// Client follows up. Without data, Le asks for up to 256 bytes unless no
// response data was requested.
func NewSelectCommand(cla Class, method SelectionMethod, occurrence FileOccurrence, ctrl SelectionControl, data []byte) *CommandAPDU {
	ins, _ := NewInstruction(INS_SELECT)

	ne := 0
	if len(data) == 0 && ctrl != ReturnNoData {
		ne = MaxShortLe
	}
	return NewCommandAPDU(cla, ins, byte(method), byte(ctrl)|byte(occurrence), data, ne)
}

// SelectByAID selects the application named aid and asks for its FCI.
func SelectByAID(cla Class, aid []byte) *CommandAPDU {
	return NewSelectCommand(cla, SelectByDFName, FirstOrOnlyOccurrence, ReturnFCI, aid)
}

// SelectMF selects the Master File.
func SelectMF(cla Class) *CommandAPDU {
	return NewSelectCommand(cla, SelectByFileID, FirstOrOnlyOccurrence, ReturnFCI, nil)
}
