package iso7816

import (
	"bytes"
	"fmt"
	"reflect"
	"strings"

	"github.com/gregLibert/isosceles/pkg/bits"
	"github.com/gregLibert/isosceles/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// FILE CONTROL INFORMATION (ISO/IEC 7816-4, 7.4):
// The data returned by SELECT depends on P2 b4-b3.
//   - FCI: '6F' wrapping '62' (FCP) and/or '64' (FMD), or wrapping the data
//     objects directly. Some cards drop the '6F' wrapper altogether.
//   - FCP: a mandatory '62' template of file attributes.
//   - FMD: a mandatory '64' template of management data.
// A first byte of 'C0' or above is a proprietary answer and is kept raw.

const (
	tagFCI = "6F"
	tagFCP = "62"
	tagFMD = "64"
)

// FCPTemplate holds the file control parameters (tag '62').
type FCPTemplate struct {
	DataSizeExcludingStruct []byte `tlv:"80" fmt:"int"`
	TotalFileSize           []byte `tlv:"81" fmt:"int"`
	FileDescriptor          []byte `tlv:"82"`
	FileIdentifier          []byte `tlv:"83"`
	DFName                  []byte `tlv:"84" fmt:"ascii"`
	ProprietaryInfoRaw      []byte `tlv:"85"`
	ShortEFIdentifier       []byte `tlv:"88"`
	LifeCycleStatus         []byte `tlv:"8A"`
	SecurityAttrCompact     []byte `tlv:"8C"`
	ProprietaryDataBER      []byte `tlv:"A5"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// FMDTemplate holds the file management data (tag '64').
type FMDTemplate struct {
	ApplicationIdentifier []byte `tlv:"84" fmt:"ascii"`
	ApplicationLabel      []byte `tlv:"50" fmt:"ascii"`
	ProprietaryData53     []byte `tlv:"53"`
	ProprietaryData73     []byte `tlv:"73"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// FileControlInfo is the decoded answer to a SELECT. A template the answer
// did not carry is nil.
type FileControlInfo struct {
	FCP *FCPTemplate
	FMD *FMDTemplate

	// Unknown holds the objects of a wrapper-less FCI that neither template
	// claims.
	Unknown []bertlv.TLV

	ProprietaryRawData []byte

	// LengthOverstatement is how many bytes the outer template length claims
	// beyond the end of the response. Zero for a well-formed answer.
	LengthOverstatement int
}

// AID returns the DF name from the FCP, falling back to the FMD application
// identifier.
func (fci *FileControlInfo) AID() []byte {
	if fci.FCP != nil && len(fci.FCP.DFName) > 0 {
		return fci.FCP.DFName
	}
	if fci.FMD != nil {
		return fci.FMD.ApplicationIdentifier
	}
	return nil
}

// FileIdentifier returns tag '83' of the FCP.
func (fci *FileControlInfo) FileIdentifier() []byte {
	if fci.FCP == nil {
		return nil
	}
	return fci.FCP.FileIdentifier
}

// ApplicationLabel returns tag '50' of the FMD.
func (fci *FileControlInfo) ApplicationLabel() []byte {
	if fci.FMD == nil {
		return nil
	}
	return fci.FMD.ApplicationLabel
}

// ParseSelectData decodes the data field of a SELECT response issued with p2.
// It returns nil without error when there is nothing to decode.
func ParseSelectData(data []byte, p2 byte) (*FileControlInfo, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] >= 0xC0 {
		return &FileControlInfo{ProprietaryRawData: bytes.Clone(data)}, nil
	}

	ctrl, _ := SplitSelectP2(p2)
	if ctrl == ReturnNoData {
		return nil, nil
	}

	packets, overstated, err := decodeResponse(data)
	if err != nil {
		return nil, err
	}

	fci := &FileControlInfo{LengthOverstatement: overstated}

	switch ctrl {
	case ReturnFCP:
		fci.FCP = &FCPTemplate{}
		return fci, mandatoryTemplate(packets, tagFCP, fci.FCP)
	case ReturnFMD:
		fci.FMD = &FMDTemplate{}
		return fci, mandatoryTemplate(packets, tagFMD, fci.FMD)
	}

	content := packets
	if wrapper := findPacket(packets, tagFCI); wrapper != nil {
		content = wrapper.TLVs
	}

	fcp, fmd := &FCPTemplate{}, &FMDTemplate{}
	hasFCP, err := fromTemplate(content, tagFCP, fcp)
	if err != nil {
		return nil, err
	}
	hasFMD, err := fromTemplate(content, tagFMD, fmd)
	if err != nil {
		return nil, err
	}

	if !hasFCP && !hasFMD {
		// No template: the objects sit directly in the FCI. The FCP takes
		// what it knows, the FMD what is left, the rest stays unknown.
		if err := tlv.UnmarshalFromPackets(content, fcp); err != nil {
			return nil, fmt.Errorf("flat FCP unmarshal failed: %w", err)
		}
		rest := fcp.Unknown
		fcp.Unknown = nil
		if err := tlv.UnmarshalFromPackets(rest, fmd); err != nil {
			return nil, fmt.Errorf("flat FMD unmarshal failed: %w", err)
		}
		fci.Unknown, fmd.Unknown = fmd.Unknown, nil
		hasFCP = !reflect.ValueOf(*fcp).IsZero()
		hasFMD = !reflect.ValueOf(*fmd).IsZero()
	}

	if hasFCP {
		fci.FCP = fcp
	}
	if hasFMD {
		fci.FMD = fmd
	}
	return fci, nil
}

// decodeResponse decodes data with bertlv. A lone template whose length
// byte overstates what follows, as in the emulated applet's FCI, has its
// children decoded from the bytes actually present.
func decodeResponse(data []byte) ([]bertlv.TLV, int, error) {
	if n := overstatement(data); n > 0 {
		children, err := bertlv.Decode(data[2:])
		if err != nil {
			return nil, 0, fmt.Errorf("BER-TLV decode failed: %w", err)
		}
		return []bertlv.TLV{{Tag: fmt.Sprintf("%02X", data[0]), TLVs: children}}, n, nil
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, 0, fmt.Errorf("BER-TLV decode failed: %w", err)
	}
	return packets, 0, nil
}

// overstatement returns how many bytes the short-form length of a
// constructed template with a one-byte tag claims beyond the end of data.
func overstatement(data []byte) int {
	if len(data) < 2 || tlv.TagFieldSize(data, 0) != 1 || !bits.IsSet(data[0], 6) || bits.IsSet(data[1], 8) {
		return 0
	}
	if n := int(data[1]) - (len(data) - 2); n > 0 {
		return n
	}
	return 0
}

func mandatoryTemplate(packets []bertlv.TLV, tag string, target any) error {
	found, err := fromTemplate(packets, tag, target)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("mandatory tag '%s' not found", tag)
	}
	return nil
}

// fromTemplate maps the children of the first packet tagged tag into target.
func fromTemplate(packets []bertlv.TLV, tag string, target any) (bool, error) {
	p := findPacket(packets, tag)
	if p == nil {
		return false, nil
	}
	if err := tlv.UnmarshalFromPackets(p.TLVs, target); err != nil {
		return true, fmt.Errorf("template '%s': %w", tag, err)
	}
	return true, nil
}

func findPacket(packets []bertlv.TLV, tag string) *bertlv.TLV {
	for i := range packets {
		if strings.EqualFold(packets[i].Tag, tag) {
			return &packets[i]
		}
	}
	return nil
}
