package iso7816

import (
	"fmt"

	"github.com/gregLibert/isosceles/pkg/bits"
)

// CLASS BYTE (ISO/IEC 7816-4, 5.4.1):
//
//	b8 = 1              proprietary class; nothing else is defined.
//	b8 b7 = 00          first interindustry range, logical channels 0-3:
//	                      b5 chaining, b4-b3 secure messaging, b2-b1 channel.
//	b8 b7 = 01          further interindustry range, logical channels 4-19:
//	                      b6 secure messaging, b5 chaining, b4-b1 channel - 4.
//
// 0xFF is reserved: T=0 uses it for PPS and it is never a valid CLA.

// SecureMessaging is the secure messaging indication of an interindustry CLA.
type SecureMessaging int

const (
	SMNone         SecureMessaging = 0 // no SM, or no indication
	SMProprietary  SecureMessaging = 1 // first range only
	SMHeaderNoProc SecureMessaging = 2 // ISO SM, header not processed
	SMHeaderAuth   SecureMessaging = 3 // ISO SM, header authenticated; first range only
)

var smNames = map[SecureMessaging]string{
	SMNone:         "None",
	SMProprietary:  "Proprietary",
	SMHeaderNoProc: "ISO (Header not processed)",
	SMHeaderAuth:   "ISO (Header authenticated)",
}

func (s SecureMessaging) String() string {
	if name, ok := smNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Unknown SM (%d)", int(s))
}

const (
	firstRangeLastChannel = 3
	lastChannel           = 19
	furtherRangeOffset    = 4
)

// Class is a decoded CLA byte.
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8
}

// NewClass decodes a raw CLA byte.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}
	if bits.IsSet(cla, 8) {
		return Class{Raw: cla, IsProprietary: true}, nil
	}

	c := Class{Raw: cla, IsChained: bits.IsSet(cla, 5)}
	if bits.IsSet(cla, 7) {
		c.Channel = bits.GetRange(cla, 4, 1) + furtherRangeOffset
		if bits.IsSet(cla, 6) {
			c.SecureMessaging = SMHeaderNoProc
		}
		return c, nil
	}

	c.Channel = bits.GetRange(cla, 2, 1)
	c.SecureMessaging = SecureMessaging(bits.GetRange(cla, 4, 3))
	return c, nil
}

// NewInterindustryClass builds an interindustry class. Channels 0-3 use the
// first range encoding and 4-19 the further range, which only knows SMNone
// and SMHeaderNoProc.
func NewInterindustryClass(isChained bool, sm SecureMessaging, channel uint8) (Class, error) {
	if channel > lastChannel {
		return Class{}, fmt.Errorf("channel %d out of range (max %d)", channel, lastChannel)
	}
	if sm < SMNone || sm > SMHeaderAuth {
		return Class{}, fmt.Errorf("unknown SM indicator %d", sm)
	}
	if channel > firstRangeLastChannel && sm != SMNone && sm != SMHeaderNoProc {
		return Class{}, fmt.Errorf("SM indicator %d not supported for further interindustry range (ch 4-19)", sm)
	}

	c := Class{IsChained: isChained, SecureMessaging: sm, Channel: channel}
	raw, err := c.Encode()
	if err != nil {
		return Class{}, err
	}
	c.Raw = raw
	return c, nil
}

// Encode returns the CLA byte. A proprietary class encodes as its raw byte.
func (c *Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}
	if c.Channel > lastChannel {
		return 0, fmt.Errorf("channel %d out of range (max %d)", c.Channel, lastChannel)
	}

	var cla byte
	if c.IsChained {
		cla = bits.Set(cla, 5)
	}

	if c.Channel <= firstRangeLastChannel {
		return cla | byte(c.SecureMessaging)<<2 | c.Channel, nil
	}

	cla = bits.Set(cla, 7)
	if c.SecureMessaging != SMNone {
		cla = bits.Set(cla, 6)
	}
	return cla | (c.Channel - furtherRangeOffset), nil
}

// Verbose describes the class on several lines.
func (c Class) Verbose() string {
	if c.IsProprietary {
		return fmt.Sprintf("Class: Proprietary (0x%02X)", c.Raw)
	}

	rng := "First Interindustry (Ch 0-3)"
	if c.Channel > firstRangeLastChannel {
		rng = "Further Interindustry (Ch 4-19)"
	}
	chaining := "Last or only command"
	if c.IsChained {
		chaining = "More commands follow (Chaining)"
	}

	return fmt.Sprintf("Range: %s\nChaining: %s\nSecure Messaging: %s\nLogical Channel: %d",
		rng, chaining, c.SecureMessaging, c.Channel)
}
