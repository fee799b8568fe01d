package applet

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gregLibert/isosceles/pkg/iso7816"
	"github.com/gregLibert/isosceles/pkg/tlv"
)

// putData stores every record of the body in the target file, in order.
//
// The whole body is framed before the first write, so a malformed body
// stores nothing. A full file stops the command at the failing record;
// records before it stay written.
func (a *Applet) putData(ex Exchange) error {
	target, err := a.resolveTarget(ex.Header())
	if err != nil {
		return err
	}

	body, err := receiveBody(ex)
	if err != nil {
		return err
	}

	records, err := tlv.Records(body)
	if err != nil {
		return err
	}

	for i, r := range records {
		if err := target.Write(r.Tag, r.Value); err != nil {
			return fmt.Errorf("record %d of %d: %w", i+1, len(records), err)
		}
	}
	return nil
}

// getData returns the value stored under the single tag carried in the body.
func (a *Applet) getData(ex Exchange) ([]byte, error) {
	target, err := a.resolveTarget(ex.Header())
	if err != nil {
		return nil, err
	}

	tag, err := receiveBody(ex)
	if err != nil {
		return nil, err
	}
	if !isSingleTag(tag) {
		return nil, statusErrorf(iso7816.SW_ERR_WRONG_DATA, "body %X is not one tag", tag)
	}

	value, ok := target.Read(tag)
	if !ok {
		return nil, statusErrorf(iso7816.SW_ERR_REF_DATA_NOT_FOUND, "tag %X", tag)
	}

	if ne := ex.ExpectedLength(); ne != 0 && ne < len(value) {
		return nil, statusErrorf(iso7816.SW_ERR_WRONG_LENGTH, "Le %d shorter than value of %d bytes", ne, len(value))
	}
	return bytes.Clone(value), nil
}

// receiveBody drains exactly Lc bytes from the transport.
func receiveBody(ex Exchange) ([]byte, error) {
	buf := make([]byte, ex.IncomingLength())
	if _, err := io.ReadFull(ex.Body(), buf); err != nil {
		return nil, statusErrorf(iso7816.SW_ERR_WRONG_LENGTH, "body shorter than Lc %d: %v", len(buf), err)
	}
	return buf, nil
}

func isSingleTag(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	padded := append(bytes.Clone(b), 0x00)
	return tlv.TagFieldSize(padded, 0) == len(b)
}
