package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/isosceles/pkg/tlv"
)

// DataResult represents the outcome of a PUT DATA or GET DATA exchange.
type DataResult struct {
	Trace
}

func NewDataResult(t Trace) (*DataResult, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("cannot create result from empty trace")
	}

	switch t[0].Command.Instruction.Raw {
	case INS_PUT_DATA_BER, INS_GET_DATA_BER:
	default:
		return nil, fmt.Errorf("trace must start with PUT DATA or GET DATA command (got %02X)", t[0].Command.Instruction.Raw)
	}

	return &DataResult{Trace: t}, nil
}

// Records decodes the data field of the initial command as TLV records.
func (r *DataResult) Records() ([]tlv.Record, error) {
	return tlv.Records(r.Trace[0].Command.Data)
}

// Describe generates a detailed, ASCII-formatted report of the exchange.
func (r *DataResult) Describe() string {
	var sb strings.Builder

	tx0 := r.Trace[0]
	cmd := tx0.Command

	name := "PUT DATA"
	if cmd.Instruction.Raw == INS_GET_DATA_BER {
		name = "GET DATA"
	}

	sb.WriteString(fmt.Sprintf("=== %s COMMAND REPORT ===\n", name))
	sb.WriteString(fmt.Sprintf("[1] Command: %s\n", name))

	targetStr := DataTarget(cmd.P2).String()
	if cmd.P1 != FileReservedP1 {
		targetStr = fmt.Sprintf("P1-P2 %02X%02X (not a file reference)", cmd.P1, cmd.P2)
	}
	sb.WriteString(fmt.Sprintf("    + Target:  %s\n", targetStr))

	if cmd.Instruction.Raw == INS_GET_DATA_BER {
		sb.WriteString(fmt.Sprintf("    + Tag:     %X\n", cmd.Data))
	} else if records, err := r.Records(); err != nil {
		sb.WriteString(fmt.Sprintf("    - Body:    %X (%v)\n", cmd.Data, err))
	} else {
		for _, rec := range records {
			sb.WriteString(fmt.Sprintf("    + Record:  %X = %X (%q)\n", rec.Tag, rec.Value, tlv.MakeSafeASCII(rec.Value)))
		}
	}

	sb.WriteString(fmt.Sprintf("    + Result:  %s\n", describeStatus(tx0.Response.Status)))
	sb.WriteString("\n")

	lastTx := r.Last()
	finalPayload := lastTx.Response.Data

	if len(r.Trace) > 1 {
		sb.WriteString(fmt.Sprintf("[2] Protocol: Auto-handling (%d steps)\n", len(r.Trace)))
		sb.WriteString(fmt.Sprintf("    + Final SW: [%04X]\n", uint16(lastTx.Response.Status)))
	}

	sb.WriteString("[=] DATA OUTCOME:\n")
	if len(finalPayload) > 0 {
		sb.WriteString(fmt.Sprintf("    + Length: %d bytes\n", len(finalPayload)))
		sb.WriteString(fmt.Sprintf("    + Dump:   %X\n", finalPayload))
		sb.WriteString(fmt.Sprintf("    + ASCII:  %q\n", tlv.MakeSafeASCII(finalPayload)))
	} else {
		sb.WriteString("    - No Data Received.\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}
