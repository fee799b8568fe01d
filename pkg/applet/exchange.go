package applet

import (
	"io"

	"github.com/gregLibert/isosceles/pkg/iso7816"
)

// Exchange is the view of one inbound command offered by the transport.
type Exchange interface {
	// Header returns CLA, INS, P1 and P2 as received.
	Header() iso7816.Header

	// IncomingLength returns Lc, the declared length of the body.
	IncomingLength() int

	// Body returns the command data. Transports may deliver it in chunks,
	// so a single Read can return fewer bytes than are pending.
	Body() io.Reader

	// ExpectedLength returns Ne; zero when the command carries no Le.
	ExpectedLength() int

	// Selecting reports whether the command is the selection event for this
	// application.
	Selecting() bool
}

// CommandExchange adapts a parsed command to Exchange.
type CommandExchange struct {
	Command *iso7816.CommandAPDU

	// Selection marks the command as the selection event.
	Selection bool

	// ChunkSize bounds the bytes returned by one Read of Body. Zero delivers
	// the body in one piece.
	ChunkSize int
}

func (c *CommandExchange) Header() iso7816.Header { return c.Command.Header() }
func (c *CommandExchange) IncomingLength() int { return len(c.Command.Data) }
func (c *CommandExchange) ExpectedLength() int { return c.Command.Ne }
func (c *CommandExchange) Selecting() bool { return c.Selection }

func (c *CommandExchange) Body() io.Reader {
	return &chunkReader{data: c.Command.Data, size: c.ChunkSize}
}

// chunkReader hands out at most size bytes per Read.
type chunkReader struct {
	data []byte
	size int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	if r.size > 0 && len(p) > r.size {
		p = p[:r.size]
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}
