// Package sim runs an applet in-process behind the iso7816.Transmitter
// interface, so host code can drive it exactly like a card in a reader.
//
// The simulator plays the role of the card runtime: it parses raw C-APDUs,
// turns a SELECT by DF name of the installed AID into the selection event,
// and feeds the command body to the applet in chunks no larger than the
// configured maximum.
package sim

import (
	"bytes"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gregLibert/isosceles/pkg/applet"
	"github.com/gregLibert/isosceles/pkg/iso7816"
)

// DefaultMaxChunkSize is the largest body chunk delivered per read when
// Options leaves it unset.
const DefaultMaxChunkSize = 255

// Options configures a simulated card.
type Options struct {
	// MaxChunkSize bounds the bytes the applet receives per body read.
	MaxChunkSize int

	// Logger receives one debug record per exchange. Nil disables logging.
	Logger *slog.Logger
}

// Card is a simulated card holding one applet. It is safe for concurrent use;
// commands are processed one at a time.
type Card struct {
	mu     sync.Mutex
	applet *applet.Applet
	chunk  int
	log    *slog.Logger
}

var _ iso7816.Transmitter = (*Card)(nil)

// New inserts a in a simulated card.
func New(a *applet.Applet, opts Options) (*Card, error) {
	if opts.MaxChunkSize < 0 {
		return nil, fmt.Errorf("negative chunk size %d", opts.MaxChunkSize)
	}
	if opts.MaxChunkSize == 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	return &Card{applet: a, chunk: opts.MaxChunkSize, log: opts.Logger}, nil
}

// Applet returns the applet running on the card.
func (c *Card) Applet() *applet.Applet {
	return c.applet
}

// Transmit processes one raw C-APDU and returns the raw R-APDU. Malformed
// commands are answered with a status word; the error is reserved for
// transport failures, which a simulated card does not have.
func (c *Card) Transmit(raw []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp := c.process(raw)
	out := resp.Bytes()

	c.log.Debug("apdu",
		slog.String("command", fmt.Sprintf("%X", raw)),
		slog.String("response", fmt.Sprintf("%X", out)),
	)
	return out, nil
}

// Reset deselects the applet, as a card reset or power cycle would.
func (c *Card) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applet.Deselect()
}

func (c *Card) process(raw []byte) *iso7816.ResponseAPDU {
	cmd, err := iso7816.ParseCommandAPDU(raw)
	if err != nil {
		c.log.Warn("unparseable command", slog.String("command", fmt.Sprintf("%X", raw)), slog.Any("error", err))
		return &iso7816.ResponseAPDU{Status: iso7816.SW_ERR_WRONG_LENGTH}
	}

	selecting := false
	if iso7816.IsSelectByDFName(cmd) {
		if !bytes.Equal(cmd.Data, c.applet.AID()) {
			// Another application was asked for; this one loses the selection.
			c.applet.Deselect()
			return &iso7816.ResponseAPDU{Status: iso7816.SW_ERR_FILE_NOT_FOUND}
		}
		selecting = true
	}

	return c.applet.Process(&applet.CommandExchange{
		Command:   cmd,
		Selection: selecting,
		ChunkSize: c.chunk,
	})
}
