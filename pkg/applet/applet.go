package applet

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/gregLibert/isosceles/pkg/cardfs"
	"github.com/gregLibert/isosceles/pkg/iso7816"
)

const (
	// DefaultMasterFileCapacity is the number of data objects the MF holds
	// when Options leaves it unset.
	DefaultMasterFileCapacity = 8

	// MaxAIDLength is the longest application identifier accepted at install
	// (ISO/IEC 7816-5).
	MaxAIDLength = 16

	claISO7816 byte = 0x00
)

// MasterFileID is the file identifier of the Master File.
var MasterFileID = []byte{iso7816.FileReservedP1, byte(iso7816.TargetMasterFile)}

// State is the protocol state of an applet.
type State int

const (
	AwaitingSelection State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case AwaitingSelection:
		return "AwaitingSelection"
	case Ready:
		return "Ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Options configures an applet at install time.
type Options struct {
	// MasterFileCapacity is the number of data object slots of the MF.
	// Zero means DefaultMasterFileCapacity.
	MasterFileCapacity int

	// GetData enables the GET DATA instruction.
	GetData bool

	// Logger receives one record per processed command. Nil disables logging.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MasterFileCapacity == 0 {
		o.MasterFileCapacity = DefaultMasterFileCapacity
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Applet is an installed card application. It is not safe for concurrent use.
type Applet struct {
	tree  *cardfs.Tree
	aid   []byte
	state State
	opts  Options
	log   *slog.Logger

	scratch [fciBufferSize]byte
}

// Install creates an applet from its installation parameters: a single
// length-prefixed application identifier (len || aid).
func Install(params []byte, opts Options) (*Applet, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: missing AID length", ErrInvalidParams)
	}
	n := int(params[0])
	if n > MaxAIDLength {
		return nil, fmt.Errorf("%w: AID of %d bytes exceeds %d", ErrInvalidParams, n, MaxAIDLength)
	}
	if len(params) != 1+n {
		return nil, fmt.Errorf("%w: AID length %d but %d bytes follow", ErrInvalidParams, n, len(params)-1)
	}
	aid := bytes.Clone(params[1:])

	opts = opts.withDefaults()

	mf, err := cardfs.NewDedicatedFile(opts.MasterFileCapacity, MasterFileID, aid)
	if err != nil {
		return nil, fmt.Errorf("creating master file: %w", err)
	}

	a := &Applet{
		tree:  cardfs.NewTree(mf),
		aid:   aid,
		state: AwaitingSelection,
		opts:  opts,
		log:   opts.Logger.With(slog.String("aid", fmt.Sprintf("%X", aid))),
	}
	a.log.Debug("applet installed", slog.Int("mf_capacity", mf.Capacity()))
	return a, nil
}

// AID returns the application identifier given at install.
func (a *Applet) AID() []byte {
	return a.aid
}

// MasterFile returns the root DF.
func (a *Applet) MasterFile() *cardfs.DedicatedFile {
	return a.tree.MasterFile()
}

// State returns the current protocol state.
func (a *Applet) State() State {
	return a.state
}

// Deselect returns the applet to AwaitingSelection and clears the scratch buffer.
func (a *Applet) Deselect() {
	a.state = AwaitingSelection
	clear(a.scratch[:])
}

// Process runs one command to completion and returns the response.
func (a *Applet) Process(ex Exchange) (resp *iso7816.ResponseAPDU) {
	h := ex.Header()
	attrs := []any{
		slog.String("cla", fmt.Sprintf("%02X", h.CLA)),
		slog.String("ins", iso7816.InsCode(h.INS).String()),
		slog.String("p1p2", fmt.Sprintf("%02X%02X", h.P1, h.P2)),
		slog.Int("lc", ex.IncomingLength()),
	}

	defer func() {
		if r := recover(); r != nil {
			a.log.Error("command panicked", append(attrs, slog.Any("panic", r))...)
			resp = &iso7816.ResponseAPDU{Status: iso7816.SW_ERR_UNKNOWN}
		}
	}()

	data, err := a.dispatch(ex)
	if err != nil {
		sw := statusOf(err)
		a.log.Warn("command failed", append(attrs, slog.String("sw", sw.String()), slog.Any("error", err))...)
		return &iso7816.ResponseAPDU{Status: sw}
	}

	a.log.Debug("command processed", append(attrs, slog.Int("le", len(data)), slog.String("sw", iso7816.SW_NO_ERROR.String()))...)
	return &iso7816.ResponseAPDU{Data: data, Status: iso7816.SW_NO_ERROR}
}

func (a *Applet) dispatch(ex Exchange) ([]byte, error) {
	h := ex.Header()

	// Only inter-industry classes are handled.
	if cls, err := iso7816.NewClass(h.CLA); err != nil || cls.IsProprietary {
		return nil, statusErrorf(iso7816.SW_ERR_CLA_NOT_SUPPORTED, "proprietary class %02X", h.CLA)
	}

	if ex.Selecting() {
		return a.selectMasterFile(ex)
	}

	if a.state != Ready {
		return nil, statusErrorf(iso7816.SW_ERR_APPLET_NOT_SELECTED, "instruction %02X before selection", h.INS)
	}

	switch iso7816.InsCode(h.INS) {
	case iso7816.INS_PUT_DATA_BER:
		return nil, a.putData(ex)
	case iso7816.INS_GET_DATA_BER:
		if a.opts.GetData {
			return a.getData(ex)
		}
	}

	return nil, statusErrorf(iso7816.SW_ERR_INS_NOT_SUPPORTED, "instruction %02X", h.INS)
}

// selectMasterFile answers the selection event with the FCI of the MF.
func (a *Applet) selectMasterFile(ex Exchange) ([]byte, error) {
	a.state = AwaitingSelection

	n, err := buildFCI(a.scratch[:], a.tree.MasterFile())
	if err != nil {
		return nil, err
	}

	if ne := ex.ExpectedLength(); ne != 0 && ne < n {
		return nil, statusErrorf(iso7816.SW_ERR_WRONG_LENGTH, "Le %d shorter than FCI of %d bytes", ne, n)
	}
	if cla := ex.Header().CLA; cla != claISO7816 {
		return nil, statusErrorf(iso7816.SW_ERR_CLA_NOT_SUPPORTED, "selection with class %02X", cla)
	}

	a.state = Ready
	return bytes.Clone(a.scratch[:n]), nil
}

// resolveTarget maps P1/P2 to a DF, after checking the class byte.
func (a *Applet) resolveTarget(h iso7816.Header) (*cardfs.DedicatedFile, error) {
	if h.CLA != claISO7816 {
		return nil, statusErrorf(iso7816.SW_ERR_CLA_NOT_SUPPORTED, "class %02X", h.CLA)
	}

	if h.P1 == iso7816.FileReservedP1 {
		switch iso7816.DataTarget(h.P2) {
		case iso7816.TargetMasterFile:
			return a.tree.MasterFile(), nil
		case iso7816.TargetCurrentDF:
			return a.tree.CurrentDedicatedFile(), nil
		}
	}

	return nil, statusErrorf(iso7816.SW_ERR_INCORRECT_P1P2, "P1-P2 %02X%02X does not name a file", h.P1, h.P2)
}
