package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/ebfe/scard"
	"github.com/spf13/pflag"

	"github.com/gregLibert/isosceles/pkg/applet"
	"github.com/gregLibert/isosceles/pkg/config"
	"github.com/gregLibert/isosceles/pkg/iso7816"
	"github.com/gregLibert/isosceles/pkg/sim"
	"github.com/gregLibert/isosceles/pkg/tlv"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		target     string
		puts       []string
		gets       []string
	)

	flagSet := pflag.NewFlagSet("isosceles", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to isosceles.yaml (default: $"+config.EnvVar+")")
	flagSet.String("reader", "", "PC/SC reader name, \"*\" for the first reader (default: simulated card)")
	flagSet.String("aid", "", "application identifier in hex")
	flagSet.String("image", "", "card image loaded before and saved after the session (simulator only)")
	flagSet.StringVar(&target, "file", "mf", "target of PUT/GET DATA: mf or current")
	flagSet.StringArrayVar(&puts, "put", nil, "data object to store, TAG=HEX (repeatable)")
	flagSet.StringArrayVar(&gets, "get", nil, "tag to read back with GET DATA, in hex (repeatable)")
	flagSet.Int("chunk", 0, "maximum body chunk delivered to the simulated applet")
	flagSet.Bool("get-data", false, "enable GET DATA on the simulated applet")
	flagSet.String("log-level", "", "debug, info, warn or error")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	applyFlags(flagSet, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dataTarget, err := parseTarget(target)
	if err != nil {
		return err
	}
	records, err := parsePuts(puts)
	if err != nil {
		return err
	}
	aid, _ := cfg.AIDBytes()

	// --- 1. Transport Setup ---
	var (
		card      iso7816.Transmitter
		simulated *sim.Card
	)
	if cfg.Transport.Reader != "" {
		ctx, reader, err := connectToCard(cfg.Transport.Reader)
		if err != nil {
			return err
		}
		defer func() {
			if err := reader.Disconnect(scard.LeaveCard); err != nil {
				logger.Warn("failed to disconnect card", slog.Any("error", err))
			}
			if err := ctx.Release(); err != nil {
				logger.Warn("failed to release context", slog.Any("error", err))
			}
		}()
		card = reader
	} else {
		simulated, err = openSimulator(cfg, aid, logger)
		if err != nil {
			return err
		}
		card = simulated
	}

	// --- 2. Logic Setup ---
	client := iso7816.NewClient(card)
	client.Logger = logger
	cls, _ := iso7816.NewClass(0x00)

	// --- 3. Execution Flow ---
	if err := step1Select(client, cls, aid); err != nil {
		return err
	}
	if len(records) > 0 {
		if err := step2PutData(client, cls, dataTarget, records); err != nil {
			return err
		}
	}
	for _, tag := range gets {
		if err := step3GetData(client, cls, dataTarget, tag); err != nil {
			return err
		}
	}

	if simulated != nil && cfg.Image != "" {
		if err := saveImage(simulated.Applet(), cfg.Image); err != nil {
			return err
		}
		logger.Info("card image saved", slog.String("path", cfg.Image))
	}

	fmt.Println("\n>> Session Finished Successfully")
	return nil
}

// applyFlags overrides configuration values with the flags given on the command line.
func applyFlags(flagSet *pflag.FlagSet, cfg *config.Config) {
	if flagSet.Changed("reader") {
		cfg.Transport.Reader, _ = flagSet.GetString("reader")
	}
	if flagSet.Changed("aid") {
		cfg.Applet.AID, _ = flagSet.GetString("aid")
	}
	if flagSet.Changed("image") {
		cfg.Image, _ = flagSet.GetString("image")
	}
	if flagSet.Changed("chunk") {
		cfg.Transport.MaxChunkSize, _ = flagSet.GetInt("chunk")
	}
	if flagSet.Changed("get-data") {
		cfg.Applet.GetData, _ = flagSet.GetBool("get-data")
	}
	if flagSet.Changed("log-level") {
		cfg.Log.Level, _ = flagSet.GetString("log-level")
	}
}

func parseTarget(s string) (iso7816.DataTarget, error) {
	switch strings.ToLower(s) {
	case "mf":
		return iso7816.TargetMasterFile, nil
	case "current":
		return iso7816.TargetCurrentDF, nil
	default:
		return 0, fmt.Errorf("--file must be mf or current, got %q", s)
	}
}

// parsePuts decodes TAG=HEX arguments.
func parsePuts(puts []string) ([]tlv.Record, error) {
	var records []tlv.Record
	for _, p := range puts {
		tagHex, valueHex, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("--put %q: want TAG=HEX", p)
		}
		tag, err := tlv.ParseHex(tagHex)
		if err != nil {
			return nil, fmt.Errorf("--put %q: tag: %w", p, err)
		}
		value, err := tlv.ParseHex(valueHex)
		if err != nil {
			return nil, fmt.Errorf("--put %q: value: %w", p, err)
		}
		records = append(records, tlv.Record{Tag: tag, Value: value})
	}
	return records, nil
}

// connectToCard handles the PC/SC context establishment and reader connection.
func connectToCard(name string) (*scard.Context, *scard.Card, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, nil, fmt.Errorf("establishing PC/SC context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		_ = ctx.Release()
		return nil, nil, fmt.Errorf("no smart card reader found")
	}

	reader := ""
	for _, r := range readers {
		if name == "*" || r == name {
			reader = r
			break
		}
	}
	if reader == "" {
		_ = ctx.Release()
		return nil, nil, fmt.Errorf("reader %q not found (available: %s)", name, strings.Join(readers, ", "))
	}

	fmt.Printf(">> Using reader: %s\n", reader)

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors (Error 57)
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		_ = ctx.Release()
		return nil, nil, fmt.Errorf("connecting to card: %w", err)
	}

	return ctx, card, nil
}

// openSimulator installs the applet, from the card image when one exists.
func openSimulator(cfg *config.Config, aid []byte, logger *slog.Logger) (*sim.Card, error) {
	opts := cfg.AppletOptions(logger.With(slog.String("component", "applet")))

	var a *applet.Applet
	if cfg.Image != "" {
		f, err := os.Open(cfg.Image)
		switch {
		case err == nil:
			a, err = applet.LoadImage(f, opts)
			f.Close()
			if err != nil {
				return nil, fmt.Errorf("loading card image %s: %w", cfg.Image, err)
			}
			logger.Info("card image loaded", slog.String("path", cfg.Image), slog.Int("objects", a.MasterFile().Len()))
		case !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("opening card image: %w", err)
		}
	}

	if a == nil {
		var err error
		a, err = applet.Install(append([]byte{byte(len(aid))}, aid...), opts)
		if err != nil {
			return nil, fmt.Errorf("installing applet: %w", err)
		}
	}

	fmt.Printf(">> Using simulated card (AID %X)\n", a.AID())
	return sim.New(a, sim.Options{
		MaxChunkSize: cfg.Transport.MaxChunkSize,
		Logger:       logger.With(slog.String("component", "sim")),
	})
}

func saveImage(a *applet.Applet, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating card image: %w", err)
	}
	if err := a.SaveImage(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// step1Select selects the application and shows its FCI.
func step1Select(client *iso7816.Client, cls iso7816.Class, aid []byte) error {
	fmt.Println("\n=============================================")
	fmt.Printf(" Step 1: SELECT APPLICATION (%X)\n", aid)
	fmt.Println("=============================================")

	trace, err := client.Send(iso7816.SelectByAID(cls, aid))
	if err != nil {
		return fmt.Errorf("transmission failed: %w", err)
	}

	res, err := iso7816.NewSelectResult(trace)
	if err != nil {
		return fmt.Errorf("result creation failed: %w", err)
	}

	fmt.Println(res.Describe())

	if !res.IsSuccess() {
		return fmt.Errorf("selection failed with status: %s", res.Last().Response.Status.Verbose())
	}

	fci, err := res.FCI()
	if err != nil {
		return fmt.Errorf("reading FCI: %w", err)
	}
	if fci != nil && !bytes.Equal(fci.AID(), aid) {
		fmt.Printf("    - Warning:   card answered for %X\n", fci.AID())
	}
	return nil
}

// step2PutData stores every --put record with one PUT DATA command.
func step2PutData(client *iso7816.Client, cls iso7816.Class, target iso7816.DataTarget, records []tlv.Record) error {
	fmt.Println("\n=============================================")
	fmt.Printf(" Step 2: PUT DATA (%d records -> %s)\n", len(records), target)
	fmt.Println("=============================================")

	cmd, err := iso7816.NewPutDataCommand(cls, target, records...)
	if err != nil {
		return err
	}

	trace, err := client.Send(cmd)
	if err != nil {
		return fmt.Errorf("transmission failed: %w", err)
	}

	res, err := iso7816.NewDataResult(trace)
	if err != nil {
		return err
	}
	fmt.Println(res.Describe())

	if !res.IsSuccess() {
		return fmt.Errorf("PUT DATA failed with status: %s", res.Last().Response.Status.Verbose())
	}
	return nil
}

// step3GetData reads one tag back.
func step3GetData(client *iso7816.Client, cls iso7816.Class, target iso7816.DataTarget, tagHex string) error {
	fmt.Println("\n=============================================")
	fmt.Printf(" Step 3: GET DATA (%s from %s)\n", strings.ToUpper(tagHex), target)
	fmt.Println("=============================================")

	tag, err := tlv.ParseHex(tagHex)
	if err != nil {
		return fmt.Errorf("--get %q: %w", tagHex, err)
	}

	cmd, err := iso7816.NewGetDataCommand(cls, target, tag)
	if err != nil {
		return err
	}

	trace, err := client.Send(cmd)
	if err != nil {
		return fmt.Errorf("transmission failed: %w", err)
	}

	res, err := iso7816.NewDataResult(trace)
	if err != nil {
		return err
	}
	fmt.Println(res.Describe())
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `isosceles: drive an ISO/IEC 7816-4 data object applet.

Without --reader the applet runs on a simulated card in this process; with
--image its contents survive between runs.

Usage:
  isosceles [flags]

Examples:
  isosceles --put DE=3031323334353637 --get-data --get DE
  isosceles --image card.img --put 5F2D=656E
  isosceles --reader '*' --aid 49534F5343454C455301 --put DE=00

Flags:
`)
	flagSet.PrintDefaults()
}
