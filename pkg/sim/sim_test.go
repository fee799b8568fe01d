package sim

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/gregLibert/isosceles/pkg/applet"
	"github.com/gregLibert/isosceles/pkg/iso7816"
	"github.com/gregLibert/isosceles/pkg/tlv"
)

var testAID = []byte("ISOSCELES\x01")

func newCard(t *testing.T, appOpts applet.Options, opts Options) *Card {
	t.Helper()
	a, err := applet.Install(append([]byte{byte(len(testAID))}, testAID...), appOpts)
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	card, err := New(a, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return card
}

func TestCard_SelectThroughClient(t *testing.T) {
	card := newCard(t, applet.Options{}, Options{})
	client := iso7816.NewClient(card)
	cls, _ := iso7816.NewClass(0x00)

	trace, err := client.Send(iso7816.SelectByAID(cls, testAID))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	res, err := iso7816.NewSelectResult(trace)
	if err != nil {
		t.Fatalf("NewSelectResult failed: %v", err)
	}
	if !res.IsSuccess() {
		t.Fatalf("selection failed: %s", res.Last().Response)
	}

	want := tlv.Hex("6F 11", "83 02 3F00", "84 0A 49534F5343454C455301")
	if got := res.Last().Response.Data; !bytes.Equal(got, want) {
		t.Errorf("FCI = %X; want %X", got, want)
	}

	fci, err := res.FCI()
	if err != nil {
		t.Fatalf("FCI failed: %v", err)
	}
	if !bytes.Equal(fci.AID(), testAID) || !bytes.Equal(fci.FileIdentifier(), []byte{0x3F, 0x00}) {
		t.Errorf("FCI AID/FID = %X/%X", fci.AID(), fci.FileIdentifier())
	}
	if fci.LengthOverstatement != 1 {
		t.Errorf("LengthOverstatement = %d; want 1", fci.LengthOverstatement)
	}
	if card.Applet().State() != applet.Ready {
		t.Errorf("applet State = %s; want Ready", card.Applet().State())
	}
}

func TestCard_PutAndGetData(t *testing.T) {
	card := newCard(t, applet.Options{GetData: true}, Options{MaxChunkSize: 1})
	client := iso7816.NewClient(card)
	cls, _ := iso7816.NewClass(0x00)

	if _, err := client.Send(iso7816.SelectByAID(cls, testAID)); err != nil {
		t.Fatalf("select: %v", err)
	}

	put, _ := iso7816.NewPutDataCommand(cls, iso7816.TargetMasterFile,
		tlv.Record{Tag: []byte{0xDE}, Value: []byte("01234567")},
		tlv.Record{Tag: []byte{0x5F, 0x2D}, Value: []byte("en")},
	)
	trace, err := client.Send(put)
	if err != nil {
		t.Fatalf("PUT DATA: %v", err)
	}
	if !trace.IsSuccess() {
		t.Fatalf("PUT DATA status = %s", trace.Last().Response.Status)
	}

	get, _ := iso7816.NewGetDataCommand(cls, iso7816.TargetCurrentDF, []byte{0x5F, 0x2D})
	trace, err = client.Send(get)
	if err != nil {
		t.Fatalf("GET DATA: %v", err)
	}
	res, _ := iso7816.NewDataResult(trace)
	if got := res.Last().Response.Data; string(got) != "en" {
		t.Errorf("GET DATA = %q; want \"en\"", got)
	}
}

func TestCard_StatusWords(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want iso7816.StatusWord
	}{
		{"Unparseable APDU", tlv.Hex("00 A4"), iso7816.SW_ERR_WRONG_LENGTH},
		{"Lc inconsistent with body", tlv.Hex("00 DB 3F 00 05 DE 01"), iso7816.SW_ERR_WRONG_LENGTH},
		{"Other AID", tlv.Hex("00 A4 04 00 02 A0 00"), iso7816.SW_ERR_FILE_NOT_FOUND},
		{"Command before selection", tlv.Hex("00 DB 3F 00 03 DE 01 41"), iso7816.SW_ERR_APPLET_NOT_SELECTED},
		{"Select by file identifier is not the selection event", tlv.Hex("00 A4 00 00 02 3F 00"), iso7816.SW_ERR_APPLET_NOT_SELECTED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := newCard(t, applet.Options{}, Options{})
			out, err := card.Transmit(tt.raw)
			if err != nil {
				t.Fatalf("Transmit failed: %v", err)
			}
			resp, _ := iso7816.ParseResponseAPDU(out)
			if resp.Status != tt.want {
				t.Errorf("Status = %s; want %s", resp.Status, tt.want)
			}
		})
	}
}

func TestCard_ForeignSelectDeselects(t *testing.T) {
	card := newCard(t, applet.Options{}, Options{})
	client := iso7816.NewClient(card)
	cls, _ := iso7816.NewClass(0x00)

	client.Send(iso7816.SelectByAID(cls, testAID))
	trace, _ := client.Send(iso7816.SelectByAID(cls, []byte{0xA0, 0x00, 0x00, 0x00, 0x03}))
	if sw := trace.Last().Response.Status; sw != iso7816.SW_ERR_FILE_NOT_FOUND {
		t.Errorf("foreign select status = %s; want SW_ERR_FILE_NOT_FOUND", sw)
	}
	if card.Applet().State() != applet.AwaitingSelection {
		t.Errorf("State = %s; want AwaitingSelection", card.Applet().State())
	}
}

func TestCard_Reset(t *testing.T) {
	card := newCard(t, applet.Options{}, Options{})
	client := iso7816.NewClient(card)
	cls, _ := iso7816.NewClass(0x00)

	client.Send(iso7816.SelectByAID(cls, testAID))
	card.Reset()

	put, _ := iso7816.NewPutDataCommand(cls, iso7816.TargetMasterFile, tlv.Record{Tag: []byte{0xDE}, Value: []byte{1}})
	trace, _ := client.Send(put)
	if sw := trace.Last().Response.Status; sw != iso7816.SW_ERR_APPLET_NOT_SELECTED {
		t.Errorf("status after Reset = %s; want SW_ERR_COND_OF_USE_NOT_SAT", sw)
	}
}

func TestCard_ConcurrentTransmit(t *testing.T) {
	card := newCard(t, applet.Options{}, Options{MaxChunkSize: 2})
	client := iso7816.NewClient(card)
	cls, _ := iso7816.NewClass(0x00)
	client.Send(iso7816.SelectByAID(cls, testAID))

	var wg sync.WaitGroup
	for i := 0; i < applet.DefaultMasterFileCapacity; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			put, _ := iso7816.NewPutDataCommand(cls, iso7816.TargetMasterFile,
				tlv.Record{Tag: []byte{0xC0 + byte(i)}, Value: []byte(fmt.Sprintf("value-%d", i))})
			raw, _ := put.Bytes()
			if _, err := card.Transmit(raw); err != nil {
				t.Errorf("Transmit: %v", err)
			}
		}(i)
	}
	wg.Wait()

	mf := card.Applet().MasterFile()
	if mf.Len() != applet.DefaultMasterFileCapacity {
		t.Fatalf("Len = %d; want %d", mf.Len(), applet.DefaultMasterFileCapacity)
	}
	for i := 0; i < applet.DefaultMasterFileCapacity; i++ {
		if got, _ := mf.Read([]byte{0xC0 + byte(i)}); string(got) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Read(%02X) = %q", 0xC0+i, got)
		}
	}
}

func TestNew_NegativeChunk(t *testing.T) {
	a, _ := applet.Install([]byte{0x00}, applet.Options{})
	if _, err := New(a, Options{MaxChunkSize: -1}); err == nil {
		t.Error("Expected error for negative chunk size")
	}
}
