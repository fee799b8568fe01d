package tlv

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moov-io/bertlv"
)

type reportTemplate struct {
	FileIdentifier []byte `tlv:"83"`
	DFName         []byte `tlv:"84" fmt:"ascii"`
	Size           []byte `tlv:"80" fmt:"int"`
	Scratch        []byte
	Absent         []byte `tlv:"8A"`
	Unknown        []bertlv.TLV

	hidden []byte
}

func TestWriteStructFields(t *testing.T) {
	tmpl := reportTemplate{
		FileIdentifier: Hex("3F00"),
		DFName:         []byte("ISOSCELES\x01"),
		Size:           Hex("0100"),
		Scratch:        Hex("DEAD"),
		Unknown:        []bertlv.TLV{{Tag: "df20", Value: Hex("01")}},
		hidden:         Hex("FF"),
	}
	want := []string{
		"    - FCI.FileIdentifier (83): 3F00",
		`    - FCI.DFName (84): 49534F5343454C455301 ("ISOSCELES.")`,
		"    - FCI.Size (80): 0100 (Dec: 256)",
		"    - FCI.Scratch: DEAD",
		"    - FCI.Unknown Tag DF20: 01",
	}

	t.Run("Pointer", func(t *testing.T) {
		var sb strings.Builder
		WriteStructFields(&sb, "FCI", &tmpl)
		if diff := cmp.Diff(want, strings.Split(sb.String(), "\n")); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Appends after existing text", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString("header")
		WriteStructFields(&sb, "FCI", tmpl)
		got := strings.Split(sb.String(), "\n")
		if diff := cmp.Diff(append([]string{"header"}, want...), got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Nothing to write", func(t *testing.T) {
		var sb strings.Builder
		WriteStructFields(&sb, "FCI", (*reportTemplate)(nil))
		WriteStructFields(&sb, "FCI", reportTemplate{})
		WriteStructFields(&sb, "FCI", 42)
		if sb.Len() != 0 {
			t.Errorf("builder = %q; want empty", sb.String())
		}
	})
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		data   []byte
		format string
		want   string
	}{
		{Hex("3F00"), "", "3F00"},
		{Hex("3F00"), "int", "3F00 (Dec: 16128)"},
		{Hex("010203040506070809"), "int", "010203040506070809"},
		{[]byte("OK\x00"), "ascii", `4F4B00 ("OK.")`},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.data, tt.format); got != tt.want {
			t.Errorf("FormatValue(%X, %q) = %q; want %q", tt.data, tt.format, got, tt.want)
		}
	}
}

func TestMakeSafeASCII(t *testing.T) {
	// One dot per byte, including bytes that would form a UTF-8 sequence.
	got := MakeSafeASCII([]byte{'I', 'S', 0x00, 0x7F, 0xC3, 0xA9, '~'})
	if got != "IS....~" {
		t.Errorf("MakeSafeASCII = %q; want %q", got, "IS....~")
	}
}
