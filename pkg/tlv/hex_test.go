package tlv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseHex(t *testing.T) {
	tests := []struct {
		name    string
		parts   []string
		want    []byte
		wantErr bool
	}{
		{"Select header", []string{"00A4", "0400"}, []byte{0x00, 0xA4, 0x04, 0x00}, false},
		{"Spaced AID", []string{"49 53 4F", " 53 43 45 4C 45 53 01 "}, []byte("ISOSCELES\x01"), false},
		{"Tabs and newlines", []string{"DB\t3F\n00"}, []byte{0xDB, 0x3F, 0x00}, false},
		{"Lower case", []string{"de", "ad"}, []byte{0xDE, 0xAD}, false},
		{"Odd digit count", []string{"6F1"}, nil, true},
		{"Not hex", []string{"3FGG"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHex(tt.parts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHex(%q) error = %v, wantErr %v", tt.parts, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseHex(%q) mismatch (-want +got):\n%s", tt.parts, diff)
			}
		})
	}
}

func TestHexPanicsOnBadLiteral(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Hex(\"XY\") did not panic")
		}
	}()
	Hex("XY")
}
