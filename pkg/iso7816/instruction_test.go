package iso7816

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewInstruction(t *testing.T) {
	tests := []struct {
		ins     InsCode
		want    Instruction
		wantErr bool
	}{
		{ins: INS_SELECT, want: Instruction{Raw: INS_SELECT}},
		{ins: INS_PUT_DATA_BER, want: Instruction{Raw: INS_PUT_DATA_BER, IsBERTLV: true}},
		{ins: INS_GET_DATA_BER, want: Instruction{Raw: INS_GET_DATA_BER, IsBERTLV: true}},
		{ins: INS_GET_RESPONSE, want: Instruction{Raw: INS_GET_RESPONSE}},
		{ins: 0x61, wantErr: true},
		{ins: 0x9F, wantErr: true},
	}

	for _, tt := range tests {
		got, err := NewInstruction(tt.ins)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewInstruction(%02X) error = %v, wantErr %v", byte(tt.ins), err, tt.wantErr)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("NewInstruction(%02X) mismatch (-want +got):\n%s", byte(tt.ins), diff)
		}
	}
}

func TestInstruction_Names(t *testing.T) {
	put, _ := NewInstruction(INS_PUT_DATA_BER)
	sel, _ := NewInstruction(INS_SELECT)

	got := []string{put.Verbose(), sel.Verbose(), InsCode(0x42).String()}
	want := []string{
		"INS: 0xDB | Command: INS_PUT_DATA_BER | Format: BER-TLV",
		"INS: 0xA4 | Command: INS_SELECT | Format: Standard",
		"InsCode(0x42)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}
