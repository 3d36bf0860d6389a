package tlv

import (
	"bytes"
	"testing"
)

func TestHex(t *testing.T) {
	tests := []struct {
		name      string
		inputs    []string
		want      []byte
		wantPanic bool
	}{
		{
			name:   "Simple Join",
			inputs: []string{"00", "A4"},
			want:   []byte{0x00, 0xA4},
		},
		{
			name:   "With Spaces",
			inputs: []string{"00 A4", " 04 00 "},
			want:   []byte{0x00, 0xA4, 0x04, 0x00},
		},
		{
			name:   "GPO command header",
			inputs: []string{"80 A8", "00 00"},
			want:   []byte{0x80, 0xA8, 0x00, 0x00},
		},
		{
			name:      "Invalid Hex",
			inputs:    []string{"ZZ"},
			wantPanic: true,
		},
		{
			name:      "Odd Length",
			inputs:    []string{"123"},
			wantPanic: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if (r != nil) != tt.wantPanic {
					t.Errorf("Hex() panic = %v, wantPanic %v", r, tt.wantPanic)
				}
			}()

			got := Hex(tt.inputs...)
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Hex() = %X, want %X", got, tt.want)
			}
		})
	}
}

func TestParseHex(t *testing.T) {
	got, err := ParseHex(" 47 61 73 9F ")
	if err != nil {
		t.Fatalf("ParseHex failed: %v", err)
	}
	if !bytes.Equal(got, []byte{0x47, 0x61, 0x73, 0x9F}) {
		t.Errorf("ParseHex() = %X", got)
	}

	if _, err := ParseHex("5C0"); err == nil {
		t.Error("expected error for odd length input")
	}
}
