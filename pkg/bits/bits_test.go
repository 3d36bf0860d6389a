package bits

import "testing"

func TestBit(t *testing.T) {
	tests := []struct {
		n        uint
		expected byte
	}{
		{1, 0x01}, {2, 0x02}, {6, 0x20}, {7, 0x40}, {8, 0x80}, {0, 0x00},
		{9, 0x00}, // out of range is silently ignored
	}

	for _, tt := range tests {
		if res := Bit(tt.n); res != tt.expected {
			t.Errorf("Bit(%d) = 0x%02X; want 0x%02X", tt.n, res, tt.expected)
		}
	}
}

func TestIsSet(t *testing.T) {
	val := byte(0b10100101)
	if !IsSet(val, 8) {
		t.Error("Bit 8 should be set")
	}
	if IsSet(val, 7) {
		t.Error("Bit 7 should NOT be set")
	}
	if !IsSet(val, 1) {
		t.Error("Bit 1 should be set")
	}
}

func TestGetRange(t *testing.T) {
	tests := []struct {
		name     string
		input    byte
		high     uint
		low      uint
		expected byte
	}{
		{"Bits 4-3 of 0x0C", 0b0000_1100, 4, 3, 3},
		{"Bits 8-4 of AFL SFI byte 0x08", 0x08, 8, 4, 1},
		{"Bits 4-1 of 0x0F", 0b0000_1111, 4, 1, 15},
		{"Bits 8-7 of 0x40", 0b0100_0000, 8, 7, 1},
		{"Inverted range", 0xFF, 1, 4, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if res := GetRange(tt.input, tt.high, tt.low); res != tt.expected {
				t.Errorf("GetRange(0x%02X, %d, %d) = %d; want %d", tt.input, tt.high, tt.low, res, tt.expected)
			}
		})
	}
}

func TestSetClearAssign(t *testing.T) {
	tests := []struct {
		name string
		got  byte
		want byte
	}{
		{"Set bit 7 on zero", Set(0x00, 7), 0x40},
		{"Set already set bit", Set(0x40, 7), 0x40},
		{"Clear bit 2 of 0x5E", Clear(0x5E, 2), 0x5C},
		{"Clear unset bit", Clear(0x5C, 6), 0x5C},
		{"Assign on", Assign(0x00, 6, true), 0x20},
		{"Assign off", Assign(0x22, 6, false), 0x02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got 0b%08b; want 0b%08b", tt.got, tt.want)
			}
		})
	}
}

func TestMask(t *testing.T) {
	if m := Mask(7, 6, 2, 1); m != 0x63 {
		t.Errorf("Mask(7,6,2,1) = 0x%02X; want 0x63", m)
	}
	if m := Mask(0, 9); m != 0 {
		t.Errorf("Mask with out-of-range positions = 0x%02X; want 0", m)
	}
}
