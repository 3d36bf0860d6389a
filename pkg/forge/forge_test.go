package forge

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/emv-mutator/pkg/tlv"
)

func TestDeriveDecoySessionKey(t *testing.T) {
	tests := []struct {
		name string
		seed []byte
		want []byte
	}{
		{"Visa test PAN", DecoySeed("4111111111111111"), tlv.Hex("69b013d2e2aa554731aa96525b9d46b5")},
		{"Mastercard test PAN", DecoySeed("5500000000000004"), tlv.Hex("81e40c3b8c6ca7b50b82f6608a59a30c")},
		{"Empty seed", nil, tlv.Hex("e3b0c44298fc1c149afbf4c8996fb924")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveDecoySessionKey(tt.seed)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("key mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecoySeed(t *testing.T) {
	if got := string(DecoySeed("4111111111111111")); got != "fake_key_4111111111111111" {
		t.Errorf("DecoySeed = %q", got)
	}
}

func TestComputeForgedCryptogram(t *testing.T) {
	key := tlv.Hex("69b013d2e2aa554731aa96525b9d46b5")

	tests := []struct {
		name string
		atc  uint16
		iad  []byte
		want string
	}{
		{"Counting IAD", 0x0123, tlv.Hex("0102030405060708"), "3029D5BBC445867F"},
		{"Zero IAD", 0x0123, make([]byte, 8), "8930C85AEC30A40E"},
		{"Next ATC", 0x0124, tlv.Hex("0102030405060708"), "3AEEA3666C1489D7"},
		{"No IAD", 0x0123, nil, "E05CB4616D437143"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeForgedCryptogram(key, tt.atc, tt.iad)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tlv.Hex(tt.want), got[:]); diff != "" {
				t.Errorf("cryptogram mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeForgedCryptogram_Deterministic(t *testing.T) {
	key := DeriveDecoySessionKey(DecoySeed("4111111111111111"))
	iad := tlv.Hex("A1B2C3D4E5F60718")

	first, err := ComputeForgedCryptogram(key, 42, iad)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ComputeForgedCryptogram(key, 42, iad)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("same inputs gave %X and %X", first, second)
	}
}

func TestComputeForgedCryptogram_InvalidKey(t *testing.T) {
	for _, n := range []int{0, 8, 15, 17, 32} {
		_, err := ComputeForgedCryptogram(make([]byte, n), 1, nil)
		if !errors.Is(err, ErrInvalidKeyLength) {
			t.Errorf("key of %d bytes: expected ErrInvalidKeyLength, got %v", n, err)
		}
	}
}
