package emv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseAIP(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    AIP
		wantErr bool
	}{
		{"Exact", []byte{0x5E, 0x00}, AIP{0x5E, 0x00}, false},
		{"Trailing bytes ignored", []byte{0x20, 0x00, 0x08}, AIP{0x20, 0x00}, false},
		{"One byte", []byte{0x5C}, AIP{}, true},
		{"Empty", nil, AIP{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAIP(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedField) {
					t.Fatalf("expected ErrMalformedField, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %X, want %X", got, tt.want)
			}
			if diff := cmp.Diff(tt.input[:AIPLen], got.Bytes()); diff != "" {
				t.Errorf("Bytes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAIP_Capabilities(t *testing.T) {
	tests := []struct {
		name      string
		aip       AIP
		want      []Capability
		strongest Capability
		hasODA    bool
		str       string
	}{
		{"Mastercard CDA", AIP{0x5E, 0x00}, []Capability{CapCDA, CapSDA}, CapCDA, true, "5E00 [CDA SDA]"},
		{"Visa DDA", AIP{0x20, 0x00}, []Capability{CapDDA}, CapDDA, true, "2000 [DDA]"},
		{"SDA with issuer auth", AIP{0x41, 0x80}, []Capability{CapSDA, CapIssuerAuth}, CapSDA, true, "4180 [SDA IssuerAuth]"},
		{"Nothing", AIP{0x00, 0x00}, nil, 0, false, "0000 []"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.aip.Capabilities()); diff != "" {
				t.Errorf("Capabilities mismatch (-want +got):\n%s", diff)
			}
			got, ok := tt.aip.StrongestODA()
			if ok != tt.hasODA || (ok && got != tt.strongest) {
				t.Errorf("StrongestODA() = (%v, %v), want (%v, %v)", got, ok, tt.strongest, tt.hasODA)
			}
			if s := tt.aip.String(); s != tt.str {
				t.Errorf("String() = %q, want %q", s, tt.str)
			}
		})
	}
}

func TestAIP_WithWithout(t *testing.T) {
	a := AIP{0x00, 0x80}

	a = a.With(CapCDA).With(CapIssuerAuth)
	if a != (AIP{0x03, 0x80}) {
		t.Errorf("With: got %X", a)
	}

	a = a.Without(CapIssuerAuth)
	if a != (AIP{0x02, 0x80}) {
		t.Errorf("Without: got %X", a)
	}

	if !a.Has(CapCDA) || a.Has(CapDDA) {
		t.Errorf("Has: unexpected result for %X", a)
	}
}

func TestDowngradeAIP(t *testing.T) {
	tests := []struct {
		name  string
		input AIP
		want  AIP
	}{
		{"CDA and SDA", AIP{0x5E, 0x00}, AIP{0x5C, 0x00}},
		{"DDA and CDA", AIP{0x62, 0x00}, AIP{0x40, 0x00}},
		// 0x5C is SDA plus unnamed bits: no CDA (0x02) and no DDA (0x20).
		{"Already SDA only", AIP{0x5C, 0x00}, AIP{0x5C, 0x00}},
		{"DDA only", AIP{0x20, 0x00}, AIP{0x40, 0x00}},
		{"Zero", AIP{0x00, 0x00}, AIP{0x40, 0x00}},
		{"All bits", AIP{0xFF, 0xFF}, AIP{0xDD, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DowngradeAIP(tt.input)
			if got != tt.want {
				t.Errorf("DowngradeAIP(%X) = %X, want %X", tt.input, got, tt.want)
			}

			if again := DowngradeAIP(got); again != got {
				t.Errorf("not idempotent: %X -> %X", got, again)
			}

			if c, ok := got.StrongestODA(); !ok || c != CapSDA {
				t.Errorf("strongest method after downgrade = %v, want SDA", c)
			}

			// Bits outside CDA / DDA / SDA survive.
			const touched = 0x62
			if got[0]&^touched != tt.input[0]&^touched || got[1] != tt.input[1] {
				t.Errorf("untouched bits changed: %X -> %X", tt.input, got)
			}
		})
	}
}

func TestParseAIP_AllValues(t *testing.T) {
	for v := 0; v <= 0xFFFF; v++ {
		in := []byte{byte(v >> 8), byte(v)}
		got, err := ParseAIP(in)
		if err != nil {
			t.Fatalf("ParseAIP(%X) failed: %v", in, err)
		}
		if !bytes.Equal(in, got.Bytes()) {
			t.Fatalf("round trip %X -> %X", in, got.Bytes())
		}
	}
}

func TestDowngradeAIP_AllFirstBytes(t *testing.T) {
	for v := 0; v <= 0xFF; v++ {
		in := AIP{byte(v), 0xA5}
		got := DowngradeAIP(in)

		if got.Has(CapCDA) || got.Has(CapDDA) || !got.Has(CapSDA) {
			t.Fatalf("DowngradeAIP(%X) = %X still announces CDA or DDA, or lacks SDA", in, got)
		}
		if got[0]&^0x62 != in[0]&^0x62 || got[1] != in[1] {
			t.Fatalf("DowngradeAIP(%X) = %X changed other bits", in, got)
		}
		if again := DowngradeAIP(got); again != got {
			t.Fatalf("not idempotent: %X -> %X -> %X", in, got, again)
		}
	}
}
