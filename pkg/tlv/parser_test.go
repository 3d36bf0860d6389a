package tlv

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/moov-io/bertlv"
)

// counterValue decodes a big-endian counter through the Unmarshaler hook.
type counterValue struct {
	N int
}

func (c *counterValue) UnmarshalTLV(data []byte) error {
	for _, b := range data {
		c.N = c.N<<8 | int(b)
	}
	return nil
}

type gpoBody struct {
	AIP []byte `tlv:"82"`
	AFL []byte `tlv:"94"`
}

type responseTemplate struct {
	Body    gpoBody      `tlv:"77"`
	Label   string       `tlv:"50"`
	ATC     counterValue `tlv:"9F36"`
	Records []gpoBody    `tlv:"70"`
	Other   []bertlv.TLV `tlv:",unknown"`
}

func TestUnmarshal(t *testing.T) {
	rawData := Hex(
		"77 0A", "82 02 5C00", "94 04 08010200", // GPO format 2 body
		"50 04 56495341", // Label "VISA"
		"9F36 02 0123",   // ATC through custom unmarshaler
		"70 04 82022000", // First record template
		"70 04 82024000", // Second record template
		"DF01 01 BB",     // Unknown tag
	)

	var result responseTemplate
	if err := Unmarshal(rawData, &result); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if hex.EncodeToString(result.Body.AIP) != "5c00" {
		t.Errorf("Expected AIP 5c00, got %x", result.Body.AIP)
	}
	if hex.EncodeToString(result.Body.AFL) != "08010200" {
		t.Errorf("Expected AFL 08010200, got %x", result.Body.AFL)
	}
	if result.Label != "56495341" {
		t.Errorf("Expected Label 56495341, got %s", result.Label)
	}
	if result.ATC.N != 0x0123 {
		t.Errorf("Expected ATC 0x0123, got 0x%04X", result.ATC.N)
	}
	if len(result.Records) != 2 || hex.EncodeToString(result.Records[1].AIP) != "4000" {
		t.Errorf("Repeated template 70 not collected: %+v", result.Records)
	}
	if len(result.Other) != 1 || strings.ToUpper(result.Other[0].Tag) != "DF01" {
		t.Errorf("Unknown tag DF01 not captured correctly")
	}
}

func TestGetValue(t *testing.T) {
	rawData := Hex(
		"80 06 5C00 08010200", // GPO format 1
		"50 03 414243",        // Label "ABC"
	)

	t.Run("Existing Tag", func(t *testing.T) {
		val, err := GetValue(rawData, 0x80)
		if err != nil {
			t.Fatalf("GetValue failed: %v", err)
		}
		if hex.EncodeToString(val) != "5c0008010200" {
			t.Errorf("Expected 5c0008010200, got %x", val)
		}
	})

	t.Run("Nested Tag", func(t *testing.T) {
		nested := Hex("77 08", "82 02 5C00", "9F36 01 07")
		val, err := GetValue(nested, 0x9F36)
		if err != nil {
			t.Fatalf("GetValue failed: %v", err)
		}
		if hex.EncodeToString(val) != "07" {
			t.Errorf("Expected 07, got %x", val)
		}
	})

	t.Run("Missing Tag", func(t *testing.T) {
		if _, err := GetValue(rawData, 0x99); err == nil {
			t.Error("Expected error for missing tag, got nil")
		}
	})
}

func TestUnmarshalErrors(t *testing.T) {
	t.Run("Non-pointer target", func(t *testing.T) {
		err := Unmarshal(Hex("82 00"), responseTemplate{})
		if err == nil || !strings.Contains(err.Error(), "pointer") {
			t.Errorf("Expected pointer error, got %v", err)
		}
	})

	t.Run("Truncated input", func(t *testing.T) {
		if err := Unmarshal(Hex("77 05 82"), &responseTemplate{}); err == nil {
			t.Error("Expected decode error for truncated TLV")
		}
	})
}
