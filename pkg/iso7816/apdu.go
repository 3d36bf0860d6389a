package iso7816

import (
	"bytes"
	"fmt"
)

// APDU (Application Protocol Data Unit) structures and encodings according to ISO/IEC 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU):
// A command consists of a mandatory Header (4 bytes) and an optional Body.
//
// 1. Header:
//   - CLA (Class): Security, Chaining, Logical Channel.
//   - INS (Instruction): The specific command to execute.
//   - P1, P2 (Parameters): Command modifiers.
//
// 2. Body:
//   - Lc (Length Command): Number of bytes in the data field.
//   - Data: The command payload.
//   - Le (Length Expected): Maximum number of bytes expected in the response.
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: No Data, No Response (Header only).
// - Case 2: No Data, Response Expected (Header + Le).
// - Case 3: Data Present, No Response (Header + Lc + Data).
// - Case 4: Data Present, Response Expected (Header + Lc + Data + Le).
//
// LENGTH MODES:
//   - Short Length: Lc/Le encoded on 1 byte (Max 255/256).
//   - Extended Length: Lc/Le encoded on multiple bytes (Max 65535/65536).
//     Extended mode is triggered if Lc > 255 or Le > 256.
//
// RESPONSE APDU (R-APDU):
// Optional Body followed by a mandatory Trailer (SW1, SW2).

// APDU Limits and Constants according to ISO 7816-3.
const (
	// MaxShortLc is the maximum data length (Nc) encodable in Short Length mode (1 byte).
	MaxShortLc = 255

	// MaxShortLe is the maximum expected response length (Ne) encodable in Short Length mode.
	// In Short mode, 0x00 encodes 256.
	MaxShortLe = 256

	// MaxExtendedLc is the theoretical limit for Lc in Extended mode (16-bit unsigned).
	MaxExtendedLc = 65535

	// MaxExtendedLe is the maximum Ne encodable in Extended Length mode.
	// In Extended mode, 0x0000 encodes 65536.
	MaxExtendedLe = 65536

	headerLen = 4
)

// CommandAPDU represents a command sent to the card.
type CommandAPDU struct {
	Class       Class
	Instruction Instruction
	P1, P2      byte
	Data        []byte
	Ne          int // Expected response length (0 means none)
}

// NewCommandAPDU creates a basic command.
func NewCommandAPDU(cla Class, ins Instruction, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Class:       cla,
		Instruction: ins,
		P1:          p1,
		P2:          p2,
		Data:        data,
		Ne:          ne,
	}
}

// Bytes encodes the CommandAPDU into its byte representation (C-APDU).
// It automatically handles the selection between Short and Extended encoding
// based on the length of Data (Nc) and the expected response length (Ne).
func (c *CommandAPDU) Bytes() ([]byte, error) {
	buf := new(bytes.Buffer)

	class, err := c.Class.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode Class: %w", err)
	}
	buf.WriteByte(class)
	buf.WriteByte(byte(c.Instruction.Raw))
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	nc := len(c.Data)
	ne := c.Ne

	isExtended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if !isExtended {
			buf.WriteByte(byte(nc))
		} else {
			// 00 + Lc (2 bytes)
			buf.WriteByte(0x00)
			buf.WriteByte(byte(nc >> 8))
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		if !isExtended {
			if ne == MaxShortLe {
				buf.WriteByte(0x00) // 0x00 represents 256
			} else {
				buf.WriteByte(byte(ne))
			}
		} else {
			// Case 2 Extended needs a leading 00 to distinguish Le from Lc.
			if nc == 0 {
				buf.WriteByte(0x00)
			}

			if ne == MaxExtendedLe {
				buf.WriteByte(0x00)
				buf.WriteByte(0x00)
			} else {
				buf.WriteByte(byte(ne >> 8))
				buf.WriteByte(byte(ne))
			}
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Instruction.Verbose(), c.P1, c.P2, len(c.Data), c.Ne)
}

// ParseCommandAPDU decodes a raw C-APDU observed on the terminal to card leg.
// It is the inverse of CommandAPDU.Bytes and recognizes the four ISO 7816-3
// cases in both short and extended length form.
func ParseCommandAPDU(raw []byte) (*CommandAPDU, error) {
	if len(raw) < headerLen {
		return nil, fmt.Errorf("command too short: length %d", len(raw))
	}

	cla, err := NewClass(raw[0])
	if err != nil {
		return nil, err
	}
	ins, err := NewInstruction(InsCode(raw[1]))
	if err != nil {
		return nil, err
	}

	cmd := &CommandAPDU{Class: cla, Instruction: ins, P1: raw[2], P2: raw[3]}
	body := raw[headerLen:]

	switch {
	case len(body) == 0:
		// Case 1
		return cmd, nil

	case len(body) == 1:
		// Case 2 Short
		cmd.Ne = decodeShortLe(body[0])
		return cmd, nil

	case body[0] != 0x00:
		// Case 3/4 Short
		nc := int(body[0])
		rest := body[1:]
		if len(rest) < nc {
			return nil, fmt.Errorf("short Lc %d exceeds remaining %d bytes", nc, len(rest))
		}
		cmd.Data = rest[:nc]
		switch len(rest) - nc {
		case 0:
		case 1:
			cmd.Ne = decodeShortLe(rest[nc])
		default:
			return nil, fmt.Errorf("unexpected %d trailing bytes after data", len(rest)-nc-1)
		}
		return cmd, nil

	case len(body) < 3:
		return nil, fmt.Errorf("truncated extended length field: %X", body)

	case len(body) == 3:
		// Case 2 Extended: 00 + Le(2)
		cmd.Ne = decodeExtendedLe(body[1], body[2])
		return cmd, nil

	default:
		// Case 3/4 Extended: 00 + Lc(2) + Data [+ Le(2)]
		nc := int(body[1])<<8 | int(body[2])
		rest := body[3:]
		if nc == 0 || len(rest) < nc {
			return nil, fmt.Errorf("extended Lc %d invalid for remaining %d bytes", nc, len(rest))
		}
		cmd.Data = rest[:nc]
		switch len(rest) - nc {
		case 0:
		case 2:
			cmd.Ne = decodeExtendedLe(rest[nc], rest[nc+1])
		default:
			return nil, fmt.Errorf("unexpected %d trailing bytes after extended data", len(rest)-nc)
		}
		return cmd, nil
	}
}

func decodeShortLe(b byte) int {
	if b == 0x00 {
		return MaxShortLe
	}
	return int(b)
}

func decodeExtendedLe(hi, lo byte) int {
	ne := int(hi)<<8 | int(lo)
	if ne == 0 {
		return MaxExtendedLe
	}
	return ne
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU parses raw bytes received from the card into a ResponseAPDU.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	indexSW1 := len(raw) - 2
	data := raw[:indexSW1]
	sw1 := raw[indexSW1]
	sw2 := raw[indexSW1+1]

	return &ResponseAPDU{
		Data:   data,
		Status: NewStatusWord(sw1, sw2),
	}, nil
}

// Bytes re-frames the response: data field followed by SW1 SW2.
// The returned slice never aliases Data.
func (r *ResponseAPDU) Bytes() []byte {
	out := make([]byte, 0, len(r.Data)+2)
	out = append(out, r.Data...)
	return append(out, r.Status.SW1(), r.Status.SW2())
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
