package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Marshaler allows custom types to produce their own TLV value bytes.
type Marshaler interface {
	MarshalTLV() ([]byte, error)
}

// Marshal encodes the `tlv`-tagged fields of source as a BER-TLV byte stream.
// Fields are emitted in declaration order; nil byte slices, nil pointers and
// empty templates are omitted. The ",unknown" field is appended last.
func Marshal(source interface{}) ([]byte, error) {
	packets, err := MarshalToPackets(source)
	if err != nil {
		return nil, err
	}
	out, err := bertlv.Encode(packets)
	if err != nil {
		return nil, fmt.Errorf("bertlv encode failed: %w", err)
	}
	return out, nil
}

// MarshalToPackets is the inverse of UnmarshalFromPackets.
func MarshalToPackets(source interface{}) ([]bertlv.TLV, error) {
	v := reflect.ValueOf(source)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("source must not be a nil pointer")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("source must be a struct, got %s", v.Kind())
	}
	t := v.Type()

	var packets []bertlv.TLV
	var leftovers []bertlv.TLV

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		tagConfig := fieldType.Tag.Get("tlv")

		if tagConfig == ",unknown" || fieldType.Name == "Unknown" {
			if tlvs, ok := field.Interface().([]bertlv.TLV); ok {
				leftovers = append(leftovers, tlvs...)
			}
			continue
		}
		if tagConfig == "" {
			continue
		}

		tagHex := strings.ToUpper(strings.Split(tagConfig, ",")[0])

		encoded, err := encodeField(tagHex, field)
		if err != nil {
			return nil, fmt.Errorf("field %s (%s): %w", fieldType.Name, tagHex, err)
		}
		packets = append(packets, encoded...)
	}

	return append(packets, leftovers...), nil
}

// encodeField turns one struct field into zero, one or several packets.
func encodeField(tag string, field reflect.Value) ([]bertlv.TLV, error) {
	if field.CanInterface() {
		if m, ok := field.Interface().(Marshaler); ok {
			return marshalerPacket(tag, m)
		}
	}
	if field.CanAddr() {
		if m, ok := field.Addr().Interface().(Marshaler); ok {
			return marshalerPacket(tag, m)
		}
	}

	switch {
	case isByteSlice(field):
		if field.IsNil() {
			return nil, nil
		}
		return []bertlv.TLV{{Tag: tag, Value: append([]byte(nil), field.Bytes()...)}}, nil

	case field.Kind() == reflect.String:
		if field.Len() == 0 {
			return nil, nil
		}
		raw, err := hex.DecodeString(field.String())
		if err != nil {
			return nil, fmt.Errorf("string fields carry hex: %w", err)
		}
		return []bertlv.TLV{{Tag: tag, Value: raw}}, nil

	case field.Kind() == reflect.Slice:
		var out []bertlv.TLV
		for i := 0; i < field.Len(); i++ {
			p, err := encodeField(tag, field.Index(i))
			if err != nil {
				return nil, err
			}
			out = append(out, p...)
		}
		return out, nil

	case isStructOrPtrToStruct(field):
		if field.Kind() == reflect.Ptr && field.IsNil() {
			return nil, nil
		}
		children, err := MarshalToPackets(field.Interface())
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			return nil, nil
		}
		return []bertlv.TLV{{Tag: tag, TLVs: children}}, nil
	}

	return nil, fmt.Errorf("unsupported field kind %s", field.Kind())
}

func marshalerPacket(tag string, m Marshaler) ([]bertlv.TLV, error) {
	raw, err := m.MarshalTLV()
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return []bertlv.TLV{{Tag: tag, Value: raw}}, nil
}
