package emv

import (
	"fmt"
	"strings"

	"github.com/gregLibert/emv-mutator/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// GET PROCESSING OPTIONS response layouts.
//
// 1. Compact: AIP(2) || AFL(4*n) || Track2 equivalent (rest of the buffer).
//    The layout used by relay demonstrators; n is not encoded and must be
//    known by the parser (DefaultAFLEntries unless told otherwise).
// 2. Template 1: '80' L [AIP || AFL] (EMV Book 3 format 1, no Track2).
// 3. Template 2: '77' L ['82' AIP, '94' AFL, '57' Track2, ...] (format 2).
//
// ParseGPOResponse selects the layout from the first byte ('77', '80',
// anything else is compact) and Bytes re-emits the same layout, so a mutated
// response keeps the framing of the original.

// GPOFormat identifies the layout of a GPO response.
type GPOFormat int

const (
	FormatCompact GPOFormat = iota
	FormatTemplate1
	FormatTemplate2
)

func (f GPOFormat) String() string {
	switch f {
	case FormatCompact:
		return "compact"
	case FormatTemplate1:
		return "template-80"
	case FormatTemplate2:
		return "template-77"
	default:
		return fmt.Sprintf("GPOFormat(%d)", int(f))
	}
}

// DefaultAFLEntries is the AFL entry count assumed for compact responses.
const DefaultAFLEntries = 1

const (
	tagTemplate1 = "80"
	tagTemplate2 = "77"
)

// GPOResponse is a decoded GET PROCESSING OPTIONS response.
type GPOResponse struct {
	Format GPOFormat
	AIP    AIP
	AFL    AFL
	Track2 []byte // Track 2 equivalent data; absent in template 1

	// children keeps the template 2 TLV order seen on the wire so the
	// response re-encodes byte for byte. Nil for freshly built responses.
	children []bertlv.TLV
	trailer  []bertlv.TLV
}

// gpoTemplate2 maps the '77' template content.
type gpoTemplate2 struct {
	AIP    []byte `tlv:"82" fmt:"bin"`
	AFL    []byte `tlv:"94" fmt:"records"`
	Track2 []byte `tlv:"57"`

	Unknown []bertlv.TLV `tlv:",unknown"`
}

// DetectGPOFormat guesses the layout from the first byte. A compact AIP may
// itself start with 0x77 or 0x80, so the guess is only a first try.
func DetectGPOFormat(data []byte) GPOFormat {
	if len(data) == 0 {
		return FormatCompact
	}
	switch data[0] {
	case 0x77:
		return FormatTemplate2
	case 0x80:
		return FormatTemplate1
	default:
		return FormatCompact
	}
}

// ParseGPOResponse decodes a GPO response in any of the supported layouts.
func ParseGPOResponse(data []byte) (*GPOResponse, error) {
	return ParseGPOResponseAFL(data, DefaultAFLEntries)
}

// ParseGPOResponseAFL is ParseGPOResponse with aflEntries AFL entries assumed
// for the compact layout. A buffer that does not decode as the template its
// first byte announces is read as compact; the template error is returned
// when neither fits.
func ParseGPOResponseAFL(data []byte, aflEntries int) (*GPOResponse, error) {
	var parse func([]byte) (*GPOResponse, error)
	switch DetectGPOFormat(data) {
	case FormatTemplate2:
		parse = parseTemplate2
	case FormatTemplate1:
		parse = parseTemplate1
	default:
		return ParseCompactGPO(data, aflEntries)
	}

	gpo, err := parse(data)
	if err == nil {
		return gpo, nil
	}
	if compact, cerr := ParseCompactGPO(data, aflEntries); cerr == nil {
		return compact, nil
	}
	return nil, err
}

// ParseCompactGPO decodes the compact layout with an AFL of aflEntries entries.
func ParseCompactGPO(data []byte, aflEntries int) (*GPOResponse, error) {
	if aflEntries < 0 {
		return nil, fmt.Errorf("negative AFL entry count %d", aflEntries)
	}
	aip, err := ParseAIP(data)
	if err != nil {
		return nil, err
	}

	aflEnd := AIPLen + aflEntries*AFLEntryLen
	if len(data) < aflEnd {
		return nil, tooShort("AFL", aflEnd, len(data))
	}

	return &GPOResponse{
		Format: FormatCompact,
		AIP:    aip,
		AFL:    AFL(clone(data[AIPLen:aflEnd])),
		Track2: clone(data[aflEnd:]),
	}, nil
}

func parseTemplate1(data []byte) (*GPOResponse, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, &FieldError{Field: "GPO template 80", Err: err}
	}
	if len(packets) == 0 {
		return nil, tooShort("GPO template 80", AIPLen, 0)
	}

	value := packets[0].Value
	aip, err := ParseAIP(value)
	if err != nil {
		return nil, err
	}
	if n := len(value) - AIPLen; n%AFLEntryLen != 0 {
		return nil, &FieldError{Field: "AFL", Err: fmt.Errorf("length %d is not a multiple of %d", n, AFLEntryLen)}
	}

	return &GPOResponse{
		Format:  FormatTemplate1,
		AIP:     aip,
		AFL:     AFL(clone(value[AIPLen:])),
		trailer: packets[1:],
	}, nil
}

func parseTemplate2(data []byte) (*GPOResponse, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, &FieldError{Field: "GPO template 77", Err: err}
	}
	if len(packets) == 0 {
		return nil, tooShort("GPO template 77", AIPLen, 0)
	}

	var body gpoTemplate2
	if err := tlv.UnmarshalFromPackets(packets[0].TLVs, &body); err != nil {
		return nil, &FieldError{Field: "GPO template 77", Err: err}
	}

	if len(body.AIP) > AIPLen {
		return nil, &FieldError{Field: "AIP", Err: fmt.Errorf("length %d, want %d", len(body.AIP), AIPLen)}
	}
	aip, err := ParseAIP(body.AIP)
	if err != nil {
		return nil, err
	}

	return &GPOResponse{
		Format:   FormatTemplate2,
		AIP:      aip,
		AFL:      AFL(clone(body.AFL)),
		Track2:   clone(body.Track2),
		children: packets[0].TLVs,
		trailer:  packets[1:],
	}, nil
}

// Bytes serializes the response in its Format.
func (g *GPOResponse) Bytes() ([]byte, error) {
	var out []byte
	var err error

	switch g.Format {
	case FormatCompact:
		out = make([]byte, 0, AIPLen+len(g.AFL)+len(g.Track2))
		out = append(out, g.AIP.Bytes()...)
		out = append(out, g.AFL...)
		out = append(out, g.Track2...)
		return out, nil
	case FormatTemplate1:
		value := append(g.AIP.Bytes(), g.AFL...)
		out, err = bertlv.Encode([]bertlv.TLV{{Tag: tagTemplate1, Value: value}})
	case FormatTemplate2:
		out, err = g.encodeTemplate2()
	default:
		return nil, fmt.Errorf("unknown GPO format %d", int(g.Format))
	}
	if err != nil {
		return nil, fmt.Errorf("encode GPO %s: %w", g.Format, err)
	}

	if len(g.trailer) > 0 {
		rest, err := bertlv.Encode(g.trailer)
		if err != nil {
			return nil, fmt.Errorf("encode GPO trailer: %w", err)
		}
		out = append(out, rest...)
	}
	return out, nil
}

func (g *GPOResponse) encodeTemplate2() ([]byte, error) {
	if g.children == nil {
		body, err := tlv.MarshalToPackets(gpoTemplate2{
			AIP:    g.AIP.Bytes(),
			AFL:    g.AFL,
			Track2: g.Track2,
		})
		if err != nil {
			return nil, err
		}
		return bertlv.Encode([]bertlv.TLV{{Tag: tagTemplate2, TLVs: body}})
	}

	// Substitute values in wire order; fields missing on the wire are appended.
	values := map[string][]byte{"82": g.AIP.Bytes(), "94": g.AFL, "57": g.Track2}
	seen := map[string]bool{}
	children := make([]bertlv.TLV, 0, len(g.children)+3)
	for _, c := range g.children {
		tag := strings.ToUpper(c.Tag)
		if v, ok := values[tag]; ok && !seen[tag] {
			seen[tag] = true
			c = bertlv.TLV{Tag: c.Tag, Value: clone(v)}
		}
		children = append(children, c)
	}
	for _, tag := range []string{"82", "94", "57"} {
		if !seen[tag] && values[tag] != nil {
			children = append(children, bertlv.TLV{Tag: tag, Value: clone(values[tag])})
		}
	}
	return bertlv.Encode([]bertlv.TLV{{Tag: tagTemplate2, TLVs: children}})
}

// Clone returns a deep copy that re-encodes identically.
func (g *GPOResponse) Clone() *GPOResponse {
	c := *g
	c.AFL = AFL(clone(g.AFL))
	c.Track2 = clone(g.Track2)
	return &c
}

// Track2Offset returns the offset of the Track2 value inside the encoded
// compact form. Only meaningful for FormatCompact.
func (g *GPOResponse) Track2Offset() int {
	return AIPLen + len(g.AFL)
}

// Describe generates a report of the response in the format of the other
// EMV reports of this package.
func (g *GPOResponse) Describe() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("=== EMV GPO RESPONSE (%s) ===", g.Format))

	tlv.WriteStructFields(&sb, "GPO", gpoTemplate2{
		AIP:    g.AIP.Bytes(),
		AFL:    g.AFL,
		Track2: g.Track2,
	})

	sb.WriteString(fmt.Sprintf("\n    - GPO.Capabilities: %s", g.AIP))
	for i, e := range g.AFL.Entries() {
		sb.WriteString(fmt.Sprintf("\n    - GPO.AFL[%d]: %s", i+1, e))
	}

	return strings.TrimRight(sb.String(), "\n")
}
