// Package model exports the protocol rules implemented by this module as a
// language-neutral document, for consumption by a formal-verification tool.
//
// Every value in the document is computed from the codec itself (the
// downgrade examples are produced by emv.DowngradeAIP, the dialect table by
// the configured profiles), so the model cannot drift from the code.
package model

import (
	"fmt"
	"io"
	mathbits "math/bits"
	"sort"
	"time"

	"github.com/gregLibert/emv-mutator/pkg/attack"
	"github.com/gregLibert/emv-mutator/pkg/emv"
	"gopkg.in/yaml.v3"
)

// Version of the document layout.
const Version = 1

// Document is the exported model.
type Document struct {
	Version    int            `yaml:"version"`
	AIP        AIPModel       `yaml:"aip"`
	Downgrade  DowngradeModel `yaml:"downgrade"`
	TC         TCModel        `yaml:"tc"`
	DualGPO    DualGPOModel   `yaml:"dual_gpo"`
	Timing     TimingModel    `yaml:"timing"`
	Attacks    []AttackModel  `yaml:"attacks"`
	Properties []string       `yaml:"properties"`
}

type AIPModel struct {
	Length int        `yaml:"length"`
	Bits   []BitModel `yaml:"bits"`
}

type BitModel struct {
	Name string `yaml:"name"`
	Byte int    `yaml:"byte"`
	Bit  int    `yaml:"bit"` // 7..0, MSB first
	Mask string `yaml:"mask"`
}

type DowngradeModel struct {
	Clear    []string  `yaml:"clear"`
	Set      []string  `yaml:"set"`
	Preserve string    `yaml:"preserve"`
	Examples []Example `yaml:"examples"`
}

type Example struct {
	In  string `yaml:"in"`
	Out string `yaml:"out"`
}

type TCModel struct {
	Layout     []FieldModel `yaml:"layout"`
	CID        string       `yaml:"cid"`
	Cryptogram string       `yaml:"cryptogram"`
}

type FieldModel struct {
	Name   string `yaml:"name"`
	Length int    `yaml:"length"`
}

type DualGPOModel struct {
	TriggerRound int            `yaml:"trigger_round"`
	Dialects     []DialectModel `yaml:"dialects"`
	Invariant    string         `yaml:"invariant"`
}

type DialectModel struct {
	Name      string `yaml:"name"`
	AIP       string `yaml:"aip"`
	AFL       string `yaml:"afl"`
	Strongest string `yaml:"strongest_oda"`
}

type TimingModel struct {
	ARQCMillis      int64 `yaml:"arqc_ms"`
	InjectionMillis int64 `yaml:"injection_ms"`
	ResponseMillis  int64 `yaml:"legitimate_response_ms"`
}

type AttackModel struct {
	Type      string `yaml:"type"`
	Direction string `yaml:"direction"`
	Target    string `yaml:"target"`
}

// Params selects the values the model is built from. Zero values select the
// package defaults.
type Params struct {
	Profiles     map[emv.Dialect]emv.DialectProfile
	TriggerRound int
	Offset       time.Duration
	Window       time.Duration
}

// downgradeSamples covers the AIP values seen in the field.
var downgradeSamples = []emv.AIP{
	{0x5E, 0x00},
	{0x62, 0x00},
	{0x5C, 0x00},
	{0x20, 0x00},
	{0x00, 0x00},
}

// Build assembles the document.
func Build(p Params) *Document {
	if p.Profiles == nil {
		p.Profiles = emv.DefaultProfiles()
	}
	if p.TriggerRound <= 0 {
		p.TriggerRound = attack.DefaultTriggerRound
	}
	if p.Offset == 0 {
		p.Offset = attack.DefaultInjectionOffset
	}
	if p.Window == 0 {
		p.Window = attack.DefaultInjectionWindow
	}

	return &Document{
		Version:   Version,
		AIP:       aipModel(),
		Downgrade: downgradeModel(),
		TC: TCModel{
			Layout: []FieldModel{
				{Name: "CID", Length: 1},
				{Name: "ATC", Length: 2},
				{Name: "AC", Length: emv.CryptogramLen},
				{Name: "IAD", Length: attack.IADLen},
			},
			CID:        fmt.Sprintf("%02X", emv.CIDTC),
			Cryptogram: `HMAC-SHA1(SHA-256("fake_key_" || PAN)[0:16], BE16(ATC) || IAD)[0:8]`,
		},
		DualGPO: dualGPOModel(p.Profiles, p.TriggerRound),
		Timing: TimingModel{
			ARQCMillis:      0,
			InjectionMillis: p.Offset.Milliseconds(),
			ResponseMillis:  p.Window.Milliseconds(),
		},
		Attacks: []AttackModel{
			{Type: string(attack.TypeAuthDowngrade), Direction: attack.CardToTerminal.String(), Target: "GPO response AIP"},
			{Type: string(attack.TypeStateConfusion), Direction: attack.CardToTerminal.String(), Target: "GENERATE AC response (ARQC replaced by TC)"},
			{Type: string(attack.TypeCrossKernel), Direction: attack.CardToTerminal.String(), Target: "GPO response AIP and AFL"},
		},
		Properties: []string{
			"downgrade output announces SDA as strongest ODA",
			"downgrade is idempotent",
			"downgrade preserves all AIP bits except CDA, DDA and SDA",
			"forged TC length is 1 + 2 + 8 + len(IAD)",
			"dual GPO builds have identical Track2",
			"dual GPO builds differ in AIP",
			"injection happens before the legitimate response deadline",
		},
	}
}

func aipModel() AIPModel {
	caps := []struct {
		name string
		mask byte
	}{
		{emv.CapSDA.String(), 0x40},
		{emv.CapDDA.String(), 0x20},
		{emv.CapCDA.String(), 0x02},
		{emv.CapIssuerAuth.String(), 0x01},
	}

	m := AIPModel{Length: emv.AIPLen}
	for _, c := range caps {
		m.Bits = append(m.Bits, BitModel{Name: c.name, Byte: 0, Bit: mathbits.Len8(c.mask) - 1, Mask: fmt.Sprintf("0x%02X", c.mask)})
	}
	return m
}

func downgradeModel() DowngradeModel {
	m := DowngradeModel{
		Clear:    []string{emv.CapCDA.String(), emv.CapDDA.String()},
		Set:      []string{emv.CapSDA.String()},
		Preserve: "all other bits of both bytes",
	}
	for _, in := range downgradeSamples {
		out := emv.DowngradeAIP(in)
		m.Examples = append(m.Examples, Example{
			In:  fmt.Sprintf("%X", in.Bytes()),
			Out: fmt.Sprintf("%X", out.Bytes()),
		})
	}
	return m
}

func dualGPOModel(profiles map[emv.Dialect]emv.DialectProfile, trigger int) DualGPOModel {
	names := make([]string, 0, len(profiles))
	for d := range profiles {
		names = append(names, string(d))
	}
	sort.Strings(names)

	m := DualGPOModel{
		TriggerRound: trigger,
		Invariant:    "track2 identical across dialects; AIP and AFL follow the dialect",
	}
	for _, name := range names {
		p := profiles[emv.Dialect(name)]
		strongest := "none"
		if c, ok := p.AIP.StrongestODA(); ok {
			strongest = c.String()
		}
		m.Dialects = append(m.Dialects, DialectModel{
			Name:      name,
			AIP:       fmt.Sprintf("%X", p.AIP.Bytes()),
			AFL:       fmt.Sprintf("%X", p.AFL.Bytes()),
			Strongest: strongest,
		})
	}
	return m
}

// Write serializes doc as YAML.
func Write(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode model: %w", err)
	}
	return enc.Close()
}

// Read parses a document produced by Write.
func Read(r io.Reader) (*Document, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &doc, nil
}
