package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	appcfg "github.com/badyast/testchess/internal/config"
	"github.com/badyast/testchess/internal/obslog"
	"github.com/badyast/testchess/internal/registry"
	"github.com/badyast/testchess/internal/uci"
)

// enginecheck probes engines for UCI conformance before they are let
// into a tournament.
func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	var (
		enginesPath = flag.String("engines", cfg.RegistryPath, "engine registry YAML")
		timeout     = flag.Duration("timeout", 2*time.Minute, "total probe timeout per engine")
	)
	flag.Parse()

	obslog.InitFromEnv()
	defer func() { _ = obslog.L().Sync() }()

	reg, err := registry.Load(*enginesPath)
	if err != nil {
		log.Fatalf("engine registry error: %v", err)
	}

	names := flag.Args()
	if len(names) == 0 {
		names = reg.Names()
	}
	if len(names) == 0 {
		log.Fatal("no engines to check")
	}

	sessionCfg := uci.Config{
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadyTimeout:     cfg.ReadyTimeout,
		QuitTimeout:      cfg.QuitTimeout,
		SearchGrace:      cfg.SearchGrace,
	}

	allOK := true
	for _, name := range names {
		eng, ok := reg.Get(name)
		if !ok {
			log.Printf("%s: not in registry", name)
			allOK = false
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		s := uci.NewSession(eng.Name, eng.Path, eng.Options, sessionCfg)
		rep := uci.Validate(ctx, s)
		cancel()

		printReport(rep)
		if !rep.Compatible {
			allOK = false
		}
	}

	if !allOK {
		os.Exit(1)
	}
}

func printReport(rep uci.Report) {
	verdict := "COMPATIBLE"
	if !rep.Compatible {
		verdict = "NOT COMPATIBLE"
	}
	fmt.Printf("\n%s: score %.0f/100 (%d/%d checks) %s\n", rep.Engine, rep.Score, rep.Passed, rep.Total, verdict)
	for _, c := range rep.Checks {
		mark := "ok"
		if !c.Passed {
			mark = "FAIL"
		}
		fmt.Printf("  [%s]\t%s\n", mark, c.Name)
	}
	for _, issue := range rep.Issues {
		fmt.Printf("  issue: %s\n", issue)
	}
	for _, warning := range rep.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
}
