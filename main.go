package main

import (
	"fmt"
	"os"

	"fundpilot/config"
	"fundpilot/logger"
	"fundpilot/store"
)

func main() {
	cfg, err := config.Load(os.Getenv("FUNDPILOT_CONFIG"))
	if err != nil {
		logger.Errorf("load config: %v", err)
		os.Exit(1)
	}

	s, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.Errorf("open store: %v", err)
		os.Exit(1)
	}
	defer s.Close()

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	app := newApp(cfg, s)
	verb := args[0]
	handler, ok := app.commands()[verb]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", verb)
		printUsage()
		os.Exit(2)
	}
	if err := handler.run(args[1:]); err != nil {
		logger.Errorf("%s: %v", verb, err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`fundpilot — quantitative fund-trading advisor

usage: fundpilot <command> [args]

commands:
  analyze       market regime, index snapshot and fund scoring
  recommend     run the advisory pipeline and print recommendations
  daily         full daily routine: learn, reflect, advise, snapshot
  reflect       reflect on decisions whose 7d/30d horizon elapsed
  knowledge     print the knowledge base
  learn         run the learning cycle and print the evolution report
  walk-forward  out-of-sample validation over the NAV history
  monte-carlo   shuffle-test realized trades for luck dependence
  record-trade  journal an executed trade (the only mutating verb)
  llm [provider] show or switch the LLM backend (deepseek | qwen)
  serve         run the read-only HTTP API + metrics endpoint`)
}
