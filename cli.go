package main

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"fundpilot/api"
	"fundpilot/config"
	"fundpilot/decision"
	"fundpilot/learn"
	"fundpilot/llm"
	"fundpilot/logger"
	"fundpilot/market"
	"fundpilot/metrics"
	"fundpilot/provider"
	"fundpilot/risk"
	"fundpilot/store"
)

type command struct {
	run func(args []string) error
}

type app struct {
	cfg   *config.Config
	store *store.Store
}

func newApp(cfg *config.Config, s *store.Store) *app {
	return &app{cfg: cfg, store: s}
}

func (a *app) commands() map[string]command {
	return map[string]command{
		"analyze":      {a.cmdAnalyze},
		"recommend":    {a.cmdRecommend},
		"daily":        {a.cmdDaily},
		"reflect":      {a.cmdReflect},
		"knowledge":    {a.cmdKnowledge},
		"learn":        {a.cmdLearn},
		"walk-forward": {a.cmdWalkForward},
		"monte-carlo":  {a.cmdMonteCarlo},
		"record-trade": {a.cmdRecordTrade},
		"llm":          {a.cmdLLM},
		"serve":        {a.cmdServe},
	}
}

func (a *app) orchestrator() *decision.Orchestrator {
	client := provider.NewClient()
	enrich := provider.NewEnrichment(a.store, client)
	loop := learn.NewLoop(a.store)
	engine := decision.NewEngine(a.store, enrich, loop)
	gateway := llm.NewGateway(a.cfg.LLM)
	return decision.NewOrchestrator(a.cfg, a.store, engine, gateway, loop)
}

func (a *app) cmdAnalyze(args []string) error {
	codes := map[string]string{}
	for _, idx := range a.cfg.BenchmarkIndices {
		codes[idx.Code] = idx.Name
	}
	for _, snap := range a.store.LatestIndexSnapshot(codes) {
		fmt.Printf("%-16s %10.2f  %+6.2f%%  %s\n", snap.Name, snap.Close, snap.ChangePct, snap.TradeDate)
	}

	closes, err := a.store.IndexCloses("000300")
	if err == nil {
		if regime := market.DetectRegime(closes, 0); regime != nil {
			fmt.Printf("\nmarket regime: %s — %s\n", regime.Regime, regime.Description)
			fmt.Printf("  trend score %.1f, volatility %.2f%%\n", regime.TrendScore, regime.Volatility*100)
		}
	}

	funds, err := a.store.FundData()
	if err != nil {
		return err
	}
	targets := map[string]market.ScoringTarget{}
	for cat, t := range a.cfg.ScoringTargets {
		targets[cat] = market.ScoringTarget{ReturnTarget: t.ReturnTarget, VolCap: t.VolCap, DDCap: t.DDCap}
	}
	ranked := market.RankFunds(funds, targets)
	if len(ranked) > 0 {
		fmt.Println("\nfund ranking (top 10):")
		limit := len(ranked)
		if limit > 10 {
			limit = 10
		}
		for i, f := range ranked[:limit] {
			fmt.Printf("%2d. %s %-20s  score %5.1f  1m %+6.2f%%  3m %+6.2f%%  dd %6.2f%%\n",
				i+1, f.FundCode, f.FundName, f.TotalScore, f.Return1M, f.Return3M, f.MaxDrawdown)
		}
	}
	return nil
}

func (a *app) cmdRecommend(args []string) error {
	started := time.Now()
	advisory, err := a.orchestrator().Run(context.Background())
	if err != nil {
		return err
	}
	metrics.PipelineDuration.Observe(time.Since(started).Seconds())

	byType := map[string]int{}
	for _, sig := range advisory.Signals {
		byType[string(sig.Type)]++
	}
	metrics.RecordSignals(byType)

	printAdvisory(advisory)
	return nil
}

func printAdvisory(advisory *decision.Advisory) {
	fmt.Printf("\n═══ advisory %s ═══\n", advisory.Date)
	fmt.Printf("regime: %s\n", advisory.Regime)
	if advisory.Assessment != nil {
		fmt.Printf("market: %s (%s)\n", advisory.Assessment.Narrative, advisory.Assessment.Sentiment)
	}
	for _, notice := range advisory.Notices {
		fmt.Printf("notice: %s\n", notice)
	}
	for key, quality := range advisory.DataQuality {
		if quality != "REALTIME" {
			fmt.Printf("data: %s (%s)\n", key, strings.ToLower(quality))
		}
	}
	fmt.Printf("drawdown response: %s\n\n", advisory.Drawdown.Narrative)

	if len(advisory.Recommendations) == 0 {
		fmt.Println("no recommendations today")
		return
	}
	for _, rec := range advisory.Recommendations {
		amount := ""
		if rec.Amount > 0 {
			amount = fmt.Sprintf("  %.0f RMB", rec.Amount)
		}
		fmt.Printf("%-6s %s  confidence %.0f%%%s\n    %s\n",
			strings.ToUpper(rec.Action), rec.FundCode, rec.Confidence*100, amount, rec.Reasoning)
	}
	if advisory.ModelUsed != "" {
		fmt.Printf("\nmodel: %s (%d tokens)\n", advisory.ModelUsed, advisory.TokensUsed)
	}
}

func (a *app) cmdDaily(args []string) error {
	ctx := context.Background()

	logger.Infof("step 1/5: learning cycle")
	loop := learn.NewLoop(a.store)
	loop.Cycle()

	logger.Infof("step 2/5: reflection cycle")
	gateway := llm.NewGateway(a.cfg.LLM)
	reflector := decision.NewReflector(a.cfg, a.store, gateway)
	if n := reflector.Cycle(ctx); n > 0 {
		logger.Infof("completed %d reflections", n)
	}

	logger.Infof("step 3/5: seeding fund universe")
	a.seedWatchlist()

	logger.Infof("step 4/5: advisory pipeline")
	if err := a.cmdRecommend(nil); err != nil {
		logger.Errorf("advisory pipeline: %v", err)
	}

	logger.Infof("step 5/5: account snapshot")
	return a.writeSnapshot()
}

func (a *app) seedWatchlist() {
	for category, seeds := range a.cfg.FundUniverse {
		for _, seed := range seeds {
			_ = a.store.UpsertFund(store.Fund{Code: seed.Code, Name: seed.Name})
			_ = a.store.AddToWatchlist(store.WatchItem{
				FundCode: seed.Code,
				Reason:   "seed universe",
				Category: category,
			})
		}
	}
}

func (a *app) writeSnapshot() error {
	holdings, err := a.store.Holdings()
	if err != nil {
		return err
	}
	cash, ok := a.store.LatestCash()
	if !ok {
		cash = a.cfg.CurrentCash
	}
	invested := 0.0
	for _, h := range holdings {
		invested += h.Value()
	}
	total := cash + invested

	values, _ := a.store.SnapshotValues(250)
	values = append(values, total)
	dd := risk.PortfolioDrawdown(values, a.cfg.MaxDrawdownSoft, a.cfg.MaxDrawdownHard)

	metrics.PortfolioValue.Set(total)
	metrics.PortfolioDrawdown.Set(dd.CurrentDrawdown)

	return a.store.SaveSnapshot(store.AccountSnapshot{
		Date:           store.Today(),
		TotalValue:     total,
		Cash:           cash,
		Invested:       invested,
		TotalPnL:       total - a.cfg.InitialCapital,
		TotalReturnPct: (total - a.cfg.InitialCapital) / a.cfg.InitialCapital * 100,
		MaxDrawdownPct: dd.MaxDrawdown * 100,
		Holdings:       holdings,
	})
}

func (a *app) cmdReflect(args []string) error {
	gateway := llm.NewGateway(a.cfg.LLM)
	reflector := decision.NewReflector(a.cfg, a.store, gateway)
	n := reflector.Cycle(context.Background())
	fmt.Printf("completed %d reflections\n", n)

	reflections, err := a.store.RecentReflections(10)
	if err != nil {
		return err
	}
	for _, r := range reflections {
		mark := "✗"
		if r.WasCorrect {
			mark = "✓"
		}
		fmt.Printf("%s [%s] decision %d — %s\n", mark, r.Period, r.DecisionID, r.ReflectionDate)
		if r.ReflectionText != "" {
			text := r.ReflectionText
			if len(text) > 200 {
				text = text[:200]
			}
			fmt.Printf("    %s\n", text)
		}
	}
	return nil
}

func (a *app) cmdKnowledge(args []string) error {
	lessons, err := a.store.ActiveKnowledge()
	if err != nil {
		return err
	}
	if len(lessons) == 0 {
		fmt.Println("knowledge base is empty; lessons accumulate after reflections")
		return nil
	}
	fmt.Printf("═══ knowledge base (%d lessons) ═══\n", len(lessons))
	for _, k := range lessons {
		date := k.CreatedAt
		if len(date) > 10 {
			date = date[:10]
		}
		fmt.Printf("[%-15s] ×%-2d %s  %s\n", k.Category, k.TimesValidated, date, k.Content)
	}
	return nil
}

func (a *app) cmdLearn(args []string) error {
	loop := learn.NewLoop(a.store)
	loop.Cycle()

	total, validated, err := a.store.ValidationCounts()
	if err != nil {
		return err
	}
	fmt.Printf("signals: %d total, %d validated, %d pending\n", total, validated, total-validated)

	perf, err := a.store.AllPerformance()
	if err != nil {
		return err
	}
	if len(perf) == 0 {
		fmt.Println("no strategy performance yet (no signal has a validated 30-day outcome)")
		return nil
	}
	fmt.Printf("\n%-18s %-12s %7s %7s %9s %7s %7s\n",
		"strategy", "regime", "signals", "win", "avg ret", "weight", "calib")
	for _, p := range perf {
		fmt.Printf("%-18s %-12s %7d %6.0f%% %+8.2f%% %7.2f %+7.2f\n",
			p.StrategyName, p.Regime, p.TotalSignals, p.WinRate*100,
			p.AvgReturn, p.RecommendedWeight, p.ConfidenceAccuracy)
	}

	for _, regime := range []string{market.RegimeBullStrong, market.RegimeBullWeak,
		market.RegimeRanging, market.RegimeBearWeak, market.RegimeBearStrong} {
		if weights := loop.LearnedWeights(regime); weights != nil {
			fmt.Printf("\n[%s] learned weights: %v\n", regime, weights)
		}
	}
	return nil
}

func (a *app) cmdWalkForward(args []string) error {
	funds, err := a.store.FundData()
	if err != nil {
		return err
	}
	result := learn.WalkForward(funds, 6)
	if result.NWindows == 0 {
		fmt.Println("not enough history for walk-forward validation (needs >= 360 NAV points for 6 windows)")
		return nil
	}
	fmt.Printf("walk-forward: %d windows, win rate %.1f%%\n", result.NWindows, result.AvgWinRate)
	fmt.Printf("returns: avg %+.2f%%, worst %+.2f%%, best %+.2f%%\n",
		result.AvgReturn, result.WorstReturn, result.BestReturn)
	fmt.Printf("robustness score: %.0f/100\n", result.RobustnessScore)
	return nil
}

func (a *app) cmdMonteCarlo(args []string) error {
	pnls, err := a.store.ExecutedTradePnls()
	if err != nil {
		return err
	}
	if len(pnls) < 3 {
		fmt.Printf("only %d closed trades; monte-carlo needs at least 3\n", len(pnls))
		return nil
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	result := learn.MonteCarlo(pnls, 1000, a.cfg.InitialCapital, rng)
	fmt.Printf("monte-carlo over %d trades × %d shuffles\n", result.NTrades, result.NSimulations)
	fmt.Printf("returns: median %+.2f%%, p5 %+.2f%%, p95 %+.2f%%\n",
		result.MedianReturn, result.Percentile5, result.Percentile95)
	fmt.Printf("drawdowns: median %.2f%%, worst %.2f%%\n",
		result.MedianMaxDrawdown, result.WorstMaxDrawdown)
	fmt.Printf("profit probability %.1f%%, robustness %.0f/100\n",
		result.ProbabilityOfProfit, result.RobustnessScore)
	return nil
}

func (a *app) cmdRecordTrade(args []string) error {
	reader := bufio.NewReader(os.Stdin)
	prompt := func(label string) string {
		fmt.Print(label)
		line, _ := reader.ReadString('\n')
		return strings.TrimSpace(line)
	}

	fundCode := prompt("fund code: ")
	action := prompt("action (buy/sell): ")
	if action != "buy" && action != "sell" {
		return fmt.Errorf("action must be buy or sell")
	}
	amount, err := strconv.ParseFloat(prompt("amount (RMB): "), 64)
	if err != nil || amount <= 0 {
		return fmt.Errorf("invalid amount")
	}
	nav, err := strconv.ParseFloat(prompt("execution NAV: "), 64)
	if err != nil || nav <= 0 {
		return fmt.Errorf("invalid NAV")
	}
	tradeDate := prompt("trade date (YYYY-MM-DD, empty = today): ")
	if tradeDate == "" {
		tradeDate = store.Today()
	}
	reason := prompt("notes: ")

	if err := a.store.RecordTrade(store.Trade{
		TradeDate: tradeDate,
		FundCode:  fundCode,
		Action:    action,
		Amount:    amount,
		Nav:       nav,
		Reason:    reason,
	}); err != nil {
		return err
	}
	fmt.Printf("recorded: %s %s %.2f RMB @ %.4f\n", action, fundCode, amount, nav)
	return nil
}

func (a *app) cmdLLM(args []string) error {
	if len(args) > 0 {
		target := args[0]
		if target != llm.ProviderDeepSeek && target != llm.ProviderQwen {
			return fmt.Errorf("unknown provider %q (deepseek | qwen)", target)
		}
		if err := rewriteEnvProvider(target); err != nil {
			return err
		}
		a.cfg.LLM.Provider = target
		fmt.Printf("switched to %s\n", target)
	}

	fmt.Printf("provider: %s\n", a.cfg.LLM.Provider)
	models := a.cfg.LLM.Models(a.cfg.LLM.Provider)
	fmt.Printf("  analysis model: %s\n", models.AnalysisModel)
	fmt.Printf("  decision model: %s\n", models.DecisionModel)
	fmt.Printf("  critical model: %s\n", models.CriticalModel)

	watch, err := a.store.Watchlist()
	if err == nil && len(watch) > 0 {
		counts := map[string]int{}
		for _, w := range watch {
			counts[w.Category]++
		}
		fmt.Printf("fund pool: %v (total %d)\n", counts, len(watch))
	}
	return nil
}

// rewriteEnvProvider updates LLM_PROVIDER in the .env file, creating it
// when absent.
func rewriteEnvProvider(provider string) error {
	const envPath = ".env"
	line := "LLM_PROVIDER=" + provider

	raw, err := os.ReadFile(envPath)
	if err != nil {
		if os.IsNotExist(err) {
			return os.WriteFile(envPath, []byte(line+"\n"), 0o600)
		}
		return err
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	found := false
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "LLM_PROVIDER=") {
			lines[i] = line
			found = true
		}
	}
	if !found {
		lines = append(lines, line)
	}
	return os.WriteFile(envPath, []byte(strings.Join(lines, "\n")+"\n"), 0o600)
}

func (a *app) cmdServe(args []string) error {
	addr := ":18080"
	if len(args) > 0 {
		addr = args[0]
	}
	logger.Infof("serving read-only API on %s", addr)
	return api.NewServer(a.cfg, a.store).Run(addr)
}
