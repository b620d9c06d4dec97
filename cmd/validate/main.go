// Command validate backtests a strategy, stress-tests it, and prints the
// combined validation verdict.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"

	"github.com/YoByron/optionslab/internal/backtest"
	"github.com/YoByron/optionslab/internal/config"
	"github.com/YoByron/optionslab/internal/marketdata"
	"github.com/YoByron/optionslab/internal/montecarlo"
	"github.com/YoByron/optionslab/internal/risk"
	"github.com/YoByron/optionslab/internal/storage"
	"github.com/YoByron/optionslab/internal/strategy"
	"github.com/YoByron/optionslab/internal/validate"
)

func main() {
	var configPath string
	var showStress bool
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.BoolVar(&showStress, "stress", false, "Run stress-test scenarios after validation")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Environment.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, aborting run...")
		cancel()
	}()

	if err := run(ctx, cfg, logger, showStress); err != nil {
		logger.WithError(err).Error("Validation run failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger, showStress bool) error {
	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}

	strategyFunc, err := buildStrategy(cfg)
	if err != nil {
		return err
	}

	backtestCfg := backtest.Config{
		Start:                 cfg.StartDate(),
		End:                   cfg.EndDate(),
		InitialCapital:        cfg.Backtest.InitialCapital,
		CommissionPerContract: cfg.Backtest.CommissionPerContract,
		RiskFreeRate:          cfg.Backtest.RiskFreeRate,
	}
	mcCfg := montecarlo.Config{
		Trials:        cfg.MonteCarlo.Trials,
		RuinThreshold: cfg.MonteCarlo.RuinThreshold,
		RiskFreeRate:  cfg.Backtest.RiskFreeRate,
		Seed:          cfg.MonteCarlo.Seed,
		Workers:       cfg.MonteCarlo.Workers,
	}
	varCfg := risk.Config{
		Method:      risk.Method(cfg.Risk.Method),
		HorizonDays: cfg.Risk.HorizonDays,
		Trials:      cfg.Risk.Trials,
		Seed:        cfg.Risk.Seed,
	}
	thresholds := validate.Thresholds{
		MinScore:              cfg.Validation.MinScore,
		MaxRuinProbability:    cfg.Validation.MaxRuinProbability,
		MaxPathDependency:     cfg.Validation.MaxPathDependency,
		MinCostAdjustedSharpe: cfg.Validation.MinCostAdjustedSharpe,
		MaxVaR95Pct:           cfg.Validation.MaxVaR95Pct,
	}
	costs := validate.FlatCostModel{SlippagePerContract: cfg.Validation.SlippagePerContract}

	validator := validate.New(backtestCfg, mcCfg, montecarlo.Method(cfg.MonteCarlo.Method),
		varCfg, thresholds, costs, nil, logger)
	engine := backtest.NewEngine(backtestCfg, provider, logger)

	logger.WithFields(logrus.Fields{
		"symbols":  cfg.Data.Symbols,
		"strategy": cfg.Strategy.Kind,
		"start":    cfg.Backtest.Start,
		"end":      cfg.Backtest.End,
	}).Info("Starting validation run")

	result, err := validator.Run(ctx, engine, strategyFunc, cfg.Data.Symbols,
		cfg.Backtest.TradeFrequencyDays)
	if err != nil {
		return fmt.Errorf("validation: %w", err)
	}

	fmt.Print(backtest.FormatReport(result.Backtest))
	fmt.Println()
	fmt.Print(validate.FormatReport(result))

	if showStress {
		if err := runStress(engine, mcCfg, montecarlo.Method(cfg.MonteCarlo.Method), logger); err != nil {
			logger.WithError(err).Warn("Stress scenarios skipped")
		}
	}

	store, err := storage.NewStore(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	record := storage.RunRecord{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Symbols:   cfg.Data.Symbols,
		Strategy:  cfg.Strategy.Kind,
		Start:     cfg.StartDate(),
		End:       cfg.EndDate(),
		Result:    result,
	}
	if err := store.SaveRun(record); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	logger.WithField("run_id", record.ID).Info("Run record saved")

	if !result.Passed {
		os.Exit(2)
	}
	return nil
}

// runStress re-simulates the realized equity returns under each preset
// scenario, with an mpb bar tracking progress.
func runStress(engine *backtest.Engine, mcCfg montecarlo.Config, method montecarlo.Method, logger *logrus.Logger) error {
	equity := engine.EquityValues()
	if len(equity) < 2 {
		return fmt.Errorf("no equity history")
	}
	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] != 0 {
			returns = append(returns, equity[i]/equity[i-1]-1)
		}
	}

	scenarios := montecarlo.DefaultScenarios()

	p := mpb.New(mpb.WithWidth(64))
	bar := p.AddBar(int64(len(scenarios)),
		mpb.PrependDecorators(
			decor.Name("Scenarios"),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d / %d)", decor.WCSyncSpace),
		),
	)

	sim := montecarlo.New(mcCfg, logger)
	results := make(map[string]*montecarlo.Result, len(scenarios))
	for _, scenario := range scenarios {
		res, err := sim.StressTestScenarios(returns, []montecarlo.Scenario{scenario}, method)
		if err != nil {
			p.Wait()
			return err
		}
		for name, r := range res {
			results[name] = r
		}
		bar.Increment()
	}
	p.Wait()

	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("\nStress Scenarios")
	fmt.Println("----------------")
	for _, name := range names {
		r := results[name]
		fmt.Printf("  %-18s return=%7.2f%%  maxDD=%6.2f%%  ruin=%5.1f%%\n",
			name, r.TotalReturn.Mean*100, r.MaxDrawdown.Mean*100, r.ProbRuin*100)
	}
	return nil
}

func buildProvider(cfg *config.Config, logger *logrus.Logger) (marketdata.Provider, error) {
	var provider marketdata.Provider
	switch cfg.Data.Provider {
	case "csv":
		provider = marketdata.NewCSVProvider(cfg.Data.CSVDir)
	case "synthetic":
		provider = marketdata.NewSyntheticProvider(cfg.Data.Seed)
	default:
		return nil, fmt.Errorf("unknown data provider %q", cfg.Data.Provider)
	}
	if cfg.Data.Breaker {
		provider = marketdata.NewBreakerProvider(provider, logger)
	}
	return provider, nil
}

func buildStrategy(cfg *config.Config) (backtest.StrategyFunc, error) {
	switch cfg.Strategy.Kind {
	case "strangle":
		sc := strategy.DefaultStrangleConfig()
		sc.DTETarget = cfg.Strategy.DTETarget
		sc.DeltaTarget = cfg.Strategy.DeltaTarget
		sc.MinIV = cfg.Strategy.MinIV
		sc.MinCredit = cfg.Strategy.MinCredit
		sc.RiskFreeRate = cfg.Backtest.RiskFreeRate
		sc.StrikeTick = cfg.Strategy.StrikeTick
		sc.Quantity = cfg.Strategy.Quantity
		strangle, err := strategy.NewShortStrangle(sc)
		if err != nil {
			return nil, fmt.Errorf("build strangle: %w", err)
		}
		return strangle.Func(), nil
	case "put_credit_spread":
		sc := strategy.DefaultSpreadConfig()
		sc.DTETarget = cfg.Strategy.DTETarget
		sc.DeltaTarget = cfg.Strategy.DeltaTarget
		sc.Width = cfg.Strategy.Width
		sc.MinIV = cfg.Strategy.MinIV
		sc.MinCredit = cfg.Strategy.MinCredit
		sc.RiskFreeRate = cfg.Backtest.RiskFreeRate
		sc.StrikeTick = cfg.Strategy.StrikeTick
		sc.Quantity = cfg.Strategy.Quantity
		spread, err := strategy.NewPutCreditSpread(sc)
		if err != nil {
			return nil, fmt.Errorf("build spread: %w", err)
		}
		return spread.Func(), nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", cfg.Strategy.Kind)
	}
}
