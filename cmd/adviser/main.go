package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/dualstock/adviser/internal/analysis/advisor"
	"github.com/dualstock/adviser/internal/analysis/risk"
	"github.com/dualstock/adviser/internal/analysis/sentiment"
	"github.com/dualstock/adviser/internal/analysis/technical"
	"github.com/dualstock/adviser/internal/config"
	"github.com/dualstock/adviser/internal/marketdata"
	"github.com/dualstock/adviser/internal/reasoning"
	"github.com/dualstock/adviser/internal/render"
	"github.com/dualstock/adviser/internal/storage"
	"github.com/dualstock/adviser/pkg/logger"
	"github.com/dualstock/adviser/pkg/models"
)

const usage = `usage: adviser <command> [flags]

commands:
  analyze    -symbol SYM [-market domestic|foreign] [-risk-tolerance T] [-horizon H] [-style S] [-json]
  compare    -symbols SYM1,SYM2,... [-market domestic|foreign] [-json]
  portfolio  -portfolio FILE.json|JSON | -holdings SYM1:WEIGHT1,... [-market domestic|foreign] [-json]
  check-keys

global flags:
  -config PATH   configuration file (default config.yaml)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command := os.Args[1]

	flags := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := flags.String("config", "config.yaml", "configuration file path")
	symbol := flags.String("symbol", "", "stock symbol to analyze")
	symbols := flags.String("symbols", "", "comma-separated symbols to compare")
	holdings := flags.String("holdings", "", "comma-separated SYMBOL:WEIGHT pairs")
	portfolio := flags.String("portfolio", "", "portfolio JSON file or inline JSON")
	marketName := flags.String("market", "domestic", "market tier: domestic or foreign")
	riskTolerance := flags.String("risk-tolerance", "", "investor risk tolerance: conservative, moderate or aggressive")
	horizon := flags.String("horizon", "", "investment horizon: short_term, medium_term or long_term")
	style := flags.String("style", "", "investment style: conservative, moderate or aggressive")
	asJSON := flags.Bool("json", false, "emit raw JSON instead of styled output")
	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	log, err := logger.New(logger.Options{
		Level:    cfg.Logging.Level,
		File:     cfg.Logging.File,
		JSONFile: cfg.Logging.JSONFile,
		Console:  cfg.Logging.Console,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	creds := config.LoadCredentials()

	if command == "check-keys" {
		os.Exit(checkKeys(creds))
	}

	if err := creds.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	market := models.Market(*marketName)
	if !market.Valid() {
		fmt.Fprintf(os.Stderr, "unknown market %q, expected domestic or foreign\n", *marketName)
		os.Exit(2)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted, shutting down")
		cancel()
	}()

	app := buildAdvisor(cfg, creds, log)

	var exitCode int
	switch command {
	case "analyze":
		profile := buildProfile(*riskTolerance, *horizon, *style)
		exitCode = runAnalyze(ctx, app, *symbol, market, profile, *asJSON)
	case "compare":
		exitCode = runCompare(ctx, app, *symbols, market, *asJSON)
	case "portfolio":
		exitCode = runPortfolio(ctx, app, *portfolio, *holdings, market, *asJSON)
	default:
		fmt.Fprint(os.Stderr, usage)
		exitCode = 2
	}

	log.Sync()
	os.Exit(exitCode)
}

// buildAdvisor wires the full pipeline from configuration.
func buildAdvisor(cfg *config.Config, creds config.Credentials, log *zap.Logger) *advisor.Advisor {
	client := marketdata.NewClient(cfg.MarketData, cfg.Markets, creds, log.Named("marketdata"))
	tech := technical.NewAnalyzer(cfg.Analysis.Technical)
	collector := marketdata.NewCollector(client, tech, log.Named("collector"))

	sentimentEngine := sentiment.NewAnalyzer(cfg.Analysis.Sentiment, log.Named("sentiment"))
	riskEngine := risk.NewAnalyzer(cfg.Analysis.Risk, log.Named("risk"))
	reasoner := reasoning.NewClaudeReasoner(cfg.Reasoning, creds.AnthropicKey, log.Named("reasoning"))
	journal := storage.NewJournal(cfg.Journal.Path, cfg.Journal.Enabled, log.Named("journal"))

	return advisor.NewAdvisor(cfg, collector, sentimentEngine, riskEngine, reasoner, journal, log.Named("advisor"))
}

func runAnalyze(ctx context.Context, app *advisor.Advisor, symbol string, market models.Market, profile *models.UserProfile, asJSON bool) int {
	if symbol == "" {
		fmt.Fprintln(os.Stderr, "analyze requires -symbol")
		return 2
	}

	result, err := app.AnalyzeStock(ctx, symbol, market, profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		return 1
	}

	if asJSON {
		return emitJSON(result)
	}
	fmt.Println(render.Result(result))
	return 0
}

func runCompare(ctx context.Context, app *advisor.Advisor, list string, market models.Market, asJSON bool) int {
	symbols := splitList(list)
	if len(symbols) < 2 {
		fmt.Fprintln(os.Stderr, "compare requires -symbols with at least two entries")
		return 2
	}

	results, failures := app.Compare(ctx, symbols, market)
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "all analyses failed")
		for symbol, err := range failures {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", symbol, err)
		}
		return 1
	}

	if asJSON {
		return emitJSON(results)
	}
	fmt.Println(render.Compare(results, failures))
	return 0
}

func runPortfolio(ctx context.Context, app *advisor.Advisor, portfolioJSON, list string, market models.Market, asJSON bool) int {
	var holdings []models.Holding
	var err error
	if portfolioJSON != "" {
		holdings, err = loadPortfolio(portfolioJSON, market)
	} else {
		holdings, err = parseHoldings(list, market)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 2
	}

	report, err := app.AnalyzePortfolio(ctx, holdings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "portfolio analysis failed: %v\n", err)
		return 1
	}

	if asJSON {
		return emitJSON(report)
	}
	fmt.Println(render.Portfolio(report))
	return 0
}

// checkKeys reports which API keys are configured without revealing them.
func checkKeys(creds config.Credentials) int {
	status := func(key string) string {
		if key != "" {
			return "configured"
		}
		return "missing"
	}
	fmt.Printf("ANTHROPIC_API_KEY  %s (required)\n", status(creds.AnthropicKey))
	fmt.Printf("NEWS_API_KEY       %s (optional)\n", status(creds.NewsAPIKey))
	fmt.Printf("SERPER_API_KEY     %s (optional)\n", status(creds.SerperKey))
	if creds.AnthropicKey == "" {
		return 1
	}
	return 0
}

func splitList(list string) []string {
	parts := strings.Split(list, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// buildProfile assembles an investor profile from analyze flags; all
// empty means no profile.
func buildProfile(riskTolerance, horizon, style string) *models.UserProfile {
	if riskTolerance == "" && horizon == "" && style == "" {
		return nil
	}
	return &models.UserProfile{
		RiskTolerance:     riskTolerance,
		InvestmentHorizon: horizon,
		InvestmentStyle:   style,
	}
}

// loadPortfolio reads {"holdings": [...]} from a .json file or an inline
// JSON string. Holdings without a market fall back to the flag's market.
func loadPortfolio(source string, market models.Market) ([]models.Holding, error) {
	data := []byte(source)
	if strings.HasSuffix(source, ".json") {
		read, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("reading portfolio file: %w", err)
		}
		data = read
	}

	var doc struct {
		Holdings []models.Holding `json:"holdings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing portfolio: %w", err)
	}
	if len(doc.Holdings) == 0 {
		return nil, fmt.Errorf("portfolio has no holdings")
	}
	for i := range doc.Holdings {
		if doc.Holdings[i].Market == "" {
			doc.Holdings[i].Market = market
		}
	}
	return doc.Holdings, nil
}

// parseHoldings parses SYMBOL:WEIGHT pairs; omitted weights are spread
// equally over the unweighted entries.
func parseHoldings(list string, market models.Market) ([]models.Holding, error) {
	entries := splitList(list)
	if len(entries) == 0 {
		return nil, fmt.Errorf("portfolio requires -holdings")
	}

	holdings := make([]models.Holding, 0, len(entries))
	for _, entry := range entries {
		symbol, weightStr, hasWeight := strings.Cut(entry, ":")
		h := models.Holding{Symbol: strings.TrimSpace(symbol), Market: market}
		if hasWeight {
			if _, err := fmt.Sscanf(strings.TrimSpace(weightStr), "%f", &h.Weight); err != nil {
				return nil, fmt.Errorf("invalid weight in %q", entry)
			}
		}
		holdings = append(holdings, h)
	}

	unweighted := 0
	total := 0.0
	for _, h := range holdings {
		if h.Weight <= 0 {
			unweighted++
			continue
		}
		total += h.Weight
	}
	if unweighted > 0 && total < 1 {
		share := (1 - total) / float64(unweighted)
		for i := range holdings {
			if holdings[i].Weight <= 0 {
				holdings[i].Weight = share
			}
		}
	}
	return holdings, nil
}

func emitJSON(v interface{}) int {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encoding output: %v\n", err)
		return 1
	}
	return 0
}
