package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/newthinker/quantlens/internal/backtest"
	"github.com/newthinker/quantlens/internal/chart"
	"github.com/newthinker/quantlens/internal/core"
	"github.com/newthinker/quantlens/internal/logger"
	"github.com/newthinker/quantlens/internal/pipeline"
	"github.com/newthinker/quantlens/internal/summary"
	"github.com/newthinker/quantlens/internal/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reportRun    bool
	reportExport bool
	reportParams backtest.Parameters
	reportTable  table.State
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print summary metrics and one page of trades",
	Long: `Fetch the precomputed results, or run a backtest with --run, and print the
summary metrics and one page of the trade table. Parameters not given on the
command line come from the backtest section of the config.`,
	RunE: runReport,
}

func init() {
	f := reportCmd.Flags()
	f.BoolVar(&reportRun, "run", false, "run a parameterized backtest instead of loading precomputed results")
	f.BoolVar(&reportExport, "export", false, "publish the results to the configured archive")

	f.IntVar(&reportParams.TopK, "top-k", 0, "number of stocks to hold")
	f.Float64Var(&reportParams.InitialCapital, "initial-capital", 0, "starting capital")
	f.Float64Var(&reportParams.SellThreshold, "sell-threshold", 0, "sell threshold between 0 and 1")
	f.StringVar(&reportParams.StartPeriod, "start", "", "first quarter, e.g. 2021_Q1")
	f.StringVar(&reportParams.EndPeriod, "end", "", "last quarter, e.g. 2024_Q4")
	f.IntVar(&reportParams.RandomSeed, "seed", 0, "random seed")
	f.StringVar(&reportParams.ModelStrategy, "model", "", "model strategy: "+strings.Join(backtest.ModelStrategies, ", "))

	def := table.DefaultState()
	f.StringVar(&reportTable.SortKey, "sort", def.SortKey, "sort column")
	f.StringVar((*string)(&reportTable.Direction), "dir", string(def.Direction), "sort direction: asc or desc")
	f.IntVar(&reportTable.Page, "page", 1, "page number, starting at 1")
	f.IntVar(&reportTable.PageSize, "size", 0, "rows per page: 10, 25 or 50")

	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	c := newClient(cfg, log)
	fetcher, err := dashboardFetcher(cfg, c, log)
	if err != nil {
		return err
	}

	var params *backtest.Parameters
	if reportRun {
		p := mergeParams(cfg.Backtest.Parameters(), reportParams, cmd)
		params = &p
	}

	p := pipeline.New(pipeline.Config{Name: "report", Timeout: cfg.API.Timeout}, fetcher, log)
	token, err := p.Submit(params)
	if err != nil {
		return errors.New(core.Describe(err))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.API.Timeout+5*time.Second)
	defer cancel()
	if err := p.Wait(ctx, token); err != nil {
		return fmt.Errorf("waiting for results: %w", err)
	}

	state := p.State()
	if state.Phase == pipeline.PhaseFailed {
		return fmt.Errorf("request failed: %s", state.ErrorMessage)
	}

	st := reportTable
	if !cmd.Flags().Changed("size") {
		st.PageSize = cfg.Table.PageSize
	}
	st.Page--
	printReport(cmd.OutOrStdout(), state, st)

	if reportExport {
		src, err := openArchive(cfg, log)
		if err != nil {
			return err
		}
		if err := exportResults(cmd.Context(), src, state); err != nil {
			return fmt.Errorf("exporting results: %w", err)
		}
		log.Info("exported results", zap.String("prefix", cfg.Source.Archive.Prefix))
	}
	return nil
}

// exportTimeout bounds the archive upload separately from the fetch.
const exportTimeout = 30 * time.Second

type publisher interface {
	Publish(ctx context.Context, result *backtest.Result) error
}

func exportResults(parent context.Context, pub publisher, state pipeline.State) error {
	ctx, cancel := context.WithTimeout(parent, exportTimeout)
	defer cancel()
	return pub.Publish(ctx, &backtest.Result{
		Ledger:         state.Ledger,
		Trades:         state.Trades,
		Metrics:        state.Metrics,
		MetricsDerived: state.MetricsDerived,
	})
}

// mergeParams overlays the flags the user set on the configured defaults.
func mergeParams(def, flags backtest.Parameters, cmd *cobra.Command) backtest.Parameters {
	changed := cmd.Flags().Changed
	if changed("top-k") {
		def.TopK = flags.TopK
	}
	if changed("initial-capital") {
		def.InitialCapital = flags.InitialCapital
	}
	if changed("sell-threshold") {
		def.SellThreshold = flags.SellThreshold
	}
	if changed("start") {
		def.StartPeriod = flags.StartPeriod
	}
	if changed("end") {
		def.EndPeriod = flags.EndPeriod
	}
	if changed("seed") {
		def.RandomSeed = flags.RandomSeed
	}
	if changed("model") {
		def.ModelStrategy = flags.ModelStrategy
	}
	return def
}

func printReport(out io.Writer, state pipeline.State, st table.State) {
	if state.Params != nil {
		p := state.Params
		fmt.Fprintf(out, "Backtest %s to %s, top %d, capital %s, sell threshold %g, seed %d",
			p.StartPeriod, p.EndPeriod, p.TopK, chart.FormatValue(p.InitialCapital), p.SellThreshold, p.RandomSeed)
		if p.ModelStrategy != "" {
			fmt.Fprintf(out, ", %s", p.ModelStrategy)
		}
		fmt.Fprintln(out)
	}

	if n := len(state.Ledger); n > 0 {
		first, last := state.Ledger[0], state.Ledger[n-1]
		fmt.Fprintf(out, "Ledger: %d days, %s to %s, final value %s\n",
			n, first.Day(), last.Day(), chart.FormatValue(last.PortfolioValue))
	}
	fmt.Fprintln(out)

	if state.Metrics != nil {
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, card := range summary.Format(*state.Metrics) {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", card.Label, card.Value, card.Symbol(), card.Description)
		}
		tw.Flush()
		if state.MetricsDerived {
			fmt.Fprintln(out, "(metrics computed from the ledger)")
		}
		fmt.Fprintln(out)
	}

	printTable(out, table.Build(state.Trades, st))
}

func printTable(out io.Writer, view table.View) {
	if view.Empty {
		fmt.Fprintln(out, view.Message)
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	labels := make([]string, len(view.Headers))
	for i, h := range view.Headers {
		labels[i] = h.Label
		if h.Active {
			labels[i] += arrow(h.Direction)
		}
	}
	fmt.Fprintln(tw, strings.Join(labels, "\t")+"\t")
	rules := make([]string, len(labels))
	for i, l := range labels {
		rules[i] = strings.Repeat("-", utf8.RuneCountInString(l))
	}
	fmt.Fprintln(tw, strings.Join(rules, "\t")+"\t")
	for _, row := range view.Rows {
		texts := make([]string, len(row))
		for i, cell := range row {
			texts[i] = cell.Text
		}
		fmt.Fprintln(tw, strings.Join(texts, "\t")+"\t")
	}
	tw.Flush()

	fmt.Fprintf(out, "\nRows %d-%d of %d, page %d of %d\n",
		view.First, view.Last, view.Total, view.State.Page+1, view.PageCount)
}

func arrow(dir table.Direction) string {
	if dir == table.Descending {
		return " ▼"
	}
	return " ▲"
}
