package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/wsd/config"
	"github.com/kilianp07/wsd/core/ledger"
	"github.com/kilianp07/wsd/core/metrics/kpi"
	infrakpi "github.com/kilianp07/wsd/infra/kpi"
	"github.com/kilianp07/wsd/jobs/kpibackfill"
	"github.com/kilianp07/wsd/pkg/export"
)

var (
	ledgerBuilding string
	ledgerConsumer string
	ledgerSince    string
	ledgerUntil    string
	ledgerFormat   string
	ledgerKPIDB    string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect settlement records",
}

var ledgerQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Print matching settlement records as JSON lines or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ledgerFormat != "json" && ledgerFormat != "csv" {
			return fmt.Errorf("unsupported format %q", ledgerFormat)
		}
		recs, err := queryLedger(cmd.Context())
		if err != nil {
			return err
		}
		if ledgerFormat == "csv" {
			return export.WriteCSV(cmd.OutOrStdout(), recs)
		}
		return export.WriteJSON(cmd.OutOrStdout(), recs)
	},
}

var ledgerSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print per-building totals of matching records",
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := queryLedger(cmd.Context())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(ledger.Summarize(recs))
	},
}

var ledgerKPICmd = &cobra.Command{
	Use:   "kpi",
	Short: "Rebuild daily building KPIs from matching records",
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := queryLedger(cmd.Context())
		if err != nil {
			return err
		}
		var store kpi.Store = kpi.NewMemoryStore()
		if ledgerKPIDB != "" {
			db, err := infrakpi.NewSQLiteStore(ledgerKPIDB)
			if err != nil {
				return fmt.Errorf("open kpi store: %w", err)
			}
			defer db.Close()
			store = db
		}
		if err := kpibackfill.Backfill(store, recs); err != nil {
			return err
		}
		out, err := dailyKPIs(store, recs)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

type dailyKPI struct {
	Building        string  `json:"building"`
	Date            string  `json:"date"`
	SelfSufficiency float64 `json:"self_sufficiency"`
	ImportRatio     float64 `json:"import_ratio"`
}

// dailyKPIs reads back every building and day spanned by recs.
func dailyKPIs(store kpi.Store, recs []ledger.LogRecord) ([]dailyKPI, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	first, last := recs[0].Timestamp, recs[0].Timestamp
	seen := map[string]struct{}{}
	for _, r := range recs {
		if r.Timestamp.Before(first) {
			first = r.Timestamp
		}
		if r.Timestamp.After(last) {
			last = r.Timestamp
		}
		seen[r.Building] = struct{}{}
	}
	buildings := make([]string, 0, len(seen))
	for b := range seen {
		buildings = append(buildings, b)
	}
	sort.Strings(buildings)
	var out []dailyKPI
	for _, b := range buildings {
		days, err := store.Query(b, first, last)
		if err != nil {
			return nil, err
		}
		for _, d := range days {
			out = append(out, dailyKPI{
				Building:        b,
				Date:            d.Date.Format("2006-01-02"),
				SelfSufficiency: d.SelfSufficiency(),
				ImportRatio:     d.ImportRatio(),
			})
		}
	}
	return out, nil
}

func init() {
	ledgerQueryCmd.Flags().StringVar(&ledgerFormat, "format", "json", "output format: json or csv")
	ledgerKPICmd.Flags().StringVar(&ledgerKPIDB, "db", "", "SQLite file to backfill (in memory when empty)")
	for _, c := range []*cobra.Command{ledgerQueryCmd, ledgerSummaryCmd, ledgerKPICmd} {
		c.Flags().StringVar(&ledgerBuilding, "building", "", "only this building")
		c.Flags().StringVar(&ledgerConsumer, "consumer", "", "only periods touching this consumer")
		c.Flags().StringVar(&ledgerSince, "since", "", "RFC3339 lower bound")
		c.Flags().StringVar(&ledgerUntil, "until", "", "RFC3339 upper bound")
		ledgerCmd.AddCommand(c)
	}
	rootCmd.AddCommand(ledgerCmd)
}

func parseLedgerQuery() (ledger.LogQuery, error) {
	q := ledger.LogQuery{Building: ledgerBuilding, Consumer: ledgerConsumer}
	var err error
	if ledgerSince != "" {
		if q.Start, err = time.Parse(time.RFC3339, ledgerSince); err != nil {
			return q, fmt.Errorf("--since: %w", err)
		}
	}
	if ledgerUntil != "" {
		if q.End, err = time.Parse(time.RFC3339, ledgerUntil); err != nil {
			return q, fmt.Errorf("--until: %w", err)
		}
	}
	return q, nil
}

func queryLedger(ctx context.Context) ([]ledger.LogRecord, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Ledger.Backend == "none" {
		return nil, fmt.Errorf("ledger backend is none")
	}
	q, err := parseLedgerQuery()
	if err != nil {
		return nil, err
	}
	store, err := cfg.Ledger.Open()
	if err != nil {
		return nil, err
	}
	defer store.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	return store.Query(ctx, q)
}
