package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kilianp07/wsd/config"
)

var actorsCmd = &cobra.Command{
	Use:   "actors",
	Short: "Actor related commands",
}

var actorsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List configured actors and where they run",
	RunE:  runActorsLs,
}

func init() {
	actorsCmd.AddCommand(actorsLsCmd)
	rootCmd.AddCommand(actorsCmd)
}

func runActorsLs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return listActors(cmd, cfg)
}

func listActors(cmd *cobra.Command, cfg *config.Config) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tBUILDING\tLOCAL")
	where := func(name string) string {
		if cfg.Node.Hosts(name) {
			return "yes"
		}
		return "no"
	}
	for _, b := range cfg.Buildings {
		fmt.Fprintf(w, "%s\tBUILDING\t-\t%s\n", b.Name, where(b.Name))
	}
	for _, b := range cfg.Batteries {
		fmt.Fprintf(w, "%s\tBATTERY\t%s\t%s\n", b.Name, b.Building, where(b.Name))
	}
	for _, c := range cfg.Consumers {
		fmt.Fprintf(w, "%s\tCONSUMER\t%s\t%s\n", c.Name, c.Building, where(c.Name))
	}
	return w.Flush()
}
