package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pix-subscription/internal/config"
	"pix-subscription/internal/infra/notify"
)

func plansCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List the configured plan catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*cfgPath)
			if err != nil {
				return err
			}
			if _, err := cfg.PlanCatalog(); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRICE (R$)\tDAYS")
			for _, p := range cfg.Plans {
				fmt.Fprintf(w, "%s\t%s\t%d\n", p.ID, notify.FormatAmount(p.Price), p.DurationDays)
			}
			return w.Flush()
		},
	}
}
