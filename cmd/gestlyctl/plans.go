package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gestly/gestly/internal/config"
)

func plansCmd() *cobra.Command {
	var asYAML bool
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Show the subscription plan catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			plans, err := config.LoadPlans(cfg.PlansFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asYAML {
				enc := yaml.NewEncoder(out)
				defer enc.Close()
				return enc.Encode(map[string]any{"plans": plans})
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tATTENDANTS\tAPI\tCAMPAIGNS")
			for _, p := range plans {
				limit := "unlimited"
				if p.MaxAttendants > 0 {
					limit = fmt.Sprint(p.MaxAttendants)
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%t\n", p.Name, limit, p.APIAccess, p.Campaigns)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "print the catalog in plans-file format")
	return cmd
}
