package main

import (
	"fmt"
	"strconv"

	"github.com/cuemby/drex/pkg/reliability"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var reliabilityCmd = &cobra.Command{
	Use:   "reliability R1 R2 [R3...]",
	Short: "Compute K-of-N survival probability for node reliabilities",
	Long: `Compute the probability that at least K of the given nodes survive.

Without --k a row is printed for every K from 1 to N.

Examples:
  drex reliability --k 2 0.9 0.9 0.9
  drex reliability 0.99 0.95 0.9 0.5`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, _ := cmd.Flags().GetInt("k")

		rs := make([]float64, len(args))
		for i, a := range args {
			r, err := strconv.ParseFloat(a, 64)
			if err != nil {
				return fmt.Errorf("invalid reliability %q: %w", a, err)
			}
			rs[i] = r
		}

		if k > 0 {
			p, err := reliability.ProbabilityKOfN(rs, k)
			if err != nil {
				return err
			}
			fmt.Println(formatProb(p))
			return nil
		}

		dist, err := reliability.Distribution(rs)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"K", "Exactly K", "At least K"})
		for j := 1; j < len(dist); j++ {
			table.Append([]string{
				strconv.Itoa(j),
				formatProb(dist[j]),
				formatProb(reliability.AtLeast(dist, j)),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	reliabilityCmd.Flags().Int("k", 0, "Minimum number of surviving nodes (0 prints every K)")
}
