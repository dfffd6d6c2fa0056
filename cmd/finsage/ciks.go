package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/raghuneu/finsage/internal/ingesterr"
	"github.com/raghuneu/finsage/internal/pipeline"
)

var ciksCmd = &cobra.Command{
	Use:   "ciks [TICKER...]",
	Short: "Resolve tickers to SEC CIK numbers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(nil)
		if err != nil {
			return err
		}
		defer a.close()

		tickers := args
		if len(tickers) == 0 {
			tickers = a.cfg.Pipeline.Tickers
		}
		client := pipeline.NewEdgarClient(a.cfg, a.cache, a.logger)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TICKER\tCIK")
		for _, t := range tickers {
			cik, err := client.CIK(cmd.Context(), t)
			var ue *ingesterr.UnknownEntityError
			switch {
			case errors.As(err, &ue):
				cik = "-"
			case err != nil:
				return err
			}
			fmt.Fprintf(w, "%s\t%s\n", t, cik)
		}
		return w.Flush()
	},
}
