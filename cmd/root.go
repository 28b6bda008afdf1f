package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "goam",
	Short: "Thermal simulation of additive manufacturing processes",
	Long: `goam simulates powder-bed additive manufacturing: a scanning heat
source over a powder layer, heat transfer with melting and resolidification,
and per-cell material state (solid/powder/liquid) driving the
temperature-dependent property fields.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
