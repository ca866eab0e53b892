package cmd

import (
	"flag"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ownpad",
	Short: "Ownpad - a shared text pad with authorship",
	Long: `Ownpad lets several people edit one plain-text document at once.
Anyone may insert anywhere, but only the author of a piece of text (or the
room owner) may delete it.`,
	SilenceUsage: true,
}

func init() {
	// glog registers its flags on the standard flag set
	flag.Set("logtostderr", "true")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

func Execute() error {
	return rootCmd.Execute()
}
