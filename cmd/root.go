package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "choirgen",
	Short: "Deterministic SATB choral arranger",
	Long:  `Turns lyric sections into a validated four-part choral score.`,
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
