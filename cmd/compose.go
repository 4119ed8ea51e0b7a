package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/jsphweid/choirgen/compose"
	"github.com/jsphweid/choirgen/model"
)

var composeHarmonize bool

func init() {
	composeCmd.Flags().BoolVar(&composeHarmonize, "satb", false, "harmonize the melody into four voices")
	rootCmd.AddCommand(composeCmd)
}

var composeCmd = &cobra.Command{
	Use:   "compose <request.json>",
	Short: "Composes a score from a request file",
	Long:  `Composes a score from a request file and prints it as JSON`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		composeFile(args[0])
	},
}

func composeFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		cobra.CheckErr(err)
	}
	var req model.CompositionRequest
	cobra.CheckErr(json.Unmarshal(data, &req))

	score, _, err := compose.GenerateMelody(req)
	cobra.CheckErr(err)

	if composeHarmonize {
		score, _, err = compose.Harmonize(score)
		cobra.CheckErr(err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	cobra.CheckErr(enc.Encode(score))
}
