package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jsphweid/choirgen/model"
	"github.com/jsphweid/choirgen/validate"
)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <score.json>",
	Short: "Inspects a score file",
	Long:  `Inspects a score file: sections, chords, and diagnostics`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		inspect(args[0])
	},
}

func inspect(path string) {
	data, err := os.ReadFile(path)
	cobra.CheckErr(err)

	var score model.CanonicalScore
	cobra.CheckErr(json.Unmarshal(data, &score))

	fmt.Printf("stage: %v key: %v %v tempo: %v\n",
		score.Meta.Stage, score.Meta.Key, score.Meta.TimeSignature, score.Meta.TempoBPM)
	fmt.Printf("measures: %v sections: %v\n", len(score.Measures), len(score.Sections))
	for _, sec := range score.Sections {
		fmt.Printf("section %v (%v): %v syllables\n", sec.ID, sec.Label, len(sec.Syllables))
	}
	for _, ch := range score.ChordProgression {
		fmt.Printf("m%v: %v\n", ch.MeasureNumber, ch.Symbol)
	}
	for _, d := range validate.Check(&score) {
		fmt.Printf("%v [%v] %v\n", d.Severity, d.Code, d.Message)
	}
}
