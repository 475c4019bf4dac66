package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alextompkins/piano-vision/internal/transcript"
)

var (
	truthPath  string
	scoredPath string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Compare a transcript log against a ground-truth log",
	RunE: func(cmd *cobra.Command, args []string) error {
		truth, err := os.Open(truthPath)
		if err != nil {
			return fmt.Errorf("open truth: %w", err)
		}
		defer truth.Close()

		output, err := os.Open(scoredPath)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer output.Close()

		acc, err := transcript.Score(truth, output)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), acc.String())
		return nil
	},
}

func init() {
	scoreCmd.Flags().StringVarP(&truthPath, "truth", "t", "", "Ground-truth transcript log")
	scoreCmd.Flags().StringVarP(&scoredPath, "output", "o", "", "Transcript log to score")
	scoreCmd.MarkFlagRequired("truth")
	scoreCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(scoreCmd)
}
