package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thymoze/brainlift"
)

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Interpret a Brainfuck program",
	Args:  cobra.ExactArgs(1),
	RunE:  runHandler,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runHandler(cmd *cobra.Command, args []string) error {
	source, err := readSource(args[0])
	if err != nil {
		return err
	}
	policy, err := eofPolicy()
	if err != nil {
		return err
	}
	return brainlift.Run(source,
		brainlift.WithMaxTapeSize(viper.GetInt("max-tape-size")),
		brainlift.WithEOFPolicy(policy),
		brainlift.WithInput(cmd.InOrStdin()),
		brainlift.WithOutput(cmd.OutOrStdout()),
		brainlift.WithDebugOutput(cmd.ErrOrStderr()),
	)
}
