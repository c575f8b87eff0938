package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thymoze/brainlift"
)

var buildOutput string

var buildCmd = &cobra.Command{
	Use:   "build FILE",
	Short: "Compile a Brainfuck program to a relocatable object file",
	Long: `Compile a Brainfuck program to an x86-64 ELF relocatable object.

The object exports a "main" symbol and imports calloc, free, getchar and
putchar, so it links against a libc with any C toolchain:

  brainlift build program.bf
  cc program.o -o program`,
	Args: cobra.ExactArgs(1),
	RunE: buildHandler,
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "",
		"Object file path (default: input path with .o extension)")
	rootCmd.AddCommand(buildCmd)
}

func buildHandler(cmd *cobra.Command, args []string) error {
	source, err := readSource(args[0])
	if err != nil {
		return err
	}
	policy, err := eofPolicy()
	if err != nil {
		return err
	}
	out := buildOutput
	if out == "" {
		out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".o"
	}
	logger := buildLogger()
	return brainlift.Build(source, out,
		brainlift.WithMaxTapeSize(viper.GetInt("max-tape-size")),
		brainlift.WithEOFPolicy(policy),
		brainlift.WithLogger(&logger),
	)
}

func buildLogger() zerolog.Logger {
	level := zerolog.WarnLevel
	if viper.GetBool("verbose") {
		level = zerolog.InfoLevel
	}
	if isatty.IsTerminal(os.Stderr.Fd()) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}
