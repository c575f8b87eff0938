// Command brainlift interprets Brainfuck programs and compiles them to
// relocatable x86-64 objects.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thymoze/brainlift/rt"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "brainlift",
	Short:         "Brainfuck interpreter and ahead-of-time compiler",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.Int("max-tape-size", rt.DefaultMaxTapeSize, "Maximum tape size in cells")
	flags.String("eof", rt.EOFIgnore.String(), "End-of-input behavior (ignore or zero)")
	flags.BoolP("verbose", "v", false, "Enable verbose logging")
	viper.BindPFlag("max-tape-size", flags.Lookup("max-tape-size"))
	viper.BindPFlag("eof", flags.Lookup("eof"))
	viper.BindPFlag("verbose", flags.Lookup("verbose"))

	viper.SetEnvPrefix("BRAINLIFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// initConfig loads $HOME/.brainlift.yaml if present. A missing config file is
// not an error.
func initConfig() {
	home, err := homedir.Dir()
	if err != nil {
		return
	}
	viper.AddConfigPath(home)
	viper.SetConfigName(".brainlift")
	viper.SetConfigType("yaml")
	_ = viper.ReadInConfig()
}

func eofPolicy() (rt.EOFPolicy, error) {
	switch s := viper.GetString("eof"); s {
	case "ignore":
		return rt.EOFIgnore, nil
	case "zero":
		return rt.EOFZero, nil
	default:
		return rt.EOFIgnore, fmt.Errorf("invalid eof policy %q (expected ignore or zero)", s)
	}
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printError(err error) {
	if !isatty.IsTerminal(os.Stderr.Fd()) {
		color.NoColor = true
	}
	fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
