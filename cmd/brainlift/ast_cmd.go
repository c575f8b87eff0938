package main

import (
	"fmt"
	"io"

	prettyjson "github.com/hokaccha/go-prettyjson"
	"github.com/spf13/cobra"

	"github.com/thymoze/brainlift/ast"
	"github.com/thymoze/brainlift/parser"
)

var astFormat string

var astCmd = &cobra.Command{
	Use:   "ast FILE",
	Short: "Display the syntax tree of a Brainfuck program",
	Args:  cobra.ExactArgs(1),
	RunE:  astHandler,
}

func init() {
	astCmd.Flags().StringVarP(&astFormat, "output", "o", "text", "Output format (json or text)")
	rootCmd.AddCommand(astCmd)
}

func astHandler(cmd *cobra.Command, args []string) error {
	source, err := readSource(args[0])
	if err != nil {
		return err
	}
	program, err := parser.Parse(source)
	if err != nil {
		return err
	}
	switch astFormat {
	case "json":
		out, err := prettyjson.Marshal(program)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	case "text":
		writeTree(cmd.OutOrStdout(), program.Instructions, "")
		return nil
	default:
		return fmt.Errorf("invalid output format %q (expected json or text)", astFormat)
	}
}

func writeTree(w io.Writer, instrs []ast.Instruction, indent string) {
	for _, ins := range instrs {
		fmt.Fprintf(w, "%s%s\n", indent, ins.Op.Name())
		if ins.Op == ast.Loop {
			writeTree(w, ins.Body, indent+"  ")
		}
	}
}
