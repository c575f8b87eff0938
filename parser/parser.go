// Package parser turns source text into the abstract program tree.
//
// Only the eight instruction bytes and '#' are significant; every other byte
// is a comment and is skipped. The single structural error is a mismatched
// bracket, reported with the 1-based line of the offending bracket. A parser
// should be used once, by calling Parse.
package parser

import (
	"bytes"

	"github.com/thymoze/brainlift/ast"
	"github.com/thymoze/brainlift/errz"
)

// Parser scans source text and produces an ast.Program.
type Parser struct {
	source []byte
	index  int
}

// Parse is shorthand for New followed by Parse.
func Parse(source string) (*ast.Program, error) {
	return New(source).Parse()
}

// New creates a Parser over the given source text.
func New(source string) *Parser {
	return &Parser{source: []byte(source)}
}

// Parse consumes the entire source and returns the program tree. Loop bodies
// in the result are structurally valid: every open bracket was matched.
func (p *Parser) Parse() (*ast.Program, error) {
	var instructions []ast.Instruction
	for {
		b, ok := p.peek()
		if !ok {
			break
		}
		if b == ']' {
			return nil, errz.NewSyntax(p.line(p.index), "mismatched bracket")
		}
		ins, err := p.instruction()
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, ins)
	}
	return &ast.Program{Instructions: instructions}, nil
}

// instruction parses the instruction starting at the current byte, which the
// caller has verified is an instruction byte other than ']'.
func (p *Parser) instruction() (ast.Instruction, error) {
	b := p.source[p.index]
	if b != '[' {
		p.index++
		return ast.Instruction{Op: opFor(b)}, nil
	}

	open := p.index
	p.index++
	var body []ast.Instruction
	for {
		c, ok := p.peek()
		if !ok {
			return ast.Instruction{}, errz.NewSyntax(p.line(open), "mismatched bracket")
		}
		if c == ']' {
			p.index++
			return ast.Instruction{Op: ast.Loop, Body: body}, nil
		}
		ins, err := p.instruction()
		if err != nil {
			return ast.Instruction{}, err
		}
		body = append(body, ins)
	}
}

// peek skips comment bytes and reports the next instruction byte, if any.
func (p *Parser) peek() (byte, bool) {
	for p.index < len(p.source) && !isInstruction(p.source[p.index]) {
		p.index++
	}
	if p.index >= len(p.source) {
		return 0, false
	}
	return p.source[p.index], true
}

// line returns the 1-based line number of the byte at the given index.
func (p *Parser) line(index int) int {
	return bytes.Count(p.source[:index], []byte{'\n'}) + 1
}

func isInstruction(b byte) bool {
	switch b {
	case '+', '-', '>', '<', '.', ',', '[', ']', '#':
		return true
	}
	return false
}

func opFor(b byte) ast.Op {
	switch b {
	case '+':
		return ast.Increment
	case '-':
		return ast.Decrement
	case '>':
		return ast.MoveRight
	case '<':
		return ast.MoveLeft
	case '.':
		return ast.Output
	case ',':
		return ast.Input
	case '#':
		return ast.Debug
	default:
		return ast.Invalid
	}
}
