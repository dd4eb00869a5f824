package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/franz/scma/internal/util"
)

// errInputClosed ends an interactive session when stdin runs out
var errInputClosed = errors.New("input closed")

// prompter reads answers from the command's input
type prompter struct {
	raw io.Reader
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{raw: cmd.InOrStdin(), in: bufio.NewReader(cmd.InOrStdin()), out: cmd.OutOrStdout()}
}

// ask prints label and returns the trimmed answer
func (p *prompter) ask(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", errInputClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// secret reads a password without echo on a terminal
func (p *prompter) secret(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := util.ReadSecret(p.raw, p.in, p.out)
	if err == io.EOF {
		return "", errInputClosed
	}
	return s, err
}

// askDefault returns fallback when the answer is blank
func (p *prompter) askDefault(label, fallback string) (string, error) {
	s, err := p.ask(fmt.Sprintf("%s [%s]: ", label, fallback))
	if err != nil || s != "" {
		return s, err
	}
	return fallback, nil
}

func (p *prompter) printf(format string, args ...interface{}) {
	fmt.Fprintf(p.out, format, args...)
}
