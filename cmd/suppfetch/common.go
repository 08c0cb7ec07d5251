package main

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/suppfetch/internal/collect"
	"github.com/pdiddy/suppfetch/pkg/types"
)

// prompter reads operator answers from the command's input. One buffered
// reader is shared so consecutive prompts do not lose input.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: bufio.NewReader(cmd.InOrStdin()), out: cmd.ErrOrStderr()}
}

// Line prints prompt and returns the next trimmed input line.
func (p *prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question; anything but y or yes is a no.
func (p *prompter) Confirm(prompt string) bool {
	answer, err := p.Line(prompt + " [y/N] ")
	if err != nil {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true
	}
	return false
}

// newCollector builds a collector whose cleanup confirmation goes through
// term, or is granted up front when yes is set.
func newCollector(cfg types.CollectorConfig, term *prompter, yes bool) *collect.Collector {
	confirm := term.Confirm
	if yes {
		confirm = func(string) bool { return true }
	}
	return collect.New(cfg, logger, collect.WithConfirm(confirm))
}

// runDirArg returns the run directory named on the command line, or today's
// directory under the configured output directory.
func runDirArg(args []string, cfg types.CollectorConfig) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	base := cfg.OutputDir
	if base == "" {
		base = "output"
	}
	return filepath.Join(base, time.Now().Format("2006-01-02"))
}
