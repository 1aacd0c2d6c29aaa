// Package prompt asks the operator yes/no questions before a run continues
// past a problem it cannot resolve on its own.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/cta-lst/dl1merge/internal/errors"
)

// Prompter asks a yes/no question. A false answer means the operator
// declined; callers abort the run.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

var questionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

// Terminal prompts on an interactive terminal.
type Terminal struct {
	in    *bufio.Reader
	out   io.Writer
	isTTY func() bool
}

// NewTerminal returns a Terminal reading answers from in. Confirm fails with
// ErrNotInteractive when in is not a terminal.
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	return &Terminal{
		in:  bufio.NewReader(in),
		out: out,
		isTTY: func() bool {
			return term.IsTerminal(int(in.Fd()))
		},
	}
}

// Confirm prints the question followed by "[y/N]" and reads one line.
// Only "y" or "yes" (any case) count as confirmation.
func (p *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	if p.isTTY != nil && !p.isTTY() {
		return false, errors.ErrNotInteractive
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(p.out, "%s [y/N] ", questionStyle.Render(question))

	response, err := p.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, errors.Wrap(err, "reading answer")
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// AutoYes confirms every question without asking. Used for --yes.
type AutoYes struct {
	out io.Writer
}

// NewAutoYes returns a Prompter that echoes questions to out (which may be
// nil) and always confirms.
func NewAutoYes(out io.Writer) *AutoYes {
	return &AutoYes{out: out}
}

// Confirm always returns true.
func (p *AutoYes) Confirm(_ context.Context, question string) (bool, error) {
	if p.out != nil {
		fmt.Fprintf(p.out, "%s [y/N] y (--yes)\n", question)
	}
	return true, nil
}

// Scripted answers questions from a fixed list and records what was asked.
type Scripted struct {
	Answers []bool
	Asked   []string
}

// Confirm pops the next answer. Running out of answers declines.
func (p *Scripted) Confirm(_ context.Context, question string) (bool, error) {
	p.Asked = append(p.Asked, question)
	if len(p.Answers) == 0 {
		return false, nil
	}
	answer := p.Answers[0]
	p.Answers = p.Answers[1:]
	return answer, nil
}
