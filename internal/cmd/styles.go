package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/cta-lst/dl1merge/internal/errors"
	"github.com/cta-lst/dl1merge/internal/logging"
	"github.com/cta-lst/dl1merge/internal/util"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// maxLineWidth bounds single status lines such as missing-file lists.
const maxLineWidth = 160

// printer writes operator-facing status lines.
type printer struct {
	w io.Writer
}

func (p printer) header(format string, args ...any) {
	fmt.Fprintln(p.w, headerStyle.Render(fmt.Sprintf(format, args...)))
}

func (p printer) ok(format string, args ...any) {
	p.line(okStyle.Render("✓"), format, args...)
}

func (p printer) warn(format string, args ...any) {
	p.line(warnStyle.Render("!"), format, args...)
}

func (p printer) fail(format string, args ...any) {
	p.line(failStyle.Render("✗"), format, args...)
}

func (p printer) detail(format string, args ...any) {
	fmt.Fprintln(p.w, "    "+dimStyle.Render(util.TruncateANSI(fmt.Sprintf(format, args...), maxLineWidth)))
}

func (p printer) line(mark, format string, args ...any) {
	fmt.Fprintf(p.w, "  %s %s\n", mark, util.TruncateANSI(fmt.Sprintf(format, args...), maxLineWidth))
}

// reportError prints err for the operator and logs it at its severity.
// Operator aborts and invalid input are warnings; everything else fails.
func reportError(out printer, logger *logging.Logger, err error) {
	msg := err.Error()
	if !errors.IsUserFacing(err) {
		msg = "unexpected error: " + msg
	}

	if errors.Is(err, errors.ErrAborted) || errors.GetSeverity(err) < errors.SeverityError {
		out.warn("%s", msg)
		logger.Warn("run stopped", "error", err)
	} else {
		out.fail("%s", msg)
		logger.Error("run failed", "error", err)
	}

	var procErr *errors.ProcessError
	if errors.Is(err, errors.ErrProcessFailed) && errors.As(err, &procErr) {
		out.detail("command: %s", procErr.CommandLine())
		if procErr.Stderr != "" {
			out.detail("stderr: %s", procErr.Stderr)
		}
	}
}
