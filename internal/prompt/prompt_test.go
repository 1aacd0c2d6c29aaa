package prompt

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cta-lst/dl1merge/internal/errors"
)

func newTestTerminal(input string, tty bool) (*Terminal, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &Terminal{
		in:    bufio.NewReader(strings.NewReader(input)),
		out:   out,
		isTTY: func() bool { return tty },
	}, out
}

func TestTerminal_Confirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"  yes  \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"maybe\n", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			p, out := newTestTerminal(tt.input, true)

			got, err := p.Confirm(context.Background(), "2 files missing. Continue ?")
			if err != nil {
				t.Fatalf("Confirm() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if !strings.Contains(out.String(), "[y/N]") {
				t.Errorf("prompt output = %q, want [y/N] suffix", out.String())
			}
		})
	}
}

func TestTerminal_SuccessiveQuestions(t *testing.T) {
	p, _ := newTestTerminal("y\nn\n", true)
	ctx := context.Background()

	first, _ := p.Confirm(ctx, "training incomplete. Continue ?")
	second, _ := p.Confirm(ctx, "testing incomplete. Continue ?")
	if !first || second {
		t.Errorf("answers = %v, %v; want true, false", first, second)
	}
}

func TestTerminal_NotInteractive(t *testing.T) {
	p, out := newTestTerminal("y\n", false)

	_, err := p.Confirm(context.Background(), "Continue ?")
	if !errors.Is(err, errors.ErrNotInteractive) {
		t.Errorf("Confirm() error = %v, want ErrNotInteractive", err)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be printed without a terminal, got %q", out.String())
	}
}

func TestTerminal_CancelledContext(t *testing.T) {
	p, _ := newTestTerminal("y\n", true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Confirm(ctx, "Continue ?"); !errors.Is(err, context.Canceled) {
		t.Errorf("Confirm() error = %v, want context.Canceled", err)
	}
}

func TestAutoYes(t *testing.T) {
	var out bytes.Buffer
	ok, err := NewAutoYes(&out).Confirm(context.Background(), "Continue ?")
	if err != nil || !ok {
		t.Errorf("Confirm() = %v, %v; want true, nil", ok, err)
	}
	if !strings.Contains(out.String(), "--yes") {
		t.Errorf("output = %q, want echo of the auto answer", out.String())
	}

	if ok, _ := NewAutoYes(nil).Confirm(context.Background(), "q"); !ok {
		t.Error("AutoYes with nil writer should confirm")
	}
}

func TestScripted(t *testing.T) {
	p := &Scripted{Answers: []bool{true, false}}
	ctx := context.Background()

	first, _ := p.Confirm(ctx, "one")
	second, _ := p.Confirm(ctx, "two")
	third, _ := p.Confirm(ctx, "three")

	if !first || second || third {
		t.Errorf("answers = %v %v %v, want true false false", first, second, third)
	}
	if diff := cmp.Diff([]string{"one", "two", "three"}, p.Asked); diff != "" {
		t.Errorf("Asked mismatch (-want +got):\n%s", diff)
	}
}
