package reconcile

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/sells-group/stationmap-cli/internal/model"
)

// Prompter is the operator-input boundary. It sits behind the same kind of
// capability interface as the automated lookups, so the state machine does
// not know whether an answer came from a human or a service.
type Prompter interface {
	// Confirm presents a candidate address. The operator may accept it,
	// edit it, or reject it (ok=false).
	Confirm(f *model.Feature, candidate model.Address) (model.Address, bool, error)

	// Enter asks the operator to supply an address when no candidate exists.
	// ok=false means the operator skipped the feature.
	Enter(f *model.Feature) (model.Address, bool, error)
}

// TerminalPrompter prompts on a terminal, one feature at a time.
type TerminalPrompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewTerminalPrompter reads answers from in and writes prompts to out.
func NewTerminalPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: bufio.NewScanner(in), out: out}
}

// Confirm implements Prompter.
func (p *TerminalPrompter) Confirm(f *model.Feature, candidate model.Address) (model.Address, bool, error) {
	fmt.Fprintf(p.out, "\nAddress repair: %s (%.5f, %.5f)\n", f.Name(), f.Lat, f.Lon)
	if cur := f.Address.OneLine(); cur != "" {
		fmt.Fprintf(p.out, "Current:   %s\n", cur)
	}
	fmt.Fprintf(p.out, "Suggested: %s\n", candidate.OneLine())

	for {
		fmt.Fprint(p.out, "[a]ccept / [e]dit / [r]eject: ")
		answer, err := p.readLine()
		if err != nil {
			return model.Address{}, false, err
		}
		switch strings.ToLower(answer) {
		case "a", "accept", "y", "yes", "":
			return candidate, true, nil
		case "e", "edit":
			return p.editAddress(candidate)
		case "r", "reject", "n", "no":
			return model.Address{}, false, nil
		}
		fmt.Fprintln(p.out, "Please answer a, e, or r.")
	}
}

// Enter implements Prompter.
func (p *TerminalPrompter) Enter(f *model.Feature) (model.Address, bool, error) {
	fmt.Fprintf(p.out, "\nNo candidate for %s (%.5f, %.5f)\n", f.Name(), f.Lat, f.Lon)
	fmt.Fprint(p.out, "Enter address manually? [y/N]: ")
	answer, err := p.readLine()
	if err != nil {
		return model.Address{}, false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return p.editAddress(f.Address)
	default:
		return model.Address{}, false, nil
	}
}

// editAddress prompts per field, keeping the default on empty input.
func (p *TerminalPrompter) editAddress(base model.Address) (model.Address, bool, error) {
	fields := []struct {
		label string
		dst   *string
	}{
		{"House number", &base.HouseNumber},
		{"Street", &base.Street},
		{"City", &base.City},
		{"State", &base.State},
		{"ZIP code", &base.PostalCode},
	}
	for _, field := range fields {
		fmt.Fprintf(p.out, "  %s [%s]: ", field.label, *field.dst)
		answer, err := p.readLine()
		if err != nil {
			return model.Address{}, false, err
		}
		if answer != "" {
			*field.dst = answer
		}
	}
	return base, true, nil
}

func (p *TerminalPrompter) readLine() (string, error) {
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.in.Text()), nil
}
