// Package params parses the sweep parameter mini-language.
//
// A parameter file is a whitespace-separated token stream. Each entry names
// an axis and gives it one or more values:
//
//	kT = 0.5                # single value
//	B_x temp : 0 1.0 0.25   # arithmetic range, labelled "temp"
//	JL { 1 2 5 }            # explicit list
//	[3 0 0] = 0.5           # per-site spin override
//
// Axes sharing a label advance in lock step and must enumerate the same
// number of values. An axis without a label gets a singleton label named
// after itself. A token starting with '#' discards the rest of its line.
package params

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Parse failure taxonomy. Errors returned by Parse wrap one of these.
var (
	ErrInvalidRange            = errors.New("range increment must be non-zero")
	ErrEmptyList               = errors.New("value list is empty")
	ErrUnterminatedList        = errors.New("value list is not terminated")
	ErrMalformedEntry          = errors.New("malformed parameter entry")
	ErrInconsistentLabelLength = errors.New("inconsistent label length")
	ErrMissingParameter        = errors.New("missing required parameter")
	ErrNoAxesDefined           = errors.New("parameter file defines no values")
)

// SpinOverride rescales the initial spin magnitude at one lattice site.
type SpinOverride struct {
	X, Y, Z uint
	Norm    float64
}

// Spec is the parsed parameter file: the swept axes grouped by label, in
// declaration order, plus any per-site spin overrides.
type Spec struct {
	// Axes maps each axis name to its enumerated values.
	Axes map[string][]float64

	// LabelOrder lists labels in first-seen order. The first label is the
	// fastest-varying digit of the sweep.
	LabelOrder []string

	// LabelAxes maps a label to the axes that advance with it, in the
	// order they joined the label.
	LabelAxes map[string][]string

	// LabelLen maps a label to its value count.
	LabelLen map[string]int

	// LabelOf maps an axis name back to its label.
	LabelOf map[string]string

	// Spins holds site spin overrides in file order.
	Spins []SpinOverride
}

// Parse reads a complete parameter file.
func Parse(r io.Reader) (*Spec, error) {
	spec := &Spec{
		Axes:      make(map[string][]float64),
		LabelAxes: make(map[string][]string),
		LabelLen:  make(map[string]int),
		LabelOf:   make(map[string]string),
	}

	tok, err := newTokenizer(r)
	if err != nil {
		return nil, err
	}

	for {
		head, ok := tok.next()
		if !ok {
			break
		}
		switch {
		case strings.HasPrefix(head, "#"):
			tok.skipLine()
		case strings.HasPrefix(head, "["):
			if err := parseSpin(tok, head, spec); err != nil {
				return nil, err
			}
		default:
			if err := parseAxis(tok, head, spec); err != nil {
				return nil, err
			}
		}
	}
	return spec, nil
}

// parseAxis consumes one axis entry after its name token.
func parseAxis(tok *tokenizer, name string, spec *Spec) error {
	label := ""
	var values []float64

	for len(values) == 0 {
		t, ok := tok.next()
		if !ok {
			return fmt.Errorf("%w: axis %q has no values", ErrMalformedEntry, name)
		}
		switch t {
		case "=":
			v, err := tok.nextFloat()
			if err != nil {
				return fmt.Errorf("%w: axis %q: %v", ErrMalformedEntry, name, err)
			}
			values = append(values, v)
		case ":":
			var err error
			if values, err = expandRange(tok, name); err != nil {
				return err
			}
		case "{":
			var err error
			if values, err = readList(tok, name); err != nil {
				return err
			}
		default:
			if label != "" {
				return fmt.Errorf("%w: axis %q: unexpected token %q", ErrMalformedEntry, name, t)
			}
			label = t
		}
	}

	if label == "" {
		label = name
	}
	return spec.addAxis(name, label, values)
}

// expandRange enumerates START LIMIT INC. The limit is widened by INC/256 so
// a limit intended to land exactly on the final step is not lost to float
// accumulation error.
func expandRange(tok *tokenizer, name string) ([]float64, error) {
	start, err := tok.nextFloat()
	if err != nil {
		return nil, fmt.Errorf("%w: axis %q range start: %v", ErrMalformedEntry, name, err)
	}
	limit, err := tok.nextFloat()
	if err != nil {
		return nil, fmt.Errorf("%w: axis %q range limit: %v", ErrMalformedEntry, name, err)
	}
	inc, err := tok.nextFloat()
	if err != nil {
		return nil, fmt.Errorf("%w: axis %q range increment: %v", ErrMalformedEntry, name, err)
	}
	if inc == 0 {
		return nil, fmt.Errorf("%w: axis %q", ErrInvalidRange, name)
	}

	limit += inc / 256
	var values []float64
	if inc > 0 {
		for v := start; v < limit; v += inc {
			values = append(values, v)
		}
	} else {
		for v := start; v > limit; v += inc {
			values = append(values, v)
		}
	}
	return values, nil
}

// readList consumes tokens up to the closing brace.
func readList(tok *tokenizer, name string) ([]float64, error) {
	var values []float64
	for {
		t, ok := tok.next()
		if !ok {
			return nil, fmt.Errorf("%w: axis %q", ErrUnterminatedList, name)
		}
		if t == "}" {
			if len(values) == 0 {
				return nil, fmt.Errorf("%w: axis %q", ErrEmptyList, name)
			}
			return values, nil
		}
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: axis %q: bad list value %q", ErrMalformedEntry, name, t)
		}
		values = append(values, v)
	}
}

// parseSpin consumes a "[x y z] = norm" override. head is the token that
// opened the bracket; the x coordinate may be fused to it.
func parseSpin(tok *tokenizer, head string, spec *Spec) error {
	xTok := strings.TrimPrefix(head, "[")
	if xTok == "" {
		var ok bool
		if xTok, ok = tok.next(); !ok {
			return fmt.Errorf("%w: unterminated spin override", ErrMalformedEntry)
		}
	}
	yTok, ok := tok.next()
	if !ok {
		return fmt.Errorf("%w: unterminated spin override", ErrMalformedEntry)
	}
	zTok, ok := tok.next()
	if !ok {
		return fmt.Errorf("%w: unterminated spin override", ErrMalformedEntry)
	}
	zTok = strings.TrimSuffix(zTok, "]")

	x, err := strconv.ParseUint(xTok, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: spin override x %q", ErrMalformedEntry, xTok)
	}
	y, err := strconv.ParseUint(yTok, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: spin override y %q", ErrMalformedEntry, yTok)
	}
	z, err := strconv.ParseUint(zTok, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: spin override z %q", ErrMalformedEntry, zTok)
	}

	if eq, ok := tok.next(); !ok || eq != "=" {
		return fmt.Errorf("%w: spin override [%d %d %d] missing '='", ErrMalformedEntry, x, y, z)
	}
	norm, err := tok.nextFloat()
	if err != nil {
		return fmt.Errorf("%w: spin override [%d %d %d]: %v", ErrMalformedEntry, x, y, z, err)
	}

	spec.Spins = append(spec.Spins, SpinOverride{X: uint(x), Y: uint(y), Z: uint(z), Norm: norm})
	return nil
}

// addAxis registers an axis under its label, enforcing the lock-step length
// invariant.
func (s *Spec) addAxis(name, label string, values []float64) error {
	if n, ok := s.LabelLen[label]; ok {
		if n != len(values) {
			return fmt.Errorf("%w: label %q: axis %q has %d values, label has %d",
				ErrInconsistentLabelLength, label, name, len(values), n)
		}
	} else {
		s.LabelOrder = append(s.LabelOrder, label)
		s.LabelLen[label] = len(values)
	}

	if _, redefined := s.Axes[name]; !redefined {
		s.LabelAxes[label] = append(s.LabelAxes[label], name)
	}
	s.Axes[name] = values
	s.LabelOf[name] = label
	return nil
}

// Empty reports whether the file defined no axes at all.
func (s *Spec) Empty() bool {
	return len(s.Axes) == 0
}

// Require verifies that every named axis is present with at least one value.
func (s *Spec) Require(names ...string) error {
	for _, name := range names {
		if len(s.Axes[name]) == 0 {
			return fmt.Errorf("%w: %s", ErrMissingParameter, name)
		}
	}
	return nil
}

// First returns the first enumerated value of an axis, or 0 if absent.
// Structural constants are read this way after Require has passed.
func (s *Spec) First(name string) float64 {
	vs := s.Axes[name]
	if len(vs) == 0 {
		return 0
	}
	return vs[0]
}

// tokenizer yields whitespace-separated tokens line by line, so a comment
// can discard the remainder of its own line only.
type tokenizer struct {
	lines [][]string
	li    int
	ti    int
}

func newTokenizer(r io.Reader) (*tokenizer, error) {
	t := &tokenizer{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		t.lines = append(t.lines, strings.Fields(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read parameter file: %w", err)
	}
	return t, nil
}

func (t *tokenizer) next() (string, bool) {
	for t.li < len(t.lines) {
		if t.ti < len(t.lines[t.li]) {
			tok := t.lines[t.li][t.ti]
			t.ti++
			return tok, true
		}
		t.li++
		t.ti = 0
	}
	return "", false
}

func (t *tokenizer) nextFloat() (float64, error) {
	tok, ok := t.next()
	if !ok {
		return 0, errors.New("unexpected end of input")
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, fmt.Errorf("bad number %q", tok)
	}
	return v, nil
}

func (t *tokenizer) skipLine() {
	t.li++
	t.ti = 0
}
