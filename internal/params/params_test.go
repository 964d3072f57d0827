package params

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func parse(t *testing.T, input string) *Spec {
	t.Helper()
	spec, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return spec
}

func TestParseScalar(t *testing.T) {
	spec := parse(t, "kT = 0.5")

	if diff := cmp.Diff([]float64{0.5}, spec.Axes["kT"]); diff != "" {
		t.Errorf("kT values mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"kT"}, spec.LabelOrder); diff != "" {
		t.Errorf("label order mismatch (-want +got):\n%s", diff)
	}
	if got := spec.LabelOf["kT"]; got != "kT" {
		t.Errorf("unlabelled axis got label %q, want its own name", got)
	}
}

func TestParseRange(t *testing.T) {
	// The limit is widened by inc/256, so a limit landing exactly on a
	// step is included.
	spec := parse(t, "kT : 0 1 0.25")

	want := []float64{0, 0.25, 0.5, 0.75, 1}
	if diff := cmp.Diff(want, spec.Axes["kT"]); diff != "" {
		t.Errorf("range values mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRangeDescending(t *testing.T) {
	spec := parse(t, "B_x : 5 1 -2")

	want := []float64{5, 3, 1}
	if diff := cmp.Diff(want, spec.Axes["B_x"]); diff != "" {
		t.Errorf("descending range mismatch (-want +got):\n%s", diff)
	}
}

func TestParseRangeZeroIncrement(t *testing.T) {
	_, err := Parse(strings.NewReader("kT : 0 1 0"))
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("err = %v, want ErrInvalidRange", err)
	}
}

func TestParseList(t *testing.T) {
	spec := parse(t, "JL { 1 2.5 -3 }")

	want := []float64{1, 2.5, -3}
	if diff := cmp.Diff(want, spec.Axes["JL"]); diff != "" {
		t.Errorf("list values mismatch (-want +got):\n%s", diff)
	}
}

func TestParseListErrors(t *testing.T) {
	if _, err := Parse(strings.NewReader("JL { }")); !errors.Is(err, ErrEmptyList) {
		t.Errorf("empty list err = %v, want ErrEmptyList", err)
	}
	if _, err := Parse(strings.NewReader("JL { 1 2")); !errors.Is(err, ErrUnterminatedList) {
		t.Errorf("unterminated list err = %v, want ErrUnterminatedList", err)
	}
	if _, err := Parse(strings.NewReader("JL { 1 oops }")); !errors.Is(err, ErrMalformedEntry) {
		t.Errorf("bad list value err = %v, want ErrMalformedEntry", err)
	}
}

func TestParseLabels(t *testing.T) {
	spec := parse(t, `
kT temp : 0.2 1.0 0.2
B_x temp { 1 2 3 4 5 }
JL = 1
`)

	if diff := cmp.Diff([]string{"temp", "JL"}, spec.LabelOrder); diff != "" {
		t.Errorf("label order mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"kT", "B_x"}, spec.LabelAxes["temp"]); diff != "" {
		t.Errorf("temp axes mismatch (-want +got):\n%s", diff)
	}
	if got := spec.LabelLen["temp"]; got != 5 {
		t.Errorf("temp length = %d, want 5", got)
	}
}

func TestParseLabelLengthMismatch(t *testing.T) {
	_, err := Parse(strings.NewReader(`
kT temp { 1 2 3 }
B_x temp { 1 2 }
`))
	if !errors.Is(err, ErrInconsistentLabelLength) {
		t.Fatalf("err = %v, want ErrInconsistentLabelLength", err)
	}
	for _, want := range []string{"temp", "B_x", "3", "2"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestParseSecondLabelToken(t *testing.T) {
	_, err := Parse(strings.NewReader("kT temp extra = 1"))
	if !errors.Is(err, ErrMalformedEntry) {
		t.Fatalf("err = %v, want ErrMalformedEntry", err)
	}
}

func TestParseComments(t *testing.T) {
	spec := parse(t, `
# full line comment
kT = 0.5
#another = 9
JL = 1 # trailing comment with = tokens
B_x = 2
`)

	if len(spec.Axes) != 3 {
		t.Fatalf("parsed %d axes, want 3", len(spec.Axes))
	}
	if _, ok := spec.Axes["#another"]; ok {
		t.Error("comment line was parsed as an axis")
	}
}

func TestParseSpinOverrides(t *testing.T) {
	spec := parse(t, `
kT = 0.5
[3 0 0] = 0.25
[12 1 2] = -1
`)

	want := []SpinOverride{
		{X: 3, Y: 0, Z: 0, Norm: 0.25},
		{X: 12, Y: 1, Z: 2, Norm: -1},
	}
	if diff := cmp.Diff(want, spec.Spins); diff != "" {
		t.Errorf("spin overrides mismatch (-want +got):\n%s", diff)
	}
	// Overrides are not axes.
	if len(spec.Axes) != 1 {
		t.Errorf("parsed %d axes, want 1", len(spec.Axes))
	}
}

func TestParseSpinOverrideErrors(t *testing.T) {
	for _, input := range []string{
		"[1 2 3] 0.5",
		"[1 2.5 3] = 0.5",
		"[1 2",
	} {
		if _, err := Parse(strings.NewReader(input)); !errors.Is(err, ErrMalformedEntry) {
			t.Errorf("Parse(%q) err = %v, want ErrMalformedEntry", input, err)
		}
	}
}

func TestParseMultiLineList(t *testing.T) {
	spec := parse(t, "JL {\n1\n2\n3\n}")

	if diff := cmp.Diff([]float64{1, 2, 3}, spec.Axes["JL"]); diff != "" {
		t.Errorf("multi-line list mismatch (-want +got):\n%s", diff)
	}
}

func TestRequire(t *testing.T) {
	spec := parse(t, "width = 10\nheight = 5")

	if err := spec.Require("width", "height"); err != nil {
		t.Errorf("Require present axes: %v", err)
	}
	err := spec.Require("width", "depth")
	if !errors.Is(err, ErrMissingParameter) {
		t.Fatalf("err = %v, want ErrMissingParameter", err)
	}
	if !strings.Contains(err.Error(), "depth") {
		t.Errorf("error %q does not name the missing axis", err)
	}
}

func TestFirstAndEmpty(t *testing.T) {
	spec := parse(t, "width { 10 20 }")

	if got := spec.First("width"); got != 10 {
		t.Errorf("First(width) = %v, want 10", got)
	}
	if got := spec.First("absent"); got != 0 {
		t.Errorf("First(absent) = %v, want 0", got)
	}
	if spec.Empty() {
		t.Error("Empty() = true for populated spec")
	}

	empty := parse(t, "# nothing here\n")
	if !empty.Empty() {
		t.Error("Empty() = false for empty spec")
	}
}
