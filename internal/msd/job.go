package msd

import (
	"fmt"

	"github.com/msd-research/metropolis/internal/params"
)

// FlipModel selects how trial moves are proposed.
type FlipModel int

const (
	// ContinuousSpin proposes uniformly distributed directions on the
	// sphere.
	ContinuousSpin FlipModel = iota
	// UpDown restricts spins to ±z (Ising-like).
	UpDown
)

// ParseFlipModel parses the command-line spelling of a flip model.
func ParseFlipModel(s string) (FlipModel, error) {
	switch s {
	case "CONTINUOUS_SPIN_MODEL":
		return ContinuousSpin, nil
	case "UP_DOWN_MODEL":
		return UpDown, nil
	}
	return 0, fmt.Errorf("unknown flip model %q", s)
}

func (m FlipModel) String() string {
	if m == UpDown {
		return "UP_DOWN_MODEL"
	}
	return "CONTINUOUS_SPIN_MODEL"
}

// InitMode selects the initial spin configuration.
type InitMode int

const (
	// Reinitialize aligns every spin with +z.
	Reinitialize InitMode = iota
	// Randomize draws every spin direction at random.
	Randomize
)

// ParseInitMode parses the command-line spelling of an init mode.
func ParseInitMode(s string) (InitMode, error) {
	switch s {
	case "REINITIALIZE":
		return Reinitialize, nil
	case "RANDOMIZE":
		return Randomize, nil
	}
	return 0, fmt.Errorf("unknown init mode %q", s)
}

func (m InitMode) String() string {
	if m == Randomize {
		return "RANDOMIZE"
	}
	return "REINITIALIZE"
}

// Config holds the structural constants of a run. These are fixed for the
// whole sweep; only Parameters vary between tasks.
type Config struct {
	Width, Height, Depth int

	// Molecule span along x. Sites with x < MolPosL form the left
	// ferromagnet, x > MolPosR the right one.
	MolPosL, MolPosR int

	// The left ferromagnet occupies rows TopL..BottomL in y; the right
	// one occupies layers FrontR..BackR in z. The molecule is trimmed by
	// both.
	TopL, BottomL int
	FrontR, BackR int

	// TEq metropolis steps equilibrate the lattice before SimCount
	// recorded steps; observables are sampled every Freq steps.
	TEq, SimCount, Freq uint64

	Model FlipModel
	Init  InitMode
	Seed  uint64
}

// Validate checks the lattice geometry. A violation is fatal to the run.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0 || c.Depth <= 0:
		return fmt.Errorf("lattice dimensions %dx%dx%d must be positive", c.Width, c.Height, c.Depth)
	case c.MolPosL < 0 || c.MolPosR < c.MolPosL || c.MolPosR >= c.Width:
		return fmt.Errorf("molecule span molPosL=%d molPosR=%d outside width %d", c.MolPosL, c.MolPosR, c.Width)
	case c.TopL < 0 || c.BottomL < c.TopL || c.BottomL >= c.Height:
		return fmt.Errorf("left trim topL=%d bottomL=%d outside height %d", c.TopL, c.BottomL, c.Height)
	case c.FrontR < 0 || c.BackR < c.FrontR || c.BackR >= c.Depth:
		return fmt.Errorf("right trim frontR=%d backR=%d outside depth %d", c.FrontR, c.BackR, c.Depth)
	}
	return nil
}

// Parameters is the per-task physical parameter record. Every field is
// addressable by its sweep axis name through the binding table.
type Parameters struct {
	// KT is the thermal energy; B the external field.
	KT float64
	B  Vector

	// Spin and flux magnitudes per region.
	SL, SR, Sm float64
	FL, FR, Fm float64

	// Heisenberg exchange couplings: within each region, across each
	// junction, and directly between the ferromagnets.
	JL, JmL, Jm, JmR, JR, JLR float64

	// Biquadratic couplings, same layout.
	BqL, BqmL, Bqm, BqmR, BqR, BqLR float64

	// Anisotropy per region.
	AL, AR, Am Vector

	// Dzyaloshinskii-Moriya vectors per region.
	DL, DR, Dm Vector
}

// ParameterNames lists the sweep axis names bound to Parameters fields, in
// the canonical order they appear in result records.
var ParameterNames = []string{
	"kT",
	"B_x", "B_y", "B_z",
	"SL", "SR", "Sm",
	"FL", "FR", "Fm",
	"JL", "JmL", "Jm", "JmR", "JR", "JLR",
	"bL", "bmL", "bm", "bmR", "bR", "bLR",
	"AL_x", "AL_y", "AL_z",
	"AR_x", "AR_y", "AR_z",
	"Am_x", "Am_y", "Am_z",
	"DL_x", "DL_y", "DL_z",
	"DR_x", "DR_y", "DR_z",
	"Dm_x", "Dm_y", "Dm_z",
}

// bindings maps axis names onto the record's fields. Built per call so the
// pointers always target the receiver.
func (p *Parameters) bindings() map[string]*float64 {
	return map[string]*float64{
		"kT": &p.KT,
		"B_x": &p.B.X, "B_y": &p.B.Y, "B_z": &p.B.Z,
		"SL": &p.SL, "SR": &p.SR, "Sm": &p.Sm,
		"FL": &p.FL, "FR": &p.FR, "Fm": &p.Fm,
		"JL": &p.JL, "JmL": &p.JmL, "Jm": &p.Jm, "JmR": &p.JmR, "JR": &p.JR, "JLR": &p.JLR,
		"bL": &p.BqL, "bmL": &p.BqmL, "bm": &p.Bqm, "bmR": &p.BqmR, "bR": &p.BqR, "bLR": &p.BqLR,
		"AL_x": &p.AL.X, "AL_y": &p.AL.Y, "AL_z": &p.AL.Z,
		"AR_x": &p.AR.X, "AR_y": &p.AR.Y, "AR_z": &p.AR.Z,
		"Am_x": &p.Am.X, "Am_y": &p.Am.Y, "Am_z": &p.Am.Z,
		"DL_x": &p.DL.X, "DL_y": &p.DL.Y, "DL_z": &p.DL.Z,
		"DR_x": &p.DR.X, "DR_y": &p.DR.Y, "DR_z": &p.DR.Z,
		"Dm_x": &p.Dm.X, "Dm_y": &p.Dm.Y, "Dm_z": &p.Dm.Z,
	}
}

// Set assigns the named parameter, reporting whether the name is bound.
// Unbound names are structural constants and are ignored by the caller.
func (p *Parameters) Set(name string, v float64) bool {
	f, ok := p.bindings()[name]
	if ok {
		*f = v
	}
	return ok
}

// NamedValue is one named scalar in a result record.
type NamedValue struct {
	Name  string
	Value float64
}

// List returns the record in canonical order.
func (p Parameters) List() []NamedValue {
	b := p.bindings()
	out := make([]NamedValue, len(ParameterNames))
	for i, name := range ParameterNames {
		out[i] = NamedValue{Name: name, Value: *b[name]}
	}
	return out
}

// Job is one fully-resolved simulation task. It is built once per sweep
// combination, passed by value, and never mutated afterwards.
type Job struct {
	Config Config
	Params Parameters
	Spins  []params.SpinOverride
}

// RequiredConstants are the structural axes every parameter file must
// define.
var RequiredConstants = []string{
	"width", "height", "depth",
	"molPosL", "molPosR",
	"topL", "bottomL", "frontR", "backR",
	"t_eq", "simCount", "freq",
}

// BaseJob builds the sweep-invariant part of a Job from a parsed spec.
// The parameter record is left zeroed; BuildJob fills it per combination.
func BaseJob(spec *params.Spec, model FlipModel, init InitMode, seed uint64) (Job, error) {
	if err := spec.Require(RequiredConstants...); err != nil {
		return Job{}, err
	}
	cfg := Config{
		Width:    int(spec.First("width")),
		Height:   int(spec.First("height")),
		Depth:    int(spec.First("depth")),
		MolPosL:  int(spec.First("molPosL")),
		MolPosR:  int(spec.First("molPosR")),
		TopL:     int(spec.First("topL")),
		BottomL:  int(spec.First("bottomL")),
		FrontR:   int(spec.First("frontR")),
		BackR:    int(spec.First("backR")),
		TEq:      uint64(spec.First("t_eq")),
		SimCount: uint64(spec.First("simCount")),
		Freq:     uint64(spec.First("freq")),
		Model:    model,
		Init:     init,
		Seed:     seed,
	}
	return Job{Config: cfg, Spins: spec.Spins}, nil
}

// BuildJob overlays one swept-value assignment onto the base job. Names
// without a binding are structural constants already carried by Config.
// The same assignment always yields an identical Job.
func BuildJob(base Job, assignment map[string]float64) Job {
	job := base
	for name, v := range assignment {
		job.Params.Set(name, v)
	}
	return job
}
