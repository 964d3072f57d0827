// Package msd implements a metropolis Monte-Carlo simulation of a
// molecular spintronic device: two ferromagnetic leads bridged by a
// molecule, on a finite 3D lattice.
package msd

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"github.com/msd-research/metropolis/internal/monitoring"
)

// Region classifies a lattice site.
type Region int

const (
	RegionLeft Region = iota
	RegionMol
	RegionRight
)

func (r Region) String() string {
	switch r {
	case RegionLeft:
		return "left"
	case RegionMol:
		return "molecule"
	}
	return "right"
}

type site struct {
	x, y, z   int
	region    Region
	spin      Vector
	flux      Vector
	neighbors []int
}

// MSD is the lattice state of one simulation task. It is built fresh per
// Job and holds its own RNG, so concurrent tasks share nothing.
type MSD struct {
	cfg   Config
	par   Parameters
	sites []site
	index []int // (x,y,z) -> site index, -1 where no site exists
	rng   *rand.Rand
}

// New builds the lattice for a job. Geometry violations are returned as
// errors; the driver treats them as fatal.
func New(job Job) (*MSD, error) {
	if err := job.Config.Validate(); err != nil {
		return nil, err
	}
	c := job.Config

	m := &MSD{
		cfg:   c,
		par:   job.Params,
		index: make([]int, c.Width*c.Height*c.Depth),
		rng:   rand.New(rand.NewSource(int64(c.Seed))),
	}
	for i := range m.index {
		m.index[i] = -1
	}

	for z := 0; z < c.Depth; z++ {
		for y := 0; y < c.Height; y++ {
			for x := 0; x < c.Width; x++ {
				region, ok := c.classify(x, y, z)
				if !ok {
					continue
				}
				m.index[m.flat(x, y, z)] = len(m.sites)
				m.sites = append(m.sites, site{x: x, y: y, z: z, region: region})
			}
		}
	}

	m.linkNeighbors()
	m.initSpins(c.Init)
	m.applyOverrides(job)
	return m, nil
}

// classify decides whether lattice point (x,y,z) carries a site and which
// region it belongs to.
func (c Config) classify(x, y, z int) (Region, bool) {
	switch {
	case x < c.MolPosL:
		return RegionLeft, y >= c.TopL && y <= c.BottomL
	case x > c.MolPosR:
		return RegionRight, z >= c.FrontR && z <= c.BackR
	default:
		return RegionMol, y >= c.TopL && y <= c.BottomL && z >= c.FrontR && z <= c.BackR
	}
}

func (m *MSD) flat(x, y, z int) int {
	return (z*m.cfg.Height+y)*m.cfg.Width + x
}

func (m *MSD) at(x, y, z int) int {
	if x < 0 || x >= m.cfg.Width || y < 0 || y >= m.cfg.Height || z < 0 || z >= m.cfg.Depth {
		return -1
	}
	return m.index[m.flat(x, y, z)]
}

func (m *MSD) linkNeighbors() {
	deltas := [6][3]int{
		{1, 0, 0}, {-1, 0, 0},
		{0, 1, 0}, {0, -1, 0},
		{0, 0, 1}, {0, 0, -1},
	}
	for i := range m.sites {
		s := &m.sites[i]
		for _, d := range deltas {
			if j := m.at(s.x+d[0], s.y+d[1], s.z+d[2]); j >= 0 {
				s.neighbors = append(s.neighbors, j)
			}
		}
	}
}

func (m *MSD) initSpins(init InitMode) {
	for i := range m.sites {
		s := &m.sites[i]
		mag := m.spinMagnitude(s.region)
		if init == Randomize {
			s.spin = m.randomDirection().Scale(mag)
		} else {
			s.spin = Vector{Z: mag}
		}
		if m.cfg.Model == UpDown {
			s.spin = m.quantize(s.spin, mag)
		}
	}
}

// applyOverrides rescales the initial spin magnitude at each overridden
// site. Sites outside the lattice are warned about and skipped.
func (m *MSD) applyOverrides(job Job) {
	for _, ov := range job.Spins {
		idx := m.at(int(ov.X), int(ov.Y), int(ov.Z))
		if idx < 0 {
			monitoring.Logf("spin override [%d %d %d] targets no lattice site; ignored", ov.X, ov.Y, ov.Z)
			continue
		}
		s := &m.sites[idx]
		s.spin = s.spin.Normalized().Scale(ov.Norm)
	}
}

func (m *MSD) spinMagnitude(r Region) float64 {
	switch r {
	case RegionLeft:
		return m.par.SL
	case RegionMol:
		return m.par.Sm
	}
	return m.par.SR
}

func (m *MSD) fluxMagnitude(r Region) float64 {
	switch r {
	case RegionLeft:
		return m.par.FL
	case RegionMol:
		return m.par.Fm
	}
	return m.par.FR
}

func (m *MSD) anisotropy(r Region) Vector {
	switch r {
	case RegionLeft:
		return m.par.AL
	case RegionMol:
		return m.par.Am
	}
	return m.par.AR
}

// coupling returns the exchange, biquadratic, and DMI coupling for a bond
// between the two regions.
func (m *MSD) coupling(a, b Region) (j, bq float64, d Vector) {
	if a > b {
		a, b = b, a
	}
	switch {
	case a == RegionLeft && b == RegionLeft:
		return m.par.JL, m.par.BqL, m.par.DL
	case a == RegionRight && b == RegionRight:
		return m.par.JR, m.par.BqR, m.par.DR
	case a == RegionMol && b == RegionMol:
		return m.par.Jm, m.par.Bqm, m.par.Dm
	case a == RegionLeft && b == RegionMol:
		return m.par.JmL, m.par.BqmL, m.par.Dm
	case a == RegionMol && b == RegionRight:
		return m.par.JmR, m.par.BqmR, m.par.Dm
	default: // left-right contact
		return m.par.JLR, m.par.BqLR, Vector{}
	}
}

// bondEnergy is the energy of one bond counted once.
func (m *MSD) bondEnergy(a, b *site) float64 {
	j, bq, d := m.coupling(a.region, b.region)
	dot := a.spin.Dot(b.spin)
	return -j*dot - bq*dot*dot - d.Dot(a.spin.Cross(b.spin))
}

// siteEnergy is the field and anisotropy energy of one site. The external
// field couples to the local magnetization, spin plus flux.
func (m *MSD) siteEnergy(s *site) float64 {
	mag := s.spin.Add(s.flux)
	a := m.anisotropy(s.region)
	return -m.par.B.Dot(mag) -
		a.X*s.spin.X*s.spin.X - a.Y*s.spin.Y*s.spin.Y - a.Z*s.spin.Z*s.spin.Z
}

// localEnergy is the energy change-relevant neighborhood of site i.
func (m *MSD) localEnergy(i int) float64 {
	s := &m.sites[i]
	e := m.siteEnergy(s)
	for _, j := range s.neighbors {
		e += m.bondEnergy(s, &m.sites[j])
	}
	return e
}

func (m *MSD) randomDirection() Vector {
	z := 2*m.rng.Float64() - 1
	phi := 2 * math.Pi * m.rng.Float64()
	r := math.Sqrt(1 - z*z)
	return Vector{r * math.Cos(phi), r * math.Sin(phi), z}
}

// quantize snaps a spin to ±z for the up-down model.
func (m *MSD) quantize(v Vector, mag float64) Vector {
	if v.Z < 0 {
		return Vector{Z: -mag}
	}
	return Vector{Z: mag}
}

// step performs one metropolis trial move.
func (m *MSD) step() {
	i := m.rng.Intn(len(m.sites))
	s := &m.sites[i]

	oldSpin, oldFlux := s.spin, s.flux
	before := m.localEnergy(i)

	mag := s.spin.Norm()
	switch m.cfg.Model {
	case UpDown:
		s.spin = Vector{Z: -s.spin.Z}
	default:
		s.spin = m.randomDirection().Scale(mag)
		if f := m.fluxMagnitude(s.region); f > 0 {
			s.flux = m.randomDirection().Scale(f * m.rng.Float64())
		}
	}

	dE := m.localEnergy(i) - before
	if dE <= 0 {
		return
	}
	if m.par.KT > 0 && m.rng.Float64() < math.Exp(-dE/m.par.KT) {
		return
	}
	s.spin, s.flux = oldSpin, oldFlux
}

// Atom is one site of the final lattice snapshot.
type Atom struct {
	X, Y, Z int
	Region  Region
	Spin    Vector
	Flux    Vector
	Mag     Vector
}

// Result carries every observable of one finished task plus the job that
// produced it. Magnetization observables are per-site means; energy
// observables are totals over the sampled series.
type Result struct {
	Job     Job
	Samples int

	// Mean local magnetization (spin + flux), per region and total.
	M, ML, MR, Mm Vector
	// Mean spin-only magnetization.
	MS, MSL, MSR, MSm Vector
	// Mean flux-only magnetization.
	MF, MFL, MFR, MFm Vector
	// Mean magnitude of the magnetization, used for susceptibility.
	MNorm, MLNorm, MRNorm, MmNorm float64

	// Mean energies: total, per region, and per junction.
	U, UL, UR, Um, UmL, UmR, ULR float64
	// Specific heats from energy fluctuations.
	C, CL, CR, Cm, CmL, CmR, CLR float64
	// Magnetic susceptibilities from magnetization fluctuations.
	X, XL, XR, Xm float64

	Atoms []Atom
}

// Observables returns every scalar observable in canonical record order.
func (r Result) Observables() []NamedValue {
	vec := func(name string, v Vector) []NamedValue {
		return []NamedValue{
			{name + "_x", v.X}, {name + "_y", v.Y}, {name + "_z", v.Z},
		}
	}
	var out []NamedValue
	out = append(out, vec("M", r.M)...)
	out = append(out, NamedValue{"M_norm", r.MNorm})
	out = append(out, vec("ML", r.ML)...)
	out = append(out, NamedValue{"ML_norm", r.MLNorm})
	out = append(out, vec("MR", r.MR)...)
	out = append(out, NamedValue{"MR_norm", r.MRNorm})
	out = append(out, vec("Mm", r.Mm)...)
	out = append(out, NamedValue{"Mm_norm", r.MmNorm})
	out = append(out, vec("MS", r.MS)...)
	out = append(out, vec("MSL", r.MSL)...)
	out = append(out, vec("MSR", r.MSR)...)
	out = append(out, vec("MSm", r.MSm)...)
	out = append(out, vec("MF", r.MF)...)
	out = append(out, vec("MFL", r.MFL)...)
	out = append(out, vec("MFR", r.MFR)...)
	out = append(out, vec("MFm", r.MFm)...)
	out = append(out,
		NamedValue{"U", r.U}, NamedValue{"UL", r.UL}, NamedValue{"UR", r.UR},
		NamedValue{"Um", r.Um}, NamedValue{"UmL", r.UmL}, NamedValue{"UmR", r.UmR},
		NamedValue{"ULR", r.ULR},
		NamedValue{"c", r.C}, NamedValue{"cL", r.CL}, NamedValue{"cR", r.CR},
		NamedValue{"cm", r.Cm}, NamedValue{"cmL", r.CmL}, NamedValue{"cmR", r.CmR},
		NamedValue{"cLR", r.CLR},
		NamedValue{"x", r.X}, NamedValue{"xL", r.XL}, NamedValue{"xR", r.XR},
		NamedValue{"xm", r.Xm},
	)
	return out
}

// Run executes one task start to finish: equilibrate, simulate, sample,
// reduce. It is pure with respect to the Job: the same job always yields
// the same result.
func Run(job Job) (Result, error) {
	m, err := New(job)
	if err != nil {
		return Result{}, err
	}

	for i := uint64(0); i < m.cfg.TEq; i++ {
		m.step()
	}

	rec := newRecorder()
	for i := uint64(0); i < m.cfg.SimCount; i++ {
		m.step()
		if m.cfg.Freq > 0 && (i+1)%m.cfg.Freq == 0 {
			rec.sample(m)
		}
	}
	if rec.n == 0 {
		// Freq of zero, or shorter than one period: sample the final state.
		rec.sample(m)
	}
	return rec.result(m, job), nil
}

// recorder accumulates the sampled series a Result is reduced from.
type recorder struct {
	n int

	m, mL, mR, mm     Vector
	ms, msL, msR, msm Vector
	mf, mfL, mfR, mfm Vector

	u, uL, uR, um, umL, umR, uLR []float64
	mMag, mLMag, mRMag, mmMag    []float64
}

func newRecorder() *recorder {
	return &recorder{}
}

// sample captures one observation of the lattice.
func (rec *recorder) sample(m *MSD) {
	var counts [3]int
	var spinSum, fluxSum, magSum [3]Vector
	var e, eL, eR, em, emL, emR, eLR float64

	for i := range m.sites {
		s := &m.sites[i]
		r := s.region
		counts[r]++
		spinSum[r] = spinSum[r].Add(s.spin)
		fluxSum[r] = fluxSum[r].Add(s.flux)
		magSum[r] = magSum[r].Add(s.spin.Add(s.flux))

		se := m.siteEnergy(s)
		e += se
		switch r {
		case RegionLeft:
			eL += se
		case RegionMol:
			em += se
		default:
			eR += se
		}

		// Bonds counted once, from the lower-indexed endpoint.
		for _, j := range s.neighbors {
			if j <= i {
				continue
			}
			o := &m.sites[j]
			be := m.bondEnergy(s, o)
			e += be
			switch {
			case r == RegionLeft && o.region == RegionLeft:
				eL += be
			case r == RegionRight && o.region == RegionRight:
				eR += be
			case r == RegionMol && o.region == RegionMol:
				em += be
			case (r == RegionLeft && o.region == RegionMol) || (r == RegionMol && o.region == RegionLeft):
				emL += be
			case (r == RegionMol && o.region == RegionRight) || (r == RegionRight && o.region == RegionMol):
				emR += be
			default:
				eLR += be
			}
		}
	}

	total := counts[0] + counts[1] + counts[2]
	mean := func(sum Vector, n int) Vector {
		if n == 0 {
			return Vector{}
		}
		return sum.Scale(1 / float64(n))
	}
	allSpin := spinSum[0].Add(spinSum[1]).Add(spinSum[2])
	allFlux := fluxSum[0].Add(fluxSum[1]).Add(fluxSum[2])
	allMag := magSum[0].Add(magSum[1]).Add(magSum[2])

	mTot := mean(allMag, total)
	mLv := mean(magSum[RegionLeft], counts[RegionLeft])
	mRv := mean(magSum[RegionRight], counts[RegionRight])
	mmv := mean(magSum[RegionMol], counts[RegionMol])

	rec.n++
	rec.m = rec.m.Add(mTot)
	rec.mL = rec.mL.Add(mLv)
	rec.mR = rec.mR.Add(mRv)
	rec.mm = rec.mm.Add(mmv)
	rec.ms = rec.ms.Add(mean(allSpin, total))
	rec.msL = rec.msL.Add(mean(spinSum[RegionLeft], counts[RegionLeft]))
	rec.msR = rec.msR.Add(mean(spinSum[RegionRight], counts[RegionRight]))
	rec.msm = rec.msm.Add(mean(spinSum[RegionMol], counts[RegionMol]))
	rec.mf = rec.mf.Add(mean(allFlux, total))
	rec.mfL = rec.mfL.Add(mean(fluxSum[RegionLeft], counts[RegionLeft]))
	rec.mfR = rec.mfR.Add(mean(fluxSum[RegionRight], counts[RegionRight]))
	rec.mfm = rec.mfm.Add(mean(fluxSum[RegionMol], counts[RegionMol]))

	rec.u = append(rec.u, e)
	rec.uL = append(rec.uL, eL)
	rec.uR = append(rec.uR, eR)
	rec.um = append(rec.um, em)
	rec.umL = append(rec.umL, emL)
	rec.umR = append(rec.umR, emR)
	rec.uLR = append(rec.uLR, eLR)

	rec.mMag = append(rec.mMag, mTot.Norm())
	rec.mLMag = append(rec.mLMag, mLv.Norm())
	rec.mRMag = append(rec.mRMag, mRv.Norm())
	rec.mmMag = append(rec.mmMag, mmv.Norm())
}

// result reduces the sampled series into a Result.
func (rec *recorder) result(m *MSD, job Job) Result {
	inv := 1 / float64(rec.n)
	kT := m.par.KT

	// Fluctuation observables need at least two samples and finite
	// temperature; otherwise they are reported as zero.
	heat := func(series []float64) float64 {
		if len(series) < 2 || kT <= 0 {
			return 0
		}
		return stat.Variance(series, nil) / (kT * kT)
	}
	susceptibility := func(series []float64) float64 {
		if len(series) < 2 || kT <= 0 {
			return 0
		}
		return stat.Variance(series, nil) / kT
	}

	res := Result{
		Job:     job,
		Samples: rec.n,

		M:  rec.m.Scale(inv),
		ML: rec.mL.Scale(inv),
		MR: rec.mR.Scale(inv),
		Mm: rec.mm.Scale(inv),

		MS:  rec.ms.Scale(inv),
		MSL: rec.msL.Scale(inv),
		MSR: rec.msR.Scale(inv),
		MSm: rec.msm.Scale(inv),

		MF:  rec.mf.Scale(inv),
		MFL: rec.mfL.Scale(inv),
		MFR: rec.mfR.Scale(inv),
		MFm: rec.mfm.Scale(inv),

		MNorm:  stat.Mean(rec.mMag, nil),
		MLNorm: stat.Mean(rec.mLMag, nil),
		MRNorm: stat.Mean(rec.mRMag, nil),
		MmNorm: stat.Mean(rec.mmMag, nil),

		U:   stat.Mean(rec.u, nil),
		UL:  stat.Mean(rec.uL, nil),
		UR:  stat.Mean(rec.uR, nil),
		Um:  stat.Mean(rec.um, nil),
		UmL: stat.Mean(rec.umL, nil),
		UmR: stat.Mean(rec.umR, nil),
		ULR: stat.Mean(rec.uLR, nil),

		C:   heat(rec.u),
		CL:  heat(rec.uL),
		CR:  heat(rec.uR),
		Cm:  heat(rec.um),
		CmL: heat(rec.umL),
		CmR: heat(rec.umR),
		CLR: heat(rec.uLR),

		X:  susceptibility(rec.mMag),
		XL: susceptibility(rec.mLMag),
		XR: susceptibility(rec.mRMag),
		Xm: susceptibility(rec.mmMag),
	}

	res.Atoms = make([]Atom, len(m.sites))
	for i := range m.sites {
		s := &m.sites[i]
		res.Atoms[i] = Atom{
			X: s.x, Y: s.y, Z: s.z,
			Region: s.region,
			Spin:   s.spin,
			Flux:   s.flux,
			Mag:    s.spin.Add(s.flux),
		}
	}
	return res
}
