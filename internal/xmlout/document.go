// Package xmlout persists sweep results as a single XML document that is
// rewritten in full after every record, so the file on disk is always a
// complete snapshot a crash cannot corrupt.
package xmlout

import (
	"encoding/xml"
	"fmt"

	"github.com/msd-research/metropolis/internal/fsutil"
	"github.com/msd-research/metropolis/internal/msd"
	"github.com/msd-research/metropolis/internal/params"
)

// Document is the full results file: one header describing the run and the
// swept space, then one Record per completed task.
type Document struct {
	XMLName xml.Name `xml:"msd"`
	Gen     Gen      `xml:"gen"`
	Global  Global   `xml:"global"`
	Data    []Record `xml:"data"`
}

// Gen identifies the run that generated the document.
type Gen struct {
	Program   string `xml:"prgm"`
	Version   string `xml:"version"`
	RunID     string `xml:"run"`
	Timestamp int64  `xml:"timestamp"`
	Model     string `xml:"model"`
	InitMode  string `xml:"init"`
	Threads   int    `xml:"threads"`
	ParamFile string `xml:"param_file"`
}

// Global records the sweep definition: structural constants, the enumerated
// values of every axis, and any spin overrides.
type Global struct {
	Constants []Var  `xml:"var"`
	Axes      []Axis `xml:"ind"`
	Spins     []Spin `xml:"spin"`
}

// Var is one named scalar.
type Var struct {
	Name  string  `xml:"name,attr"`
	Value float64 `xml:"value,attr"`
}

// Axis is one swept axis with its full value list. Label is omitted when
// the axis carries its own singleton label.
type Axis struct {
	Name   string    `xml:"name,attr"`
	Label  string    `xml:"label,attr,omitempty"`
	Values []float64 `xml:"val"`
}

// Spin is one site spin override.
type Spin struct {
	X    uint    `xml:"x,attr"`
	Y    uint    `xml:"y,attr"`
	Z    uint    `xml:"z,attr"`
	Norm float64 `xml:"norm,attr"`
}

// Record is the outcome of one task: the resolved parameters, every
// observable, and the final lattice snapshot.
type Record struct {
	Timestamp int64 `xml:"timestamp,attr"`
	Params    []Var `xml:"param"`
	Results   []Var `xml:"result"`
	Snapshot  []Loc `xml:"snapshot>loc"`
}

// Loc is one lattice site of a snapshot.
type Loc struct {
	X  int     `xml:"x,attr"`
	Y  int     `xml:"y,attr"`
	Z  int     `xml:"z,attr"`
	SX float64 `xml:"sx,attr"`
	SY float64 `xml:"sy,attr"`
	SZ float64 `xml:"sz,attr"`
	FX float64 `xml:"fx,attr"`
	FY float64 `xml:"fy,attr"`
	FZ float64 `xml:"fz,attr"`
	MX float64 `xml:"mx,attr"`
	MY float64 `xml:"my,attr"`
	MZ float64 `xml:"mz,attr"`
}

// GlobalFromSpec builds the header's sweep definition from a parsed
// parameter file. Structural constants are listed by name; every axis gets
// its full value enumeration.
func GlobalFromSpec(spec *params.Spec) Global {
	var g Global
	for _, name := range msd.RequiredConstants {
		g.Constants = append(g.Constants, Var{Name: name, Value: spec.First(name)})
	}
	for _, label := range spec.LabelOrder {
		for _, axis := range spec.LabelAxes[label] {
			a := Axis{Name: axis, Values: spec.Axes[axis]}
			if label != axis {
				a.Label = label
			}
			g.Axes = append(g.Axes, a)
		}
	}
	for _, ov := range spec.Spins {
		g.Spins = append(g.Spins, Spin{X: ov.X, Y: ov.Y, Z: ov.Z, Norm: ov.Norm})
	}
	return g
}

// recordFromResult converts one finished task into a Record.
func recordFromResult(res msd.Result, now int64) Record {
	rec := Record{Timestamp: now}
	for _, nv := range res.Job.Params.List() {
		rec.Params = append(rec.Params, Var{Name: nv.Name, Value: nv.Value})
	}
	for _, nv := range res.Observables() {
		rec.Results = append(rec.Results, Var{Name: nv.Name, Value: nv.Value})
	}
	for _, a := range res.Atoms {
		rec.Snapshot = append(rec.Snapshot, Loc{
			X: a.X, Y: a.Y, Z: a.Z,
			SX: a.Spin.X, SY: a.Spin.Y, SZ: a.Spin.Z,
			FX: a.Flux.X, FY: a.Flux.Y, FZ: a.Flux.Z,
			MX: a.Mag.X, MY: a.Mag.Y, MZ: a.Mag.Z,
		})
	}
	return rec
}

// ReadDocument loads a results file.
func ReadDocument(fs fsutil.FileSystem, path string) (*Document, error) {
	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results file: %w", err)
	}
	var doc Document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse results file: %w", err)
	}
	return &doc, nil
}
