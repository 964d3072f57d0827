package xmlout

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/msd-research/metropolis/internal/fsutil"
	"github.com/msd-research/metropolis/internal/msd"
	"github.com/msd-research/metropolis/internal/params"
	"github.com/msd-research/metropolis/internal/timeutil"
)

func testGen() Gen {
	return Gen{
		Program:   "metropolis",
		Version:   "test",
		RunID:     "run-1",
		Model:     "CONTINUOUS_SPIN_MODEL",
		InitMode:  "REINITIALIZE",
		Threads:   2,
		ParamFile: "params.txt",
	}
}

func testResult(kT float64) msd.Result {
	var p msd.Parameters
	p.Set("kT", kT)
	return msd.Result{
		Job:     msd.Job{Params: p},
		Samples: 1,
		M:       msd.Vector{Z: 0.9},
		U:       -12.5,
		Atoms: []msd.Atom{
			{X: 0, Y: 0, Z: 0, Spin: msd.Vector{Z: 1}, Mag: msd.Vector{Z: 1}},
		},
	}
}

// parseSnapshot re-reads whatever is on disk and requires it to be a
// complete well-formed document.
func parseSnapshot(t *testing.T, fs fsutil.FileSystem, path string) *Document {
	t.Helper()
	doc, err := ReadDocument(fs, path)
	require.NoError(t, err, "on-disk snapshot must always parse")
	return doc
}

func TestSinkStartWritesParseableHeader(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	sink := NewSink("results.xml", 4, fs, timeutil.NewMockClock(time.Unix(1000, 0)), nil)

	spec, err := params.Parse(strings.NewReader("kT { 1 2 }\nB_z sweep { 0 1 }\nJL sweep { 5 6 }\n[1 0 0] = 0.5"))
	require.NoError(t, err)

	require.NoError(t, sink.Start(testGen(), GlobalFromSpec(spec)))

	doc := parseSnapshot(t, fs, "results.xml")
	assert.Equal(t, "metropolis", doc.Gen.Program)
	assert.Equal(t, "run-1", doc.Gen.RunID)
	assert.Empty(t, doc.Data)
	assert.Len(t, doc.Global.Spins, 1)

	// Axes carry their full enumerations; shared labels are explicit,
	// singleton labels are elided.
	require.Len(t, doc.Global.Axes, 3)
	byName := map[string]Axis{}
	for _, a := range doc.Global.Axes {
		byName[a.Name] = a
	}
	assert.Equal(t, "", byName["kT"].Label)
	assert.Equal(t, "sweep", byName["B_z"].Label)
	assert.Equal(t, []float64{5, 6}, byName["JL"].Values)
}

func TestSinkRecordAppendsAndRewrites(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	var progress bytes.Buffer
	sink := NewSink("results.xml", 4, fs, clock, &progress)

	require.NoError(t, sink.Start(testGen(), Global{}))

	sink.Record(testResult(1))
	doc := parseSnapshot(t, fs, "results.xml")
	require.Len(t, doc.Data, 1)

	clock.Advance(3723 * time.Second)
	sink.Record(testResult(2))
	doc = parseSnapshot(t, fs, "results.xml")
	require.Len(t, doc.Data, 2)

	// Header survives every rewrite.
	assert.Equal(t, "run-1", doc.Gen.RunID)

	// Records carry the resolved parameters and observables.
	rec := doc.Data[1]
	require.NotEmpty(t, rec.Params)
	assert.Equal(t, "kT", rec.Params[0].Name)
	assert.Equal(t, 2.0, rec.Params[0].Value)
	require.Len(t, rec.Snapshot, 1)
	assert.Equal(t, 1.0, rec.Snapshot[0].MZ)

	lines := strings.Split(strings.TrimSpace(progress.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "25% [0 days, 00:00:00]", lines[0])
	assert.Equal(t, "50% [0 days, 01:02:03]", lines[1])
}

func TestSinkWriteFailureIsNonFatal(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	sink := NewSink("results.xml", 3, fs, timeutil.NewMockClock(time.Unix(0, 0)), nil)
	require.NoError(t, sink.Start(testGen(), Global{}))

	fs.SetWriteError(errors.New("disk full"))
	sink.Record(testResult(1)) // must not panic or abort

	// Disk still holds the last good snapshot.
	doc := parseSnapshot(t, fs, "results.xml")
	assert.Empty(t, doc.Data)

	// The failed record is retried with the next flush.
	fs.SetWriteError(nil)
	sink.Record(testResult(2))
	doc = parseSnapshot(t, fs, "results.xml")
	require.Len(t, doc.Data, 2)
	assert.Equal(t, 2, sink.Recorded())

	require.NoError(t, sink.Close())
}

func TestSinkStartFailsOnUnwritablePath(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	fs.SetWriteError(errors.New("permission denied"))
	sink := NewSink("results.xml", 1, fs, timeutil.NewMockClock(time.Unix(0, 0)), nil)

	err := sink.Start(testGen(), Global{})
	require.Error(t, err)
	assert.False(t, fs.Exists("results.xml"))
}

func TestDocumentRoundTrip(t *testing.T) {
	doc := Document{
		Gen:    testGen(),
		Global: Global{Constants: []Var{{Name: "width", Value: 10}}},
		Data:   []Record{recordFromResult(testResult(1.5), 123)},
	}
	data, err := xml.MarshalIndent(&doc, "", "  ")
	require.NoError(t, err)

	var back Document
	require.NoError(t, xml.Unmarshal(data, &back))
	assert.Equal(t, doc.Gen, back.Gen)
	assert.Equal(t, doc.Global.Constants, back.Global.Constants)
	require.Len(t, back.Data, 1)
	assert.Equal(t, int64(123), back.Data[0].Timestamp)
}
