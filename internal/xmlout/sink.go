package xmlout

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/msd-research/metropolis/internal/fsutil"
	"github.com/msd-research/metropolis/internal/monitoring"
	"github.com/msd-research/metropolis/internal/msd"
	"github.com/msd-research/metropolis/internal/timeutil"
)

// Sink accumulates results in memory and persists the whole document after
// every record. A failed write is warned about and retried on the next
// record; the in-memory document is never lost to an I/O error.
//
// A Sink is owned by the dispatch loop and is not safe for concurrent use.
type Sink struct {
	doc      Document
	path     string
	fs       fsutil.FileSystem
	clock    timeutil.Clock
	progress io.Writer

	started  time.Time
	total    int
	recorded int
}

// NewSink creates a sink writing to path. total is the number of records
// the sweep will produce, used for the progress percentage.
func NewSink(path string, total int, fs fsutil.FileSystem, clock timeutil.Clock, progress io.Writer) *Sink {
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Sink{
		path:     path,
		fs:       fs,
		clock:    clock,
		progress: progress,
		total:    total,
	}
}

// Start sets the document header and persists the empty document. An error
// here means the output path is unusable and the run must not start.
func (s *Sink) Start(gen Gen, global Global) error {
	s.doc.Gen = gen
	s.doc.Global = global
	s.started = s.clock.Now()
	if err := s.flush(); err != nil {
		return fmt.Errorf("write output header: %w", err)
	}
	return nil
}

// Record appends one finished task and rewrites the snapshot on disk. Write
// failures do not stop the sweep.
func (s *Sink) Record(res msd.Result) {
	s.doc.Data = append(s.doc.Data, recordFromResult(res, s.clock.Now().Unix()))
	s.recorded++

	if err := s.flush(); err != nil {
		monitoring.Logf("failed to write %s (will retry on next result): %v", s.path, err)
	}

	pct := float64(s.recorded) * 100 / float64(s.total)
	fmt.Fprintf(s.progress, "%g%% [%s]\n", pct, timeutil.FormatElapsed(s.clock.Since(s.started)))
}

// Recorded returns the number of records appended so far.
func (s *Sink) Recorded() int {
	return s.recorded
}

// Close performs a final flush so a write failure on the last record is not
// silently left on disk as a stale snapshot.
func (s *Sink) Close() error {
	return s.flush()
}

func (s *Sink) flush() error {
	body, err := xml.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results document: %w", err)
	}
	data := make([]byte, 0, len(xml.Header)+len(body)+1)
	data = append(data, xml.Header...)
	data = append(data, body...)
	data = append(data, '\n')
	return s.fs.WriteFileAtomic(s.path, data, 0644)
}
