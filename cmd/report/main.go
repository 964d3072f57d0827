// Command report renders charts from a finished sweep results document:
// an interactive HTML page (ECharts) and/or a static PNG.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/msd-research/metropolis/internal/fsutil"
	"github.com/msd-research/metropolis/internal/xmlout"
)

func main() {
	var (
		in       = flag.String("in", "", "results XML file (required)")
		xName    = flag.String("x", "kT", "axis to plot on x")
		yName    = flag.String("y", "U", "observable to plot on y")
		seriesBy = flag.String("series", "", "optional axis to split series by")
		htmlOut  = flag.String("html", "", "HTML chart output path")
		pngOut   = flag.String("png", "", "PNG chart output path")
	)
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		flag.Usage()
		os.Exit(1)
	}
	if *htmlOut == "" && *pngOut == "" {
		fmt.Fprintln(os.Stderr, "nothing to do: give -html and/or -png")
		flag.Usage()
		os.Exit(1)
	}

	doc, err := xmlout.ReadDocument(fsutil.OSFileSystem{}, *in)
	if err != nil {
		log.Fatalf("load results: %v", err)
	}
	if len(doc.Data) == 0 {
		log.Fatalf("%s holds no results yet", *in)
	}

	series, err := extractSeries(doc, *xName, *yName, *seriesBy)
	if err != nil {
		log.Fatalf("extract series: %v", err)
	}

	if *htmlOut != "" {
		if err := renderHTML(series, *xName, *yName, doc.Gen.RunID, *htmlOut); err != nil {
			log.Fatalf("render HTML: %v", err)
		}
		log.Printf("wrote %s", *htmlOut)
	}
	if *pngOut != "" {
		if err := renderPNG(series, *xName, *yName, *pngOut); err != nil {
			log.Fatalf("render PNG: %v", err)
		}
		log.Printf("wrote %s", *pngOut)
	}
}

type point struct {
	x, y float64
}

// extractSeries pulls (x, y) pairs from every record, grouped by the value
// of the series axis. With no series axis everything lands in one group
// keyed by the y name. Points come back sorted by x.
func extractSeries(doc *xmlout.Document, xName, yName, seriesBy string) (map[string][]point, error) {
	series := make(map[string][]point)
	for i, rec := range doc.Data {
		x, ok := lookupVar(rec, xName)
		if !ok {
			return nil, fmt.Errorf("record %d has no variable %q", i, xName)
		}
		y, ok := lookupVar(rec, yName)
		if !ok {
			return nil, fmt.Errorf("record %d has no variable %q", i, yName)
		}

		key := yName
		if seriesBy != "" {
			s, ok := lookupVar(rec, seriesBy)
			if !ok {
				return nil, fmt.Errorf("record %d has no variable %q", i, seriesBy)
			}
			key = fmt.Sprintf("%s=%g", seriesBy, s)
		}
		series[key] = append(series[key], point{x: x, y: y})
	}

	for _, pts := range series {
		sort.Slice(pts, func(i, j int) bool {
			if pts[i].x != pts[j].x {
				return pts[i].x < pts[j].x
			}
			return pts[i].y < pts[j].y
		})
	}
	return series, nil
}

// lookupVar searches a record's parameters, then its observables.
func lookupVar(rec xmlout.Record, name string) (float64, bool) {
	for _, v := range rec.Params {
		if v.Name == name {
			return v.Value, true
		}
	}
	for _, v := range rec.Results {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}

// sortedKeys returns series names in stable order for legends.
func sortedKeys(series map[string][]point) []string {
	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderHTML(series map[string][]point, xName, yName, runID, path string) error {
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s vs %s", yName, xName),
			Subtitle: fmt.Sprintf("run %s", runID),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName, Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName, Type: "value"}),
	)

	for _, name := range sortedKeys(series) {
		data := make([]opts.ScatterData, len(series[name]))
		for i, p := range series[name] {
			data[i] = opts.ScatterData{Value: []interface{}{p.x, p.y}}
		}
		scatter.AddSeries(name, data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return scatter.Render(f)
}

func renderPNG(series map[string][]point, xName, yName, path string) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s vs %s", yName, xName)
	p.X.Label.Text = xName
	p.Y.Label.Text = yName

	for _, name := range sortedKeys(series) {
		xys := make(plotter.XYs, len(series[name]))
		for i, pt := range series[name] {
			xys[i].X = pt.x
			xys[i].Y = pt.y
		}
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return fmt.Errorf("series %s: %w", name, err)
		}
		p.Add(line, points)
		p.Legend.Add(name, line, points)
	}

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}
