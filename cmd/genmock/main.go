// Command genmock writes synthetic NOAA ERDDAP and Copernicus Marine style CSV
// files into a data directory so the reload pipeline can run without network
// access. Output is deterministic for a given seed.
//
// Usage:
//
//	go run ./cmd/genmock -out ./dados -start 2022-01-01 -days 730 -seed 42
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/coral-risk-etl/internal/domain"
)

// Layouts of the two upstream providers.
const (
	layoutERDDAP     = iota // header, unit row, ISO timestamps with lat/lon
	layoutCopernicus        // # comment block, then header with time and value
)

type fileDef struct {
	name     string
	layout   int
	columns  []string // value columns after time (and lat/lon for ERDDAP)
	units    []string
	stepDays int
	values   func(day int, t time.Time) []float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "./dados", "directory to write CSV files into")
	startStr := flag.String("start", "2022-01-01", "first day (YYYY-MM-DD)")
	days := flag.Int("days", 730, "number of days to generate")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startStr)
	if err != nil {
		return fmt.Errorf("invalid -start: %w", err)
	}
	if *days < 1 {
		return fmt.Errorf("-days must be positive")
	}
	if err := os.MkdirAll(*out, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	profile := domain.DefaultProfile()
	g := newGenerator(*seed, start, *days, profile)
	for _, d := range g.files() {
		path := filepath.Join(*out, d.name)
		n, err := g.write(path, d)
		if err != nil {
			return fmt.Errorf("write %s: %w", d.name, err)
		}
		log.Printf("%s: %d rows", d.name, n)
	}
	return nil
}

type generator struct {
	rng   *rand.Rand
	start time.Time
	days  int
	p     domain.Profile
	sst   []float64
	dhw   []float64
}

func newGenerator(seed uint64, start time.Time, days int, p domain.Profile) *generator {
	g := &generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), start: start, days: days, p: p}
	g.sst = make([]float64, days)
	for i := range g.sst {
		g.sst[i] = 26.4 + 1.6*g.season(i) + g.rng.NormFloat64()*0.25
	}
	// accumulated heat stress: hotspots of at least 1 °C summed over the window, in weeks
	g.dhw = make([]float64, days)
	for i := range g.dhw {
		sum := 0.0
		for j := max(0, i-p.DHWWindowDays+1); j <= i; j++ {
			if hs := g.sst[j] - p.ThermalThreshold; hs >= 1 {
				sum += hs
			}
		}
		g.dhw[i] = sum / 7
	}
	return g
}

// season peaks in late February, the austral summer maximum.
func (g *generator) season(day int) float64 {
	doy := g.start.AddDate(0, 0, day).YearDay()
	return math.Cos(2 * math.Pi * float64(doy-59) / 365.25)
}

func (g *generator) noise(sd float64) float64 { return g.rng.NormFloat64() * sd }

func (g *generator) files() []fileDef {
	return []fileDef{
		{name: "dhw.csv", layout: layoutERDDAP, columns: []string{"CRW_SST", "CRW_DHW"}, units: []string{"Celsius", "Celsius weeks"}, stepDays: 1,
			values: func(i int, _ time.Time) []float64 { return []float64{g.sst[i], g.dhw[i]} }},
		{name: "par_recente.csv", layout: layoutERDDAP, columns: []string{"par"}, units: []string{"einstein m-2 day-1"}, stepDays: 8,
			values: func(i int, _ time.Time) []float64 { return []float64{45 + 8*g.season(i) + g.noise(2)} }},
		{name: "salinity.csv", layout: layoutCopernicus, columns: []string{"so"}, units: []string{"1e-3"}, stepDays: 1,
			values: func(int, time.Time) []float64 { return []float64{36.2 + g.noise(0.1)} }},
		{name: "ph.csv", layout: layoutCopernicus, columns: []string{"ph"}, units: []string{"1"}, stepDays: 1,
			values: func(int, time.Time) []float64 { return []float64{8.05 + g.noise(0.02)} }},
		{name: "oxygen.csv", layout: layoutCopernicus, columns: []string{"o2"}, units: []string{"mmol m-3"}, stepDays: 1,
			values: func(i int, _ time.Time) []float64 { return []float64{205 - 10*g.season(i) + g.noise(4)} }},
		{name: "nitrate.csv", layout: layoutCopernicus, columns: []string{"no3"}, units: []string{"mmol m-3"}, stepDays: 1,
			values: func(int, time.Time) []float64 { return []float64{math.Max(0, 0.05+g.noise(0.02))} }},
		{name: "chlorophyll.csv", layout: layoutCopernicus, columns: []string{"CHL"}, units: []string{"mg m-3"}, stepDays: 1,
			values: func(i int, _ time.Time) []float64 { return []float64{math.Max(0.05, 0.35-0.1*g.season(i)+g.noise(0.05))} }},
		{name: "turbidity.csv", layout: layoutCopernicus, columns: []string{"KD490"}, units: []string{"m-1"}, stepDays: 1,
			values: func(int, time.Time) []float64 { return []float64{math.Max(0.02, 0.08+g.noise(0.015))} }},
		{name: "wind.csv", layout: layoutCopernicus, columns: []string{"wind_speed"}, units: []string{"m s-1"}, stepDays: 1,
			values: func(i int, _ time.Time) []float64 { return []float64{math.Max(0, 6.5-1.2*g.season(i)+g.noise(1))} }},
	}
}

func (g *generator) write(path string, d fileDef) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	lat := (g.p.BBox.LatMin + g.p.BBox.LatMax) / 2
	lon := (g.p.BBox.LonMin + g.p.BBox.LonMax) / 2

	w := csv.NewWriter(f)
	switch d.layout {
	case layoutERDDAP:
		_ = w.Write(append([]string{"time", "latitude", "longitude"}, d.columns...))
		_ = w.Write(append([]string{"UTC", "degrees_north", "degrees_east"}, d.units...))
	default:
		fmt.Fprintf(f, "# synthetic Copernicus Marine subset for %s\n", g.p.Site)
		fmt.Fprintf(f, "# units: %v\n", d.units)
		_ = w.Write(append([]string{"time"}, d.columns...))
	}

	rows := 0
	for i := 0; i < g.days; i += d.stepDays {
		t := g.start.AddDate(0, 0, i)
		var row []string
		if d.layout == layoutERDDAP {
			row = []string{t.Add(12 * time.Hour).Format(time.RFC3339), ftoa(lat), ftoa(lon)}
		} else {
			row = []string{t.Format("2006-01-02")}
		}
		for _, v := range d.values(i, t) {
			row = append(row, strconv.FormatFloat(v, 'f', 4, 64))
		}
		if err := w.Write(row); err != nil {
			return rows, err
		}
		rows++
	}
	w.Flush()
	return rows, w.Error()
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
