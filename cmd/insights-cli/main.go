// Command insights-cli runs the event table filter over a CSV file and writes
// the filtered view as CSV or XLSX.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"insights-filter/internal/clock"
	"insights-filter/internal/config"
	"insights-filter/internal/insights"
	"insights-filter/internal/insights/export"
	"insights-filter/internal/insights/loader"
	"insights-filter/internal/logger"
	"insights-filter/internal/models"
)

type options struct {
	in            string
	highlights    string
	highlightMode string
	name          string
	monitoring    string
	secondary     string
	zones         string
	pctMin        string
	pctMax        string
	zonesMin      int
	zonesMax      int
	days          int
	showPast      bool
	sortBy        string
	desc          bool
	scope         string
	format        string
	out           string
	now           string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("insights-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.in, "in", "", "input CSV file (required)")
	fs.StringVar(&o.highlights, "highlights", "", "newline-delimited ID file to highlight")
	fs.StringVar(&o.highlightMode, "highlight-mode", "all", "all, only or exclude")
	fs.StringVar(&o.name, "name", "", "keep events whose name contains this text")
	fs.StringVar(&o.monitoring, "monitoring", "", "keep events with this monitoring value")
	fs.StringVar(&o.secondary, "secondary", "all", "secondary market presence: all, yes or no")
	fs.StringVar(&o.zones, "zones", "", "comma-separated OOS zones; keep events listing any of them")
	fs.StringVar(&o.pctMin, "pct-min", "", "minimum percentage difference")
	fs.StringVar(&o.pctMax, "pct-max", "", "maximum percentage difference")
	fs.IntVar(&o.zonesMin, "zones-min", -1, "minimum OOS zone count (-1 disables)")
	fs.IntVar(&o.zonesMax, "zones-max", -1, "maximum OOS zone count (-1 disables)")
	fs.IntVar(&o.days, "days", -1, "keep events within this many days (-1 disables)")
	fs.BoolVar(&o.showPast, "show-past", false, "include past events in the days window")
	fs.StringVar(&o.sortBy, "sort", "row", "sort column")
	fs.BoolVar(&o.desc, "desc", false, "sort descending")
	fs.StringVar(&o.scope, "scope", "full", "export scope: full or ids")
	fs.StringVar(&o.format, "format", "csv", "export format: csv or xlsx")
	fs.StringVar(&o.out, "out", "", "output file (stdout when empty, csv only)")
	fs.StringVar(&o.now, "now", "", "evaluation instant in RFC 3339 (defaults to the current time)")

	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.in == "" {
		return o, fmt.Errorf("-in is required")
	}
	return o, nil
}

func (o options) criteria() (insights.Criteria, error) {
	c := insights.Criteria{
		NameContains: o.name,
		Monitoring:   o.monitoring,
		Secondary:    insights.SecondaryFilter(strings.ToLower(o.secondary)),
		SortBy:       o.sortBy,
		SortDesc:     o.desc,
		Highlight:    insights.HighlightMode(strings.ToLower(o.highlightMode)),
	}
	if o.zones != "" {
		c.Zones = insights.SplitZones(o.zones)
	}

	var err error
	if c.Percentage.Min, err = optionalFloat("pct-min", o.pctMin); err != nil {
		return c, err
	}
	if c.Percentage.Max, err = optionalFloat("pct-max", o.pctMax); err != nil {
		return c, err
	}
	c.Percentage.Enabled = c.Percentage.Min != nil || c.Percentage.Max != nil

	if o.zonesMin >= 0 || o.zonesMax >= 0 {
		c.ZoneCount = insights.ZoneCountRange{Enabled: true, Min: 0, Max: int(^uint(0) >> 1)}
		if o.zonesMin >= 0 {
			c.ZoneCount.Min = o.zonesMin
		}
		if o.zonesMax >= 0 {
			c.ZoneCount.Max = o.zonesMax
		}
	}
	if o.days >= 0 {
		c.Days = insights.DaysWindow{Enabled: true, Threshold: o.days, ShowPast: o.showPast}
	}
	return c, nil
}

func optionalFloat(name, raw string) (*float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("-%s: %q is not a number", name, raw)
	}
	return &v, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	criteria, err := opts.criteria()
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}
	scope, err := export.ParseScope(opts.scope)
	if err != nil {
		return err
	}
	if format == export.FormatXLSX && opts.out == "" {
		return fmt.Errorf("-out is required for xlsx output")
	}

	cfg := config.Load()
	log := logger.NewWithWriter(stderr)

	clk := clock.NewSystem()
	if opts.now != "" {
		at, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("-now: %w", err)
		}
		clk = clock.NewFixed(at)
	}

	in, err := os.Open(opts.in)
	if err != nil {
		return err
	}
	defer in.Close()

	table, err := loader.New(loader.Options{
		Clock:         clk,
		Location:      cfg.Insights.Location(),
		MaxAdvisories: cfg.Insights.MaxAdvisories,
		Logger:        log,
	}).Load(context.Background(), in)
	if err != nil {
		return fmt.Errorf("load %s: %w", opts.in, err)
	}
	for _, a := range table.Advisories() {
		log.Warn("ADVISORY", describe(a))
	}

	highlights := insights.HighlightSet{}
	if opts.highlights != "" {
		f, err := os.Open(opts.highlights)
		if err != nil {
			return err
		}
		highlights, err = insights.ParseHighlightIDs(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	view := table.Apply(criteria, highlights)
	for _, a := range view.Advisories {
		log.Warn("ADVISORY", describe(a))
	}
	log.Info("VIEW", fmt.Sprintf("%d of %d rows", view.Count, view.Total))

	var out io.Writer = stdout
	if opts.out != "" {
		f, err := os.Create(opts.out)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if err := export.Write(out, view, format, scope); err != nil {
		return err
	}
	log.Info("EXPORT", fmt.Sprintf("%s/%s - %d rows", format, scope, view.Count))
	return nil
}

func describe(a models.Advisory) string {
	var b strings.Builder
	b.WriteString(string(a.Kind))
	if a.Column != "" {
		fmt.Fprintf(&b, " column=%q", a.Column)
	}
	if a.Row != nil {
		fmt.Fprintf(&b, " row=%d", *a.Row)
	}
	if a.Value != "" {
		fmt.Fprintf(&b, " value=%q", a.Value)
	}
	b.WriteString(": ")
	b.WriteString(a.Message)
	return b.String()
}

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "insights-cli:", err)
		os.Exit(1)
	}
}
