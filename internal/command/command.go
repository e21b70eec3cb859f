// Package command implements the ecolyon command-line interface.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/ecolyon/ecolyon/internal/infrastructure"
)

// Aggregator is the infrastructure service the commands query.
type Aggregator interface {
	Catalogue() infrastructure.Catalogue
	Breakdown(ctx context.Context) (*infrastructure.Breakdown, error)
	CountByKey(ctx context.Context, key string) (infrastructure.CountResult, error)
	Stations(ctx context.Context) *infrastructure.StationList
}

// Builder creates the aggregator from the parsed flags.
type Builder func(c *cli.Context) (Aggregator, error)

// NewApp returns the CLI application.
func NewApp(version string, build Builder) *cli.App {
	withAggregator := func(fn func(c *cli.Context, agg Aggregator) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			agg, err := build(c)
			if err != nil {
				return cli.Exit(err.Error(), 2)
			}
			return fn(c, agg)
		}
	}

	return &cli.App{
		Name:    "ecolyon",
		Usage:   "count Lyon public infrastructure from the Grand Lyon geodata service",
		Version: version,
		// Exit codes are applied by the caller so the app can run in tests.
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "print JSON instead of a table",
			},
			&cli.StringFlag{
				Name:  "wfs-url",
				Usage: "geodata WFS endpoint",
			},
			&cli.StringFlag{
				Name:  "catalogue",
				Usage: "YAML catalogue file replacing the built-in datasets",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "maximum in-flight upstream requests per fan-out",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "per-request upstream timeout",
			},
			&cli.StringFlag{
				Name:  "failure-policy",
				Usage: "how failed sub-fetches are reported: zero or strict",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "total",
				Usage:  "print the total number of infrastructure items",
				Action: withAggregator(runTotal),
			},
			{
				Name:   "breakdown",
				Usage:  "print the per-category counts sorted by count",
				Action: withAggregator(runBreakdown),
			},
			{
				Name:      "count",
				Usage:     "print the count of one infrastructure type",
				ArgsUsage: "<type>",
				Action:    withAggregator(runCount),
			},
			{
				Name:  "stations",
				Usage: "list deduplicated charging stations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "print at most this many stations (0 for all)",
					},
				},
				Action: withAggregator(runStations),
			},
			{
				Name:   "catalogue",
				Usage:  "list the configured datasets",
				Action: withAggregator(runCatalogue),
			},
		},
	}
}

func runTotal(c *cli.Context, agg Aggregator) error {
	bd, err := agg.Breakdown(c.Context)
	if bd == nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("json") {
		if encErr := writeJSON(c.App.Writer, map[string]any{
			"total":    bd.Total,
			"degraded": bd.Degraded,
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintln(c.App.Writer, bd.Total)
	}
	return exitOnIncomplete(err)
}

func runBreakdown(c *cli.Context, agg Aggregator) error {
	bd, err := agg.Breakdown(c.Context)
	if bd == nil {
		return cli.Exit(err.Error(), 1)
	}

	if c.Bool("json") {
		if encErr := writeJSON(c.App.Writer, bd); encErr != nil {
			return encErr
		}
		return exitOnIncomplete(err)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tCOUNT\tERROR")
	for _, item := range bd.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", item.Key, item.Name, item.Count, item.Error)
	}
	fmt.Fprintf(tw, "\tTotal\t%d\t\n", bd.Total)
	if flushErr := tw.Flush(); flushErr != nil {
		return flushErr
	}
	if bd.Degraded {
		fmt.Fprintf(c.App.ErrWriter, "warning: %d categories failed, counted as zero\n", len(bd.Failures))
	}
	return exitOnIncomplete(err)
}

func runCount(c *cli.Context, agg Aggregator) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: ecolyon count <type>", 2)
	}
	key := c.Args().First()

	result, err := agg.CountByKey(c.Context, key)
	if errors.Is(err, infrastructure.ErrUnknownType) {
		return cli.Exit(err.Error(), 2)
	}
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	if !result.OK() {
		return cli.Exit(fmt.Sprintf("count %s: %v", key, result.Err), 1)
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, map[string]any{
			"type":  result.Key,
			"name":  result.Name,
			"count": result.Count,
		})
	}
	fmt.Fprintln(c.App.Writer, result.Count)
	return nil
}

func runStations(c *cli.Context, agg Aggregator) error {
	list := agg.Stations(c.Context)
	if len(list.Stations) == 0 && len(list.Failures) > 0 {
		return cli.Exit(fmt.Sprintf("all %d districts failed", len(list.Failures)), 1)
	}

	stations := list.Stations
	if limit := c.Int("limit"); limit > 0 && limit < len(stations) {
		stations = stations[:limit]
	}

	if c.Bool("json") {
		return writeJSON(c.App.Writer, map[string]any{
			"count":    len(list.Stations),
			"degraded": len(list.Failures) > 0,
			"stations": stations,
			"failures": list.Failures,
		})
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tCOMMUNE\tOPERATOR\tCONNECTORS\tMAX KW")
	for _, st := range stations {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			st.Key, st.CommuneCode, st.Operator, st.ConnectorCount,
			strconv.FormatFloat(st.MaxPowerKW, 'f', -1, 64))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "%d stations\n", len(list.Stations))
	for _, f := range list.Failures {
		fmt.Fprintf(c.App.ErrWriter, "warning: district %s failed: %s\n", f.Key, f.Reason)
	}
	return nil
}

func runCatalogue(c *cli.Context, agg Aggregator) error {
	catalogue := agg.Catalogue()

	if c.Bool("json") {
		return writeJSON(c.App.Writer, catalogue)
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tTYPENAME")
	for _, ep := range catalogue.Endpoints {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", ep.Key, ep.Name, ep.TypeName)
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\n",
		infrastructure.ChargingStationsKey, catalogue.Charging.Name, catalogue.Charging.TypeName)
	return tw.Flush()
}

// exitOnIncomplete maps a strict-policy failure to exit status 3; the
// partial result has already been printed.
func exitOnIncomplete(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, infrastructure.ErrIncomplete) {
		return cli.Exit(err.Error(), 3)
	}
	return cli.Exit(err.Error(), 1)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
