package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/urfave/cli"

	"bento-route-planner/internal/config"
	"bento-route-planner/internal/database"
	"bento-route-planner/internal/geocoding"
	"bento-route-planner/internal/importer"
	"bento-route-planner/internal/models"
	"bento-route-planner/internal/routing"
	"bento-route-planner/internal/server"
	"bento-route-planner/internal/sqlstore"
)

func main() {
	app := cli.NewApp()
	app.Name = "routectl"
	app.Usage = "manage delivery destinations and compute routes from the command line"
	app.Version = "1.0.0"

	app.Commands = []cli.Command{
		{
			Name:      "import-glug",
			Usage:     "import a GLUG order export (Shift_JIS CSV)",
			ArgsUsage: "FILE",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "route", Usage: "only import rows of this route tag"},
			},
			Action: withStore(importGLUG),
		},
		{
			Name:      "import-csv",
			Usage:     "import a name,address,route CSV",
			ArgsUsage: "FILE",
			Action:    withStore(importCSV),
		},
		{
			Name:  "export",
			Usage: "export destinations as CSV",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "out, o", Usage: "output file (default stdout)"},
			},
			Action: withStore(exportCSV),
		},
		{
			Name:      "set-depot",
			Usage:     "set the depot address",
			ArgsUsage: "ADDRESS",
			Action:    withStore(setDepot),
		},
		{
			Name:  "list",
			Usage: "list destinations",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "route", Usage: "route tag filter"},
			},
			Action: withStore(list),
		},
		{
			Name:      "route",
			Usage:     "compute the visiting order from the depot",
			ArgsUsage: "[NAME...]",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "route", Usage: "route tag filter"},
				cli.StringFlag{Name: "report", Usage: "write a JSON solve report to this file"},
				cli.BoolFlag{Name: "two-opt", Usage: "improve the path with 2-opt"},
			},
			Action: withStore(route),
		},
		{
			Name:   "clear-cache",
			Usage:  "forget every cached geocoding result",
			Action: withStore(clearCache),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

type env struct {
	cfg *config.Config
	db  database.DataStore
	out io.Writer
}

// withStore loads configuration and opens the data store around action
func withStore(action func(*cli.Context, *env) error) func(*cli.Context) error {
	return func(c *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		db, err := sqlstore.Open(cfg.DatabaseURL, cfg.DBPath)
		if err != nil {
			return fmt.Errorf("failed to open data store: %w", err)
		}
		defer db.Close()

		return action(c, &env{cfg: cfg, db: db, out: os.Stdout})
	}
}

func openArg(c *cli.Context) (*os.File, error) {
	path := c.Args().First()
	if path == "" {
		return nil, cli.NewExitError("missing FILE argument", 2)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

func importGLUG(c *cli.Context, e *env) error {
	f, err := openArg(c)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := importer.ReadGLUG(f, e.cfg.GLUGSchema, importer.Options{
		DepotName: e.cfg.DepotName,
		RouteTag:  c.String("route"),
	})
	if err != nil {
		return importError(err)
	}
	return store(c, e, res)
}

func importCSV(c *cli.Context, e *env) error {
	f, err := openArg(c)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := importer.ReadCSV(f, importer.Options{DepotName: e.cfg.DepotName})
	if err != nil {
		return importError(err)
	}
	return store(c, e, res)
}

// importError maps a header mismatch to exit status 2, like other usage errors
func importError(err error) error {
	if importer.IsSchemaError(err) {
		return cli.NewExitError(err.Error(), 2)
	}
	return err
}

func store(c *cli.Context, e *env, res *importer.Result) error {
	written, err := e.db.Destinations().UpsertMany(context.Background(), res.Destinations)
	if err != nil {
		return fmt.Errorf("failed to store destinations: %w", err)
	}
	fmt.Fprintf(e.out, "imported %s destinations (%s skipped)\n", humanize.Comma(int64(written)), humanize.Comma(int64(res.Skipped)))
	return nil
}

func clearCache(c *cli.Context, e *env) error {
	if err := e.db.GeocodeCache().Clear(context.Background()); err != nil {
		return fmt.Errorf("failed to clear geocode cache: %w", err)
	}
	fmt.Fprintln(e.out, "geocode cache cleared")
	return nil
}

func exportCSV(c *cli.Context, e *env) error {
	destinations, err := e.db.Destinations().List(context.Background(), "")
	if err != nil {
		return err
	}

	w := e.out
	if path := c.String("out"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	return importer.WriteCSV(w, destinations, e.cfg.DepotName)
}

func setDepot(c *cli.Context, e *env) error {
	address := strings.TrimSpace(strings.Join(c.Args(), " "))
	if address == "" {
		return cli.NewExitError("missing ADDRESS argument", 2)
	}
	d := &models.Destination{Name: e.cfg.DepotName, Address: address}
	if err := e.db.Destinations().Upsert(context.Background(), d); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s: %s\n", d.Name, d.Address)
	return nil
}

func list(c *cli.Context, e *env) error {
	destinations, err := e.db.Destinations().List(context.Background(), c.String("route"))
	if err != nil {
		return err
	}
	destinations = lo.Reject(destinations, func(d models.Destination, _ int) bool {
		return d.Name == e.cfg.DepotName
	})

	for _, d := range destinations {
		fmt.Fprintf(e.out, "%s\t%s\t%s\n", d.Name, d.Address, d.RouteTag)
	}
	fmt.Fprintf(e.out, "%s destinations\n", humanize.Comma(int64(len(destinations))))
	return nil
}

func route(c *cli.Context, e *env) error {
	ctx := context.Background()

	depot, err := e.db.Destinations().Get(ctx, e.cfg.DepotName)
	if err != nil {
		return err
	}
	if depot == nil {
		depot = &models.Destination{Name: e.cfg.DepotName}
	}

	destinations, err := e.db.Destinations().List(ctx, c.String("route"))
	if err != nil {
		return err
	}
	if names := []string(c.Args()); len(names) > 0 {
		destinations = lo.Filter(destinations, func(d models.Destination, _ int) bool {
			return lo.Contains(names, d.Name)
		})
	}

	if c.Bool("two-opt") {
		e.cfg.TwoOpt = true
	}
	memo := geocoding.NewMemoGeocoder(server.NewGeocoder(e.cfg), e.db.GeocodeCache(), geocoding.DefaultMaxRetries)
	assembler := server.NewAssembler(e.cfg, memo)

	start := time.Now()
	result, err := assembler.CalculateRoute(ctx, &routing.RoutingRequest{Depot: *depot, Destinations: destinations})
	elapsed := time.Since(start)
	if err != nil {
		var unresolved *routing.ErrAddressUnresolved
		if errors.As(err, &unresolved) {
			for _, m := range unresolved.Missing {
				fmt.Fprintf(e.out, "unresolved: %s (%s)\n", m.Name, m.Address)
			}
		}
		return err
	}
	if result == nil {
		fmt.Fprintln(e.out, "no destinations selected")
		return nil
	}

	printRoute(e.out, result)

	if path := c.String("report"); path != "" {
		if err := writeReport(path, newReport(result, elapsed, e.cfg.TwoOpt)); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "report written to %s\n", path)
	}
	return nil
}
