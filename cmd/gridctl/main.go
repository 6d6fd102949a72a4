// Command gridctl runs the grid engine over a JSON input file and prints the
// result as JSON. It can also lint a grid config and save or load configs
// through the config store, or serve the engine as a JSON API.
//
//	gridctl -config grid.json -input rows.json
//	gridctl -config grid.json -input https://example.com/export.json -filter team=north
//	gridctl -config grid.json -validate
//	gridctl -config grid.json -save doctor-activity -store sqlite -dsn file:grid.db
//	gridctl -load doctor-activity -store sqlite -dsn file:grid.db -input rows.json -search creme
//	gridctl -serve :8080 -store postgres -dsn postgres://grid@localhost/grid
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gridengine/internal/config"
	"gridengine/internal/datasource"
	"gridengine/internal/datasource/httpds"
	"gridengine/internal/engine"
	"gridengine/internal/filter"
	"gridengine/internal/httpapi"
	"gridengine/internal/metrics"
	"gridengine/internal/metrics/datadog"
	"gridengine/internal/metrics/prompush"
	"gridengine/internal/storage"

	// register every backend with the storage factory; -store picks one.
	_ "gridengine/internal/storage/all"
)

type options struct {
	configPath string
	inputPath  string
	format     string
	validate   bool
	saveKey    string
	loadKey    string
	serveAddr  string

	storeKind  string
	storeDSN   string
	storeTable string

	metricsBackend string
	pushGatewayURL string
	statsdAddr     string

	search  string
	columns map[string]string
	timeout time.Duration
	verbose bool
}

func main() {
	o := options{columns: map[string]string{}}

	flag.StringVar(&o.configPath, "config", "", "grid config JSON path (defaults apply when empty)")
	flag.StringVar(&o.inputPath, "input", "", "input JSON: file path, http(s) URL or '-' for stdin; an array of rows or an object of named arrays")
	flag.StringVar(&o.format, "format", "", "input format: json, csv or tsv (guessed from the -input extension when empty)")
	flag.BoolVar(&o.validate, "validate", false, "validate the configuration and exit")
	flag.StringVar(&o.saveKey, "save", "", "save the config under this key in the config store")
	flag.StringVar(&o.loadKey, "load", "", "load the config stored under this key instead of -config")
	flag.StringVar(&o.serveAddr, "serve", "", "serve the JSON API on this address instead of running once")
	flag.StringVar(&o.storeKind, "store", "", "config store kind: "+strings.Join(storage.Kinds(), ", ")+" (env GRID_STORE_KIND)")
	flag.StringVar(&o.storeDSN, "dsn", "", "config store DSN (env GRID_STORE_DSN)")
	flag.StringVar(&o.storeTable, "table", "", "config store table (default "+storage.DefaultTable+")")
	flag.StringVar(&o.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway, datadog (env METRICS_BACKEND)")
	flag.StringVar(&o.pushGatewayURL, "pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	flag.StringVar(&o.statsdAddr, "statsd-addr", "", "DogStatsD address (env DD_DOGSTATSD_ADDR)")
	flag.StringVar(&o.search, "search", "", "global search filter")
	flag.Func("filter", "column filter field=value (repeatable)", func(s string) error {
		k, v, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return fmt.Errorf("want field=value, got %q", s)
		}
		o.columns[strings.TrimSpace(k)] = v
		return nil
	})
	flag.DurationVar(&o.timeout, "timeout", time.Minute, "overall deadline")
	flag.BoolVar(&o.verbose, "v", false, "enable verbose logs")
	flag.Parse()

	o.storeKind = firstNonEmpty(o.storeKind, os.Getenv("GRID_STORE_KIND"), "sqlite")
	o.storeDSN = firstNonEmpty(o.storeDSN, os.Getenv("GRID_STORE_DSN"), "file:grid.db")
	o.metricsBackend = firstNonEmpty(o.metricsBackend, os.Getenv("METRICS_BACKEND"), "none")
	o.pushGatewayURL = firstNonEmpty(o.pushGatewayURL, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
	o.statsdAddr = firstNonEmpty(o.statsdAddr, os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125")

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if o.serveAddr != "" {
		ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	} else {
		ctx, cancel = context.WithTimeout(context.Background(), o.timeout)
	}
	defer cancel()

	err := run(ctx, o, os.Stdout, os.Stderr)
	if flushErr := metrics.Flush(); flushErr != nil {
		log.Printf("metrics: flush error: %v", flushErr)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

// run is main without the process: flags are already resolved.
func run(ctx context.Context, o options, stdout, stderr io.Writer) error {
	start := time.Now()
	setupMetrics(o)

	var st storage.Store
	if o.saveKey != "" || o.loadKey != "" || o.serveAddr != "" {
		var err error
		st, err = storage.New(ctx, storage.Config{Kind: o.storeKind, DSN: o.storeDSN, Table: o.storeTable})
		if err != nil {
			return fmt.Errorf("open config store: %w", err)
		}
		defer st.Close()
	}

	if o.serveAddr != "" {
		srv := httpapi.NewServer(httpapi.Config{Addr: o.serveAddr}, st)
		log.Printf("httpapi: listening on %s (store=%s)", o.serveAddr, o.storeKind)
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	}

	g, err := loadGrid(ctx, o, st)
	if err != nil {
		return err
	}

	issues := config.ValidateGrid(g)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return errors.New("configuration is invalid")
	}
	if o.validate {
		log.Printf("configuration is valid: grid=%q", g.Grid)
		return nil
	}

	if o.saveKey != "" {
		if err := storage.SaveGrid(ctx, st, o.saveKey, g); err != nil {
			return err
		}
		if o.verbose {
			log.Printf("store: saved grid=%q key=%q kind=%s", g.Grid, o.saveKey, o.storeKind)
		}
	}
	if o.inputPath == "" {
		if o.saveKey == "" {
			return errors.New("nothing to do: pass -input, -save or -validate")
		}
		return nil
	}

	format := o.format
	if format == "" {
		format = datasource.FormatFor(o.inputPath)
	}
	in, err := datasource.ReadInputAs(ctx, datasource.ForRef(o.inputPath, httpds.Config{MaxRetries: 3}), format)
	if err != nil {
		return fmt.Errorf("input: %w", err)
	}
	res, err := engine.Run(ctx, engine.Request{
		Input:  in,
		Config: g,
		Filter: filter.State{Search: o.search, Columns: o.columns},
	})
	if err != nil {
		return err
	}
	if o.verbose {
		log.Printf("engine: grid=%q source_rows=%d displayed=%d hidden=%d pivot=%v elapsed=%s",
			g.Grid, res.SourceRows, len(res.Rows), res.Hidden, res.IsPivot, time.Since(start).Truncate(time.Millisecond))
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func loadGrid(ctx context.Context, o options, st storage.Store) (config.Grid, error) {
	switch {
	case o.loadKey != "":
		return storage.LoadGrid(ctx, st, o.loadKey)
	case o.configPath != "":
		f, err := os.Open(o.configPath)
		if err != nil {
			return config.Grid{}, fmt.Errorf("open config: %w", err)
		}
		defer f.Close()
		return config.Decode(f)
	default:
		return config.Default(), nil
	}
}

// setupMetrics installs the selected backend; failures leave the nop
// backend in place.
func setupMetrics(o options) {
	switch o.metricsBackend {
	case "pushgateway":
		b, err := prompush.NewBackend("gridctl", o.pushGatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=%v", o.pushGatewayURL, o.metricsBackend)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: o.statsdAddr, Namespace: "gridengine."})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: addr=%v, backend=%v", o.statsdAddr, o.metricsBackend)
		metrics.SetBackend(b)

	case "", "none":
		if o.verbose {
			log.Printf("metrics: disabled (backend=%q)", o.metricsBackend)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", o.metricsBackend)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
