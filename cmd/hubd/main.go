package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/apihub/hub/pkg/docstore"
	"github.com/apihub/hub/pkg/docstore/entstore"
	"github.com/apihub/hub/pkg/docstore/memstore"
	"github.com/apihub/hub/pkg/errbus"
	"github.com/apihub/hub/pkg/hubapi"
	"github.com/apihub/hub/pkg/integrations"
	"github.com/apihub/hub/pkg/otel"
	"github.com/apihub/hub/pkg/revalidate"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var showVersion bool
	var addr string
	var dbURL string

	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&addr, "addr", getEnv("HUB_ADDR", ":8080"), "http listen address")
	flag.StringVar(&dbURL, "database-url", os.Getenv("HUB_DATABASE_URL"), "database DSN (sqlite:... or postgres://...); empty runs in-memory")
	flag.Parse()

	if showVersion {
		fmt.Printf("hubd %s (commit=%s, date=%s)\n", version, commit, date)
		return
	}

	ctx := context.Background()
	shutdown, err := otel.Init(ctx, otel.Config{ServiceName: "hub", ServiceVersion: version})
	if err != nil {
		fmt.Fprintf(os.Stderr, "otel init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = shutdown(ctx) }()

	var st docstore.Store
	if dbURL != "" {
		es, err := entstore.Open(ctx, dbURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open store: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = es.Close() }()
		if err := es.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
		st = es
	} else {
		st = memstore.New()
	}
	if err := integrations.Seed(ctx, st); err != nil {
		fmt.Fprintf(os.Stderr, "seed integrations: %v\n", err)
		os.Exit(1)
	}

	bus := errbus.New()
	bus.Subscribe(func(ev errbus.Event) {
		fmt.Fprintf(os.Stderr, "permission denied: op=%s path=%s\n", ev.Operation, ev.Path)
	})
	sig := revalidate.New()

	server := &http.Server{Addr: addr, Handler: buildMux(st, bus, sig)}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// buildMux assembles the full hub handler over the given store.
func buildMux(st docstore.Store, bus *errbus.Bus, sig *revalidate.Signal) http.Handler {
	return hubapi.New(st, bus, sig).Handler()
}

func getEnv(key string, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
