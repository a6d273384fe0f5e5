// Command routectl binds to a media route provider service, prints the
// routes it publishes and optionally drives one of them.
//
// With -mcp it instead serves the provider's routes as MCP tools on stdin
// and stdout until the client disconnects.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

type options struct {
	config  string
	route   string
	sel     bool
	unsel   bool
	volume  int
	delta   int
	action  string
	mcp     bool
	timeout string
}

func main() {
	opts := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout, os.Stderr); err != nil {
		fatalf("%v", err)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.config, "config", "routectl.toml", "path to the TOML configuration")
	flag.StringVar(&opts.route, "route", "", "route id to control")
	flag.BoolVar(&opts.sel, "select", false, "select the route")
	flag.BoolVar(&opts.unsel, "unselect", false, "unselect the route")
	flag.IntVar(&opts.volume, "volume", -1, "set the route volume (-1 leaves it unchanged)")
	flag.IntVar(&opts.delta, "delta", 0, "change the route volume by delta")
	flag.StringVar(&opts.action, "action", "", "send a control request with this action")
	flag.BoolVar(&opts.mcp, "mcp", false, "serve routes as MCP tools on stdio")
	flag.StringVar(&opts.timeout, "timeout", "5s", "how long to wait for the first descriptor")
	flag.Parse()
	return opts
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "routectl: "+format+"\n", args...)
	os.Exit(1)
}
