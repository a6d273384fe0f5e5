package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	mediaroute "github.com/wagiedev/mediaroute-go"
	"github.com/wagiedev/mediaroute-go/internal/config"
)

const toolsVersion = "1.0.0"

func run(ctx context.Context, opts options, stdout, stderr io.Writer) error {
	if opts.sel && opts.unsel {
		return fmt.Errorf("-select and -unselect are mutually exclusive")
	}

	if opts.route == "" && (opts.sel || opts.unsel || opts.volume >= 0 || opts.delta != 0 || opts.action != "") {
		return fmt.Errorf("-route is required to control a route")
	}

	wait, err := time.ParseDuration(opts.timeout)
	if err != nil {
		return fmt.Errorf("parse -timeout: %w", err)
	}

	cfg, err := config.LoadFile(opts.config)
	if err != nil {
		return err
	}

	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	descriptors := make(chan *mediaroute.ProviderDescriptor, 1)

	providerOpts := []mediaroute.Option{
		mediaroute.WithLogger(log),
		mediaroute.WithClientVersion(cfg.ClientVersion),
		mediaroute.WithCallTimeout(cfg.CallTimeout),
		mediaroute.WithMaxPayloadBytes(cfg.Limits.MaxPayloadBytes),
		mediaroute.WithDescriptorCallback(func(d *mediaroute.ProviderDescriptor) {
			if d == nil {
				return
			}

			select {
			case descriptors <- d:
			default:
			}
		}),
	}

	binder := newBinder(cfg, log, providerOpts)

	return mediaroute.WithProvider(ctx, cfg.Component, binder, func(p mediaroute.Provider) error {
		var d *mediaroute.ProviderDescriptor

		select {
		case d = <-descriptors:
		case <-time.After(wait):
			return fmt.Errorf("no descriptor from %s within %s", cfg.Component.FlattenToShortString(), wait)
		case <-ctx.Done():
			return ctx.Err()
		}

		if opts.mcp {
			tools := mediaroute.NewRouteTools(p, "routectl", toolsVersion, mediaroute.WithLogger(log))
			defer func() { _ = tools.Close(context.WithoutCancel(ctx)) }()

			return tools.Serve(ctx, &mcp.StdioTransport{})
		}

		printRoutes(stdout, d)

		if opts.route == "" {
			return nil
		}

		return controlRoute(ctx, p, opts, stdout)
	}, providerOpts...)
}

func newBinder(cfg config.File, log *slog.Logger, opts []mediaroute.Option) mediaroute.ServiceBinder {
	if cfg.Socket != "" {
		return mediaroute.NewSocketBinder(map[mediaroute.ComponentName]string{cfg.Component: cfg.Socket}, opts...)
	}

	return mediaroute.NewProcessBinder(map[mediaroute.ComponentName]mediaroute.ProcessService{
		cfg.Component: {
			Executable: cfg.Exec,
			Args:       cfg.Args,
			Stderr: func(line string) {
				log.Info("service", "stderr", line)
			},
		},
	}, opts...)
}

func printRoutes(w io.Writer, d *mediaroute.ProviderDescriptor) {
	if len(d.Routes) == 0 {
		fmt.Fprintln(w, "No routes published.")
		return
	}

	for _, r := range d.Routes {
		state := "disabled"
		if r.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(w, "%-24s %-32s %-8s volume=%d/%d\n", r.ID, r.Name, state, r.Volume, r.VolumeMax)
	}
}

func controlRoute(ctx context.Context, p mediaroute.Provider, opts options, stdout io.Writer) error {
	c, err := p.CreateRouteController(ctx, opts.route)
	if err != nil {
		return err
	}
	defer func() { _ = c.Release(context.WithoutCancel(ctx)) }()

	switch {
	case opts.sel:
		if err := c.Select(ctx); err != nil {
			return err
		}
	case opts.unsel:
		if err := c.Unselect(ctx); err != nil {
			return err
		}
	}

	if opts.volume >= 0 {
		if err := c.SetVolume(ctx, opts.volume); err != nil {
			return err
		}
	}

	if opts.delta != 0 {
		if err := c.UpdateVolume(ctx, opts.delta); err != nil {
			return err
		}
	}

	if opts.action == "" {
		return nil
	}

	results := make(chan mediaroute.ControlResult, 1)

	err = c.SendControlRequest(ctx, &mediaroute.ControlRequest{Action: opts.action}, func(r mediaroute.ControlResult) {
		results <- r
	})
	if err != nil {
		return err
	}

	select {
	case r := <-results:
		if r.Failed() {
			return fmt.Errorf("control request %q failed", opts.action)
		}
		fmt.Fprintf(stdout, "%s: code=%d data=%v\n", opts.action, r.Code, r.Data)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
