// Command ionosphere orders satellite broadcasts from the command line,
// paying with a local Core Lightning node.
//
//	ionosphere [-config file] [-api url] [-debug] <command> [args]
//
// Commands:
//
//	info                    print the broadcast API's lightning node
//	health                  check both nodes and their networks
//	connect                 connect the local node to the API's node
//	open-channel <sat>      connect and fund a channel of <sat> satoshis
//	bid <source> <msat>     upload a file, ipfs:// or filecoin:// source and pay
//	cancel <uuid> <token>   cancel an order
//
// Settings come from the config file and IONOSPHERE_* environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/ionosphere-go/ionosphere/pkg/config"
	"github.com/ionosphere-go/ionosphere/pkg/model"
	"github.com/ionosphere-go/ionosphere/pkg/satellite"
	"github.com/ionosphere-go/ionosphere/pkg/sdk"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, os.Args[1:], os.Stdout, func(cfg *config.Config) (*sdk.Client, error) {
		return sdk.New(cfg)
	})
	switch {
	case err == nil:
	case errors.Is(err, errUsage), errors.Is(err, flag.ErrHelp):
		os.Exit(2)
	default:
		zap.L().Fatal("command failed", zap.String("kind", satellite.Kind(err)), zap.Error(err))
	}
}

type clientFactory func(cfg *config.Config) (*sdk.Client, error)

func run(ctx context.Context, args []string, out io.Writer, newClient clientFactory) error {
	fs := flag.NewFlagSet("ionosphere", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", "", "YAML configuration file")
	api := fs.String("api", "", "broadcast API base URL (overrides config)")
	debug := fs.Bool("debug", false, "verbose logging")
	fs.Usage = func() {
		fmt.Fprintln(out, "usage: ionosphere [flags] info|health|connect|open-channel <sat>|bid <source> <msat>|cancel <uuid> <token>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *api != "" {
		cfg.APIEndpoint = *api
	}
	if *debug {
		cfg.Debug = true
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			zap.L().Warn("close", zap.Error(err))
		}
	}()

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "info":
		info, err := client.NodeInfo(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, info)

	case "health":
		h := client.Healthcheck(ctx)
		report := map[string]any{"healthy": h.Healthy()}
		if h.Remote != nil {
			report["remote"] = h.Remote
		}
		if h.LocalErr == nil {
			report["local"] = h.Local
		}
		for key, err := range map[string]error{"remote_error": h.RemoteErr, "local_error": h.LocalErr, "network_error": h.NetworkMismatch()} {
			if err != nil {
				report[key] = err.Error()
			}
		}
		return printJSON(out, report)

	case "connect":
		res, err := client.Connect(ctx)
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "open-channel":
		if len(rest) != 1 {
			return usage(fs, "open-channel <sat>")
		}
		sat, err := strconv.ParseUint(rest[0], 10, 64)
		if err != nil {
			return usage(fs, "open-channel <sat>: "+err.Error())
		}
		res, err := client.OpenChannel(ctx, model.Sat(sat))
		if err != nil {
			return err
		}
		return printJSON(out, res)

	case "bid":
		if len(rest) != 2 {
			return usage(fs, "bid <source> <msat>")
		}
		bid, err := strconv.ParseUint(rest[1], 10, 64)
		if err != nil {
			return usage(fs, "bid <source> <msat>: "+err.Error())
		}
		order, err := client.PlaceOrderFromRef(ctx, rest[0], model.Msat(bid))
		if err != nil {
			var stuck *satellite.CompensationFailedError
			if errors.As(err, &stuck) {
				// The handle is needed to retry the cancellation by hand.
				_ = printJSON(out, stuck.Order)
			}
			return err
		}
		return printJSON(out, order)

	case "cancel":
		if len(rest) != 2 {
			return usage(fs, "cancel <uuid> <token>")
		}
		ack, err := client.CancelOrder(ctx, model.Order{UUID: rest[0], AuthToken: rest[1]})
		if err != nil {
			return err
		}
		return printJSON(out, map[string]any{"status": ack.StatusCode, "ok": ack.OK()})

	default:
		return usage(fs, "unknown command "+strconv.Quote(cmd))
	}
}

func usage(fs *flag.FlagSet, msg string) error {
	fmt.Fprintln(fs.Output(), msg)
	fs.Usage()
	return errUsage
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
