package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"brokergw/pkg/brokergw"
)

const version = "0.1.0"

const defaultURL = "http://127.0.0.1:4006"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: brokergw-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  health     Check that brokergw-server is up\n")
	fmt.Fprintf(os.Stderr, "  submit     Submit an order: -symbol AAPL -side BUY -qty 10 [-price 150] [-strategy id]\n")
	fmt.Fprintf(os.Stderr, "  positions  List positions\n")
	fmt.Fprintf(os.Stderr, "  fills      List fills\n")
	fmt.Fprintf(os.Stderr, "  cancel     Cancel an order: -id clo_...\n")
	fmt.Fprintf(os.Stderr, "  replace    Replace an order: -id clo_...\n")
	fmt.Fprintf(os.Stderr, "\nEvery command except version accepts -url (default $BROKERGW_URL or %s).\n", defaultURL)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	if err := run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd string, args []string) error {
	if cmd == "version" {
		fmt.Printf("brokergw-cli %s\n", version)
		return nil
	}

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	baseURL := fs.String("url", envOr("BROKERGW_URL", defaultURL), "brokergw-server base URL")
	timeout := fs.Duration("timeout", 10*time.Second, "request timeout")

	var (
		symbol   *string
		side     *string
		qty      *int64
		price    *float64
		strategy *string
		id       *string
	)
	switch cmd {
	case "submit":
		symbol = fs.String("symbol", "", "symbol to trade")
		side = fs.String("side", "BUY", "BUY or SELL")
		qty = fs.Int64("qty", 0, "quantity")
		price = fs.Float64("price", 0, "limit price (0 = server default)")
		strategy = fs.String("strategy", "", "strategy id")
	case "cancel", "replace":
		id = fs.String("id", "", "client order id")
	case "health", "positions", "fills":
	default:
		usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := brokergw.NewClient(*baseURL, brokergw.WithTimeout(*timeout), brokergw.WithRetries(2, 200*time.Millisecond))
	ctx := context.Background()

	switch cmd {
	case "health":
		if err := client.Health(ctx); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil

	case "submit":
		order := brokergw.SubmitOrderRequest{
			Symbol:     *symbol,
			Side:       *side,
			Qty:        *qty,
			StrategyID: *strategy,
		}
		if *price > 0 {
			order.Price = price
		}
		resp, err := client.SubmitOrder(ctx, order)
		if err != nil {
			return err
		}
		return printJSON(resp)

	case "positions":
		positions, err := client.GetPositions(ctx)
		if err != nil {
			return err
		}
		return printJSON(positions)

	case "fills":
		fills, err := client.GetFills(ctx)
		if err != nil {
			return err
		}
		return printJSON(fills)

	case "cancel":
		status, err := client.Cancel(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil

	default: // replace
		status, err := client.Replace(ctx, *id)
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
