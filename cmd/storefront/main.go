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
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/technoshop/technoshop-backend/pkg/checkout"
	"github.com/technoshop/technoshop-backend/pkg/config"
	"github.com/technoshop/technoshop-backend/pkg/logger"
	"github.com/technoshop/technoshop-backend/pkg/pricing"
	"github.com/technoshop/technoshop-backend/pkg/storefront"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

type options struct {
	token       string
	code        string
	destination string
	submit      bool
}

// report is printed as JSON once the run finishes.
type report struct {
	Summary     pricing.Summary           `json:"summary"`
	Destination *types.ObjectID           `json:"destination,omitempty"`
	Discount    *checkout.AppliedDiscount `json:"discount,omitempty"`
	Order       *storefront.OrderReceipt  `json:"order,omitempty"`
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront", Console: true})
	_ = godotenv.Load()

	cfg, err := config.LoadClient()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.ForService("storefront", cfg.Logging())

	var opts options
	flags := flag.NewFlagSet("storefront", flag.ExitOnError)
	flags.StringVar(&opts.token, "token", cfg.Storefront.Token, "shopper access token (default "+config.EnvStorefrontToken+")")
	flags.StringVar(&opts.code, "code", "", "discount code to apply before checkout")
	flags.StringVar(&opts.destination, "destination", "", "address id to ship to; empty uses the first address")
	flags.BoolVar(&opts.submit, "submit", false, "submit the order after pricing the cart")
	_ = flags.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg, opts, os.Stdout, time.Now); err != nil {
		logg.Error(ctx, "storefront checkout failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.ClientConfig, logg *logger.Logger, opts options, out io.Writer, now func() time.Time) error {
	token := strings.TrimSpace(opts.token)
	if token == "" {
		return errors.New("missing -token or " + config.EnvStorefrontToken)
	}
	client, err := storefront.NewClient(storefront.ParamsFromConfig(cfg.Storefront, token, logg))
	if err != nil {
		return err
	}
	session := storefront.NewSession(client, checkout.RulesFromConfig(cfg.Checkout), logg)

	if err := session.Refresh(ctx); err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if opts.destination != "" {
		id, err := types.ParseObjectID(opts.destination)
		if err != nil {
			return fmt.Errorf("invalid -destination: %w", err)
		}
		if err := session.SelectDestination(id); err != nil {
			return err
		}
	}
	if opts.code != "" {
		if _, err := session.ApplyDiscountCode(ctx, opts.code, now()); err != nil {
			return fmt.Errorf("apply discount code: %w", err)
		}
	}

	result := report{
		Summary:  session.Summary(now()),
		Discount: session.Discount(),
	}
	if dest := session.Destination(); !dest.IsZero() {
		result.Destination = &dest
	}
	if opts.submit {
		receipt, err := session.SubmitOrder(ctx, now())
		if err != nil {
			return fmt.Errorf("submit order: %w", err)
		}
		result.Order = receipt
		logg.Info(logg.WithOrderID(ctx, receipt.ID.String()), "order submitted")
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
