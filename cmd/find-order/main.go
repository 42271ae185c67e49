package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/orderhub/orderhub/internal/adapter"
	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
)

const maxPages = 200

func main() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: go run cmd/find-order/main.go <platform> <external-order-id>")
		fmt.Println("Example: go run cmd/find-order/main.go amazon 112-4429183-7713841")
		os.Exit(1)
	}

	platform := domain.Platform(os.Args[1])
	targetID := os.Args[2]
	if !platform.IsValid() {
		fmt.Fprintf(os.Stderr, "Unsupported platform %q\n", platform)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	a, err := adapter.NewRegistryFromConfig(cfg, logger).Get(platform)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No adapter: %v\n", err)
		os.Exit(1)
	}
	cred, err := adapter.NewEnvCredentials(cfg).Resolve(context.Background(), adapter.CredentialRefFor(cfg, platform))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to resolve credentials: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Searching %s for order %s\n\n", platform.DisplayName(), targetID)

	// Walk the platform's order feed from the beginning
	cursor := ""
	checked := 0
	for page := 0; page < maxPages; page++ {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Sync.CallTimeout)
		result, err := a.FetchOrdersSince(ctx, cred, cursor)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to fetch orders (%s): %v\n", adapter.Classify(err), err)
			os.Exit(1)
		}

		for _, order := range result.Orders {
			if order.ExternalOrderID == targetID || order.OrderNumber == targetID {
				printOrder(order)
				return
			}
		}
		for _, skipped := range result.Skipped {
			if skipped.ExternalID == targetID {
				fmt.Printf("Found the record, but it could not be mapped: %v\n", skipped.Err)
				os.Exit(1)
			}
		}

		checked += len(result.Orders) + len(result.Skipped)
		if !result.HasMore {
			break
		}
		cursor = result.NextCursor
		fmt.Printf("Searching... (checked %d orders so far)\n", checked)
	}

	fmt.Printf("Order '%s' not found on %s after checking %d orders.\n", targetID, platform.DisplayName(), checked)
	os.Exit(1)
}

func printOrder(o *domain.Order) {
	fmt.Printf("Found order!\n\n")
	fmt.Printf("Order: %s (%s)\n", o.OrderNumber, o.ExternalOrderID)
	fmt.Printf("Status: %s\n", o.Status)
	fmt.Printf("Date: %s\n", o.OrderDate.Format(time.RFC3339))
	fmt.Printf("Customer: %s\n", o.CustomerName)
	fmt.Printf("Total: %s %s\n", o.Total.StringFixed(2), o.Currency)
	if o.TrackingNumber != nil {
		carrier := ""
		if o.Carrier != nil {
			carrier = *o.Carrier + " "
		}
		fmt.Printf("Tracking: %s%s\n", carrier, *o.TrackingNumber)
	}
	if o.Inconsistent && o.InconsistencyReason != nil {
		fmt.Printf("Warning: %s\n", *o.InconsistencyReason)
	}
	fmt.Printf("\nItems:\n")
	for _, item := range o.Items {
		fmt.Printf("  %d x %s [%s] @ %s\n", item.Quantity, item.Name, item.SKU, item.UnitPrice.StringFixed(2))
	}
}
