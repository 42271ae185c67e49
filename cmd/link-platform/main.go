package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/orderhub/orderhub/internal/adapter"
	"github.com/orderhub/orderhub/internal/config"
	"github.com/orderhub/orderhub/internal/domain"
	"github.com/orderhub/orderhub/internal/events"
	"github.com/orderhub/orderhub/internal/lock"
	"github.com/orderhub/orderhub/internal/repository/postgres"
	"github.com/orderhub/orderhub/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run cmd/link-platform/main.go <platform> [credential-ref]")
	fmt.Println("  go run cmd/link-platform/main.go hash-key <admin-api-key>")
	fmt.Println("Example: go run cmd/link-platform/main.go shopify env:shopify")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	if os.Args[1] == "hash-key" {
		if len(os.Args) < 3 {
			usage()
		}
		hashKey(os.Args[2])
		return
	}

	platform := domain.Platform(os.Args[1])
	if !platform.IsValid() {
		fmt.Fprintf(os.Stderr, "Unsupported platform %q (expected shopify, amazon, ebay or etsy)\n", platform)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.StoreDriver != "postgres" {
		fmt.Fprintln(os.Stderr, "link-platform needs a persistent store, set STORE_DRIVER=postgres")
		os.Exit(1)
	}

	credentialRef := adapter.CredentialRefFor(cfg, platform)
	if len(os.Args) > 2 {
		credentialRef = os.Args[2]
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Connect to database
	db, err := postgres.NewConnection(cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := postgres.Migrate(db, logger); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to migrate database: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	creds := adapter.NewEnvCredentials(cfg)
	if _, err := creds.Resolve(ctx, credentialRef); err != nil {
		fmt.Fprintf(os.Stderr, "Credential reference %q cannot be resolved: %v\n", credentialRef, err)
		os.Exit(1)
	}

	repos := postgres.NewRepositories(db, logger)
	syncService := service.NewSyncService(
		repos,
		adapter.NewRegistryFromConfig(cfg, logger),
		creds,
		lock.NewLocalLocker(),
		events.NewLogPublisher(logger),
		nil,
		service.SyncOptionsFromConfig(cfg.Sync),
		logger,
	)
	defer syncService.Shutdown(ctx)

	conn, err := syncService.LinkPlatform(ctx, platform, credentialRef)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to link platform: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Platform linked successfully!\n\n")
	fmt.Printf("Platform: %s\n", conn.Platform.DisplayName())
	fmt.Printf("Credential: %s\n", conn.CredentialRef)
	if conn.LastSyncCursor != "" {
		fmt.Printf("Sync resumes from the stored cursor (%d orders synced so far)\n", conn.OrdersSynced)
	}
}

func hashKey(apiKey string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), 10)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to hash API key: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set this in the server environment:\n\n")
	fmt.Printf("ADMIN_API_KEY_HASH=%s\n", hash)
	fmt.Printf("\nIMPORTANT: Save the API key securely! Only its hash is stored.\n")
	fmt.Printf("\nUse the key in the Authorization header:\n")
	fmt.Printf("Authorization: Bearer %s\n", apiKey)
}
