// Command oauth-client registers an OAuth client application against the
// database and prints the generated credentials. The client secret is shown
// exactly once; only its hash is stored.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"

	"github.com/ucpify/ucpify/internal/oauth"
	"github.com/ucpify/ucpify/internal/repository"
)

func main() {
	var (
		databaseURL  string
		name         string
		redirectURIs string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&name, "name", "", "client application name")
	flag.StringVar(&redirectURIs, "redirect-uris", "", "comma-separated redirect URIs")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if name == "" || redirectURIs == "" {
		slog.Error("--name and --redirect-uris are required")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, name, splitURIs(redirectURIs)); err != nil {
		slog.Error("client registration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context, databaseURL, name string, uris []string) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	svc := oauth.NewService(
		repository.NewClientRepository(pool),
		repository.NewCodeRepository(pool),
		repository.NewTokenRepository(pool),
	)

	rc, err := svc.RegisterClient(ctx, name, uris)
	if err != nil {
		return errors.Wrap(err, "register client")
	}

	fmt.Printf("client_id:     %s\n", rc.Client.ID)
	fmt.Printf("client_secret: %s\n", rc.Secret)
	fmt.Printf("redirect_uris: %s\n", strings.Join(rc.Client.RedirectURIs, ", "))
	fmt.Println("\nStore the secret now; it cannot be recovered later.")
	return nil
}

func splitURIs(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
