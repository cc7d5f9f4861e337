// Command fulfillctl is the operator CLI for the fulfillment service. It
// seeds users, courses and API keys, and produces test credentials.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/coursecart/fulfillment/internal/model"
	"github.com/coursecart/fulfillment/internal/repository"
	"github.com/coursecart/fulfillment/internal/validate"
)

var Version = "dev"

const storeTimeout = 10 * time.Second

// store is the subset of the repository the CLI writes through.
type store interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error
	CreateCourse(ctx context.Context, course *model.Course) error
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
}

// app carries the CLI's injectable dependencies.
type app struct {
	out       io.Writer
	openStore func(ctx context.Context, databaseURL string) (store, func(), error)
	validator *validate.Validator
	now       func() time.Time

	databaseURL string
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	a := &app{
		out:       os.Stdout,
		openStore: openRepository,
		validator: validate.New(),
		now:       time.Now,
	}
	if err := a.rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openRepository(ctx context.Context, databaseURL string) (store, func(), error) {
	if databaseURL == "" {
		return nil, nil, errors.New("DATABASE_URL is required (flag --database-url or environment)")
	}
	repo, err := repository.New(ctx, databaseURL, repository.PoolOptions{MaxConns: 2})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return repo, repo.Close, nil
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fulfillctl",
		Short:         "Operator tooling for the course fulfillment service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")

	root.AddCommand(a.userCmd())
	root.AddCommand(a.courseCmd())
	root.AddCommand(a.apiKeyCmd())
	root.AddCommand(a.signCmd())
	root.AddCommand(a.tokenCmd())
	root.AddCommand(a.webhookCmd())
	root.SetOut(a.out)
	return root
}

// withStore opens the store for the duration of fn.
func (a *app) withStore(cmd *cobra.Command, fn func(ctx context.Context, s store) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), storeTimeout)
	defer cancel()

	s, closeFn, err := a.openStore(ctx, a.databaseURL)
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(ctx, s)
}
