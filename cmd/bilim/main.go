package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/tech-arch1tect/bilim/app"
	"github.com/tech-arch1tect/bilim/config"
)

const usage = `usage: bilim <command> [flags]

commands:
  serve             run the HTTP service
  createsuperuser   create an active staff superuser
  cleanup           delete consumed codes, redeemed reset grants and expired sessions
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("missing command")
	}

	switch args[0] {
	case "serve":
		return serve()
	case "createsuperuser":
		return createSuperuser(args[1:])
	case "cleanup":
		return cleanup(args[1:])
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func serve() error {
	application, err := app.NewApp().WithAutoConfig().Build()
	if err != nil {
		return err
	}
	return application.Run()
}

func createSuperuser(args []string) error {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fs := flag.NewFlagSet("createsuperuser", flag.ContinueOnError)
	email := fs.String("email", cfg.Superuser.Email, "superuser email (SUPERUSER_EMAIL)")
	password := fs.String("password", cfg.Superuser.Password, "superuser password (SUPERUSER_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return errors.New("email and password are required")
	}

	return withServices(cfg, func(ctx context.Context, a *app.App) error {
		user, created, err := a.Accounts().EnsureSuperuser(ctx, *email, *password)
		if err != nil {
			return err
		}
		if created {
			fmt.Printf("created superuser %s (id %d)\n", user.Email, user.ID)
		} else {
			fmt.Printf("user %s already exists, nothing changed\n", user.Email)
		}
		return nil
	})
}

func cleanup(args []string) error {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	olderThan := fs.Duration("older-than", 24*time.Hour, "minimum age of consumed codes to delete")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withServices(cfg, func(ctx context.Context, a *app.App) error {
		codes, err := a.OTP().CleanupConsumed(ctx, *olderThan)
		if err != nil {
			return err
		}
		grants, err := a.Accounts().CleanupResetGrants(ctx)
		if err != nil {
			return err
		}
		sessions, err := a.Sessions().CleanupExpiredSessions(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d verification requests, %d reset grants and %d expired sessions\n", codes, grants, sessions)
		return nil
	})
}

// withServices runs fn against a started application without the HTTP server.
func withServices(cfg *config.Config, fn func(context.Context, *app.App) error) error {
	a, err := app.NewApp().WithConfig(cfg).WithoutHTTP().Build()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx, a)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	return errors.Join(runErr, a.Stop(stopCtx))
}
