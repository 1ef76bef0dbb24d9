package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"resolvex/backend/internal/access"
	"resolvex/backend/internal/app"
	"resolvex/backend/internal/config"
	"resolvex/backend/internal/logger"
	"resolvex/backend/internal/models"
	"resolvex/backend/internal/users"

	"github.com/rs/zerolog"
)

// operator acts for whoever runs the CLI, who already holds the database
// credentials.
var operator = access.Actor{Role: models.RoleSuperAdmin}

const usage = `Usage: admin <command> [args]

Commands:
  create-user <email> <full_name> <password> <role>
  escalate-overdue
  summary
  seed-categories`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		l := logger.New("prod")
		l.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.NewWithWriter(cfg.Env, os.Stderr)

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise")
	}
	defer a.Close()

	if err := runCommand(ctx, a, os.Stdout, os.Args[1], os.Args[2:], log); err != nil {
		a.Close()
		log.Fatal().Err(err).Str("command", os.Args[1]).Msg("command failed")
	}
}

func runCommand(ctx context.Context, a *app.App, out io.Writer, command string, args []string, log zerolog.Logger) error {
	switch command {
	case "create-user":
		if len(args) != 4 {
			return errors.New("usage: admin create-user <email> <full_name> <password> <role>")
		}
		role, err := models.ParseRole(args[3])
		if err != nil {
			return err
		}
		u, err := a.Users.CreateUser(ctx, operator, users.CreateInput{
			RegisterInput: users.RegisterInput{Email: args[0], FullName: args[1], Password: args[2]},
			Role:          role,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "User %s (#%d) created with role %s.\n", u.Email, u.ID, u.Role)

	case "escalate-overdue":
		n, err := a.Complaints.EscalateOverdue(ctx)
		if err != nil {
			log.Warn().Err(err).Int("escalated", n).Msg("some complaints could not be escalated")
		}
		fmt.Fprintf(out, "%d complaint(s) escalated.\n", n)

	case "summary":
		sum, err := a.Complaints.Summary(ctx, operator)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)

	case "seed-categories":
		n, err := a.SeedCategories(ctx)
		if err != nil {
			return err
		}
		cats, err := a.Storage.ListCategories(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d categories added, %d stored.\n", n, len(cats))

	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}
	return nil
}
