package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/amirphl/nba-decision-core/app/seed"
	"github.com/amirphl/nba-decision-core/config"
	"github.com/amirphl/nba-decision-core/migrations"
	"github.com/amirphl/nba-decision-core/models"
	"github.com/amirphl/nba-decision-core/utils"
	"github.com/spf13/cobra"
)

var (
	actorID   string
	actorRole string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "nba",
		Short:        "Next-best-action campaign lifecycle and decision engine",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&actorID, "actor", "cli", "actor id recorded in the audit trail")
	root.PersistentFlags().StringVar(&actorRole, "role", string(models.RoleAdmin), "actor role (marketer, legal, admin)")

	root.AddGroup(
		&cobra.Group{ID: "ops", Title: "Operations:"},
		&cobra.Group{ID: "decisions", Title: "Decisions:"},
		&cobra.Group{ID: "campaigns", Title: "Campaigns:"},
	)
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newDecideCmd(),
		newEligibilityCmd(),
		newTransitionCmd(),
		newReconcileCmd(),
		newAuditCmd(),
		newExportCmd(),
	)
	return root
}

// withApp loads configuration, wires the application and closes it after fn
func withApp(cmd *cobra.Command, migrate bool, fn func(ctx context.Context, app *Application) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := initializeApplication(ctx, cfg, migrate)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func currentActor() (models.Actor, error) {
	role := models.Role(actorRole)
	switch role {
	case models.RoleMarketer, models.RoleLegal, models.RoleAdmin:
	default:
		return models.Actor{}, fmt.Errorf("unknown role %q", actorRole)
	}
	if actorID == "" {
		return models.Actor{}, fmt.Errorf("--actor must not be empty")
	}
	return models.Actor{ID: actorID, Role: role}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseID(arg, what string) (uint, error) {
	id, err := strconv.ParseUint(arg, 10, 0)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, arg)
	}
	return uint(id), nil
}

func newServeCmd() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		GroupID: "ops",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, migrate, func(_ context.Context, app *Application) error {
				return serve(app)
			})
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply pending migrations before serving")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "migrate",
		Short:   "Manage the database schema",
		GroupID: "ops",
	}

	withDB := func(fn func(*Application) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		db, err := initializeDatabase(cfg.Database)
		if err != nil {
			return err
		}
		app := &Application{config: cfg, db: db}
		defer func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}()
		return fn(app)
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(app *Application) error {
				if err := app.migrate(); err != nil {
					return err
				}
				fmt.Println("Migrations applied")
				return nil
			})
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(app *Application) error {
				sqlDB, err := app.db.DB()
				if err != nil {
					return err
				}
				if err := migrations.Down(sqlDB, steps); err != nil {
					return err
				}
				fmt.Println("Migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back, 0 for all")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(app *Application) error {
				sqlDB, err := app.db.DB()
				if err != nil {
					return err
				}
				v, dirty, err := migrations.Version(sqlDB)
				if err != nil {
					return err
				}
				fmt.Printf("version=%d dirty=%t\n", v, dirty)
				return nil
			})
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func newSeedCmd() *cobra.Command {
	var customers int
	cmd := &cobra.Command{
		Use:     "seed",
		Short:   "Load a demo customer snapshot and two campaigns",
		GroupID: "ops",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, err := currentActor()
			if err != nil {
				return err
			}
			return withApp(cmd, true, func(ctx context.Context, app *Application) error {
				result, err := seed.Run(ctx, app.repos.Customers, app.flows, customers, utils.UTCNow(), actor)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cmd.Flags().IntVar(&customers, "customers", 250, "number of customers to create")
	return cmd
}

func newDecideCmd() *cobra.Command {
	var scoreAll bool
	cmd := &cobra.Command{
		Use:     "decide <customer-id>",
		Short:   "Pick the next best action for a customer",
		GroupID: "decisions",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(ctx context.Context, app *Application) error {
				result, err := app.flows.Arbitration.Decide(ctx, customerID, scoreAll || app.config.Decision.ScoreAll)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	cmd.Flags().BoolVar(&scoreAll, "score-all", false, "persist every candidate, not only the winner")
	return cmd
}

func newEligibilityCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "eligibility <customer-id>",
		Short:   "Explain which campaigns a customer qualifies for",
		GroupID: "decisions",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			customerID, err := parseID(args[0], "customer")
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(ctx context.Context, app *Application) error {
				result, err := app.flows.Arbitration.Eligibility(ctx, customerID)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
}

func newTransitionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "transition <campaign-id> <status>",
		Short:   "Move a campaign to another lifecycle status",
		GroupID: "campaigns",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			campaignID, err := parseID(args[0], "campaign")
			if err != nil {
				return err
			}
			actor, err := currentActor()
			if err != nil {
				return err
			}
			return withApp(cmd, false, func(ctx context.Context, app *Application) error {
				result, err := app.flows.Lifecycle.Transition(ctx, campaignID, args[1], actor)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "reconcile",
		Short:   "Expire every campaign whose end date has passed",
		GroupID: "campaigns",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, app *Application) error {
				result, err := app.flows.Lifecycle.ReconcileAll(ctx)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
}

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "audit <entity-type> <entity-id>",
		Short:   "Print the audit trail of one entity, newest first",
		GroupID: "campaigns",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, app *Application) error {
				entries, err := app.flows.Audit.Query(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(entries)
			})
		},
	}
}

func newExportCmd() *cobra.Command {
	var (
		out        string
		since      time.Duration
		entityType string
		actor      string
		customerID uint
		campaignID uint
		winners    bool
	)

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Write audit entries or arbitration scores to a spreadsheet",
		GroupID: "ops",
	}
	cmd.PersistentFlags().StringVarP(&out, "out", "o", "", "output .xlsx path (required)")
	cmd.PersistentFlags().DurationVar(&since, "since", 0, "only rows newer than this, e.g. 72h")

	createdAfter := func() *time.Time {
		if since <= 0 {
			return nil
		}
		return utils.ToPtr(utils.UTCNow().Add(-since))
	}

	audit := &cobra.Command{
		Use:   "audit",
		Short: "Export the audit trail",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.AuditEntryFilter{CreatedAfter: createdAfter()}
			if entityType != "" {
				filter.EntityType = &entityType
			}
			if actor != "" {
				filter.ActorID = &actor
			}
			return withApp(cmd, false, func(ctx context.Context, app *Application) error {
				result, err := app.flows.Export.ExportAudit(ctx, filter, out)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	audit.Flags().StringVar(&entityType, "entity-type", "", "only entries of this entity type")
	audit.Flags().StringVar(&actor, "actor-id", "", "only entries made by this actor")

	scores := &cobra.Command{
		Use:   "scores",
		Short: "Export arbitration scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.ArbitrationScoreFilter{CreatedAfter: createdAfter()}
			if customerID > 0 {
				filter.CustomerID = &customerID
			}
			if campaignID > 0 {
				filter.CampaignID = &campaignID
			}
			if winners {
				filter.Winner = utils.ToPtr(true)
			}
			return withApp(cmd, false, func(ctx context.Context, app *Application) error {
				result, err := app.flows.Export.ExportScores(ctx, filter, out)
				if err != nil {
					return err
				}
				return printJSON(result)
			})
		},
	}
	scores.Flags().UintVar(&customerID, "customer", 0, "only scores of this customer")
	scores.Flags().UintVar(&campaignID, "campaign", 0, "only scores of this campaign")
	scores.Flags().BoolVar(&winners, "winners", false, "only winning rows")

	_ = cmd.MarkPersistentFlagRequired("out")
	cmd.AddCommand(audit, scores)
	return cmd
}
