package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rentwise/rentwise/internal/observability/logger"
	"github.com/rentwise/rentwise/internal/occupancy"
	"github.com/rentwise/rentwise/internal/store/postgres"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

var errDivergent = errors.New("assignment divergences found")

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	switch {
	case occupancy.IsValidation(err):
		return 2
	case occupancy.IsNotFound(err):
		return 3
	case occupancy.IsConflict(err):
		return 4
	case occupancy.IsTransaction(err):
		return 5
	case errors.Is(err, errDivergent):
		return 6
	default:
		return 1
	}
}

// run wires the app, executes fn and prints its result as JSON
func run(cmd *cobra.Command, withService bool, fn func(ctx context.Context, a *app) (any, error)) (err error) {
	ctx := cmd.Context()
	a, err := newApp(ctx, withService)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(ctx); cerr != nil {
			a.logger.Warn("shutdown incomplete", logger.Error(cerr))
		}
	}()

	out, err := fn(ctx, a)
	if out != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(out); encErr != nil && err == nil {
			err = fmt.Errorf("failed to write output: %w", encErr)
		}
	}
	return err
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, false, func(ctx context.Context, a *app) (any, error) {
				if err := a.db.Migrate(ctx, postgres.InitialSchema); err != nil {
					return nil, fmt.Errorf("migration failed: %w", err)
				}
				a.logger.InfoContext(ctx, "schema migrated")
				return nil, nil
			})
		},
	}
}

// importFile is the document set accepted by the import command
type importFile struct {
	Tenants    []*occupancy.Tenant   `json:"tenants"`
	Properties []*occupancy.Property `json:"properties"`
}

func importCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Insert or replace tenants and properties from a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", file, err)
			}
			var in importFile
			if err := json.Unmarshal(data, &in); err != nil {
				return fmt.Errorf("failed to parse %s: %w", file, err)
			}
			return run(cmd, false, func(ctx context.Context, a *app) (any, error) {
				for _, t := range in.Tenants {
					if err := a.store.PutTenant(ctx, t); err != nil {
						return nil, err
					}
				}
				for _, p := range in.Properties {
					if err := a.store.PutProperty(ctx, p); err != nil {
						return nil, err
					}
				}
				return map[string]int{"tenants": len(in.Tenants), "properties": len(in.Properties)}, nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with tenants and properties")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func assignCmd() *cobra.Command {
	var (
		req                                occupancy.AssignRequest
		start, end, rent, deposit, tenancy string
	)
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Create an active lease and occupy the property or unit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			terms, err := parseTerms(start, end, rent, deposit, tenancy)
			if err != nil {
				return err
			}
			req.Terms = terms
			return run(cmd, true, func(ctx context.Context, a *app) (any, error) {
				res, err := a.service.Assign(ctx, req)
				if err != nil {
					return nil, err
				}
				return map[string]any{"lease": res.Lease, "property": res.Property}, nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.OwnerID, "owner", "", "owner ID")
	f.StringVar(&req.TenantID, "tenant", "", "tenant ID")
	f.StringVar(&req.PropertyID, "property", "", "property ID")
	f.StringVar(&req.UnitID, "unit", "", "unit ID or unit number (multi-unit properties)")
	f.StringVar(&start, "start", "", "lease start date (YYYY-MM-DD)")
	f.StringVar(&end, "end", "", "lease end date (YYYY-MM-DD)")
	f.StringVar(&rent, "rent", "", "monthly rent")
	f.StringVar(&deposit, "deposit", "", "security deposit")
	f.StringVar(&tenancy, "tenancy", "", "fixed_term or month_to_month")
	for _, name := range []string{"owner", "tenant", "property"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func unassignCmd() *cobra.Command {
	var req occupancy.UnassignRequest
	cmd := &cobra.Command{
		Use:   "unassign",
		Short: "Terminate the active lease and release the property or unit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, true, func(ctx context.Context, a *app) (any, error) {
				res, err := a.service.Unassign(ctx, req)
				if err != nil {
					return nil, err
				}
				return map[string]any{"lease": res.Lease, "property": res.Property}, nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.OwnerID, "owner", "", "owner ID")
	f.StringVar(&req.TenantID, "tenant", "", "tenant ID")
	f.StringVar(&req.PropertyID, "property", "", "property ID")
	f.StringVar(&req.UnitID, "unit", "", "unit ID or unit number")
	f.StringVar(&req.Reason, "reason", "", "termination reason")
	for _, name := range []string{"owner", "tenant", "property"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func forceUnassignCmd() *cobra.Command {
	var ownerID, tenantID string
	cmd := &cobra.Command{
		Use:   "force-unassign",
		Short: "Clear every pointer to a tenant and terminate all of its active leases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, true, func(ctx context.Context, a *app) (any, error) {
				summary, err := a.service.ForceUnassign(ctx, ownerID, tenantID)
				if err != nil {
					return nil, err
				}
				return summary, nil
			})
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "owner ID")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant ID")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func syncCmd() *cobra.Command {
	var ownerID string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Rewrite property pointers from the owner's active leases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, true, func(ctx context.Context, a *app) (any, error) {
				summary, err := a.service.SyncAssignments(ctx, ownerID)
				if err != nil {
					return nil, err
				}
				return summary, nil
			})
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "owner ID")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

type syncAllOutput struct {
	OwnerID string                   `json:"owner_id"`
	Summary *occupancy.RepairSummary `json:"summary,omitempty"`
	Error   string                   `json:"error,omitempty"`
}

func syncAllCmd() *cobra.Command {
	var (
		watch       bool
		interval    time.Duration
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "sync-all",
		Short: "Sync every owner, once or repeatedly",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, true, func(ctx context.Context, a *app) (any, error) {
				if concurrency <= 0 {
					concurrency = a.cfg.Occupancy.SyncConcurrency
				}
				if watch && interval <= 0 {
					interval = a.cfg.Occupancy.SyncInterval
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for {
					results, err := a.service.SyncAll(ctx, concurrency)
					if err != nil {
						return nil, err
					}
					out := make([]syncAllOutput, 0, len(results))
					for _, r := range results {
						o := syncAllOutput{OwnerID: r.OwnerID, Summary: r.Summary}
						if r.Err != nil {
							o.Error = r.Err.Error()
						}
						out = append(out, o)
					}
					if err := enc.Encode(out); err != nil {
						return nil, fmt.Errorf("failed to write output: %w", err)
					}
					if !watch {
						return nil, nil
					}
					select {
					case <-ctx.Done():
						a.logger.Info("sync loop stopped")
						return nil, nil
					case <-time.After(interval):
					}
				}
			})
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "repeat until interrupted")
	cmd.Flags().DurationVar(&interval, "interval", 0, "pause between runs with --watch (default from OCCUPANCY_SYNC_INTERVAL)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "owners synced in parallel (default from OCCUPANCY_SYNC_CONCURRENCY)")
	return cmd
}

func auditCmd() *cobra.Command {
	var ownerID string
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report divergences between leases and property pointers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, true, func(ctx context.Context, a *app) (any, error) {
				divergences, err := a.service.Auditor().CheckOwner(ctx, ownerID)
				if err != nil {
					return nil, err
				}
				if divergences == nil {
					divergences = []occupancy.Divergence{}
				}
				if len(divergences) > 0 {
					return divergences, errDivergent
				}
				return divergences, nil
			})
		},
	}
	cmd.Flags().StringVar(&ownerID, "owner", "", "owner ID")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func parseTerms(start, end, rent, deposit, tenancy string) (occupancy.LeaseTerms, error) {
	var terms occupancy.LeaseTerms
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return terms, &occupancy.ValidationError{Field: "start_date", Reason: err.Error()}
		}
		terms.StartDate = &t
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return terms, &occupancy.ValidationError{Field: "end_date", Reason: err.Error()}
		}
		terms.EndDate = &t
	}
	if rent != "" {
		d, err := decimal.NewFromString(rent)
		if err != nil {
			return terms, &occupancy.ValidationError{Field: "monthly_rent", Reason: err.Error()}
		}
		terms.MonthlyRent = &d
	}
	if deposit != "" {
		d, err := decimal.NewFromString(deposit)
		if err != nil {
			return terms, &occupancy.ValidationError{Field: "security_deposit", Reason: err.Error()}
		}
		terms.SecurityDeposit = &d
	}
	terms.TenancyType = occupancy.TenancyType(tenancy)
	return terms, nil
}
