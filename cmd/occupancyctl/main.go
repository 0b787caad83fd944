// Copyright 2026 The Rentwise Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command occupancyctl runs tenant assignment operations and maintenance
// jobs against the Rentwise database.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rentwise/rentwise/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if _, err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "occupancyctl",
		Short:         "Tenant to property assignment engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		migrateCmd(),
		importCmd(),
		assignCmd(),
		unassignCmd(),
		forceUnassignCmd(),
		syncCmd(),
		syncAllCmd(),
		auditCmd(),
	)
	return root
}
