package database_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/sentiment-ls/pkg/config"
	"github.com/wonny/sentiment-ls/pkg/database"
)

// Example applies the run-history schema when DATABASE_URL is set.
// Without it the backtest still runs; only run recording is skipped.
func Example() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("config: %v\n", err)
		return
	}

	db, err := database.New(cfg)
	if errors.Is(err, database.ErrNotConfigured) {
		fmt.Println("database disabled: runs are not recorded")
		return
	}
	if err != nil {
		fmt.Printf("connect: %v\n", err)
		return
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	applied, err := db.Migrate(ctx, "migrations")
	if err != nil {
		fmt.Printf("migrate: %v\n", err)
		return
	}
	fmt.Printf("migrations applied: %d, open conns: %d\n", len(applied), db.Stats().TotalConns)
}
