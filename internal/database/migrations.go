package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/jackc/pgx/v5"
)

// migrationLockID serialises migration runs across API replicas starting at
// the same time.
const migrationLockID = 7_320_114

// RunMigrations applies the *.sql files under dir that schema_migrations does
// not list yet, in lexical order, one transaction per file.
func RunMigrations(ctx context.Context, db DB, dir string) error {
	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return fmt.Errorf("glob migration files: %w", err)
	}
	slices.Sort(files)

	rows, err := db.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	applied, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("scan applied migrations: %w", err)
	}

	for _, f := range files {
		version := filepath.Base(f)
		if slices.Contains(applied, version) {
			continue
		}

		sql, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		var ran bool
		err = InTx(ctx, db, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
				return fmt.Errorf("lock migrations: %w", err)
			}
			// Another replica may have applied it while we waited for the lock.
			tag, err := tx.Exec(ctx,
				"INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING", version)
			if err != nil {
				return fmt.Errorf("record migration %s: %w", version, err)
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			if _, err := tx.Exec(ctx, string(sql)); err != nil {
				return fmt.Errorf("execute migration %s: %w", version, err)
			}
			ran = true
			return nil
		})
		if err != nil {
			return err
		}
		if ran {
			slog.Info("applied migration", "version", version)
		}
	}

	return nil
}
