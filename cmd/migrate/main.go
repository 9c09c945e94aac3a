// Command migrate applies the raw-SQL migration files in migrations/ in
// lexical order. Each file runs in its own transaction; every statement
// is written to be re-runnable (IF NOT EXISTS), so replaying the whole
// directory is safe.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/DimaVasiliu/timrx-3d-print-sub000/internal/config"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding .sql migration files")
	flag.Parse()

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	db, err := sqlx.Connect("postgres", cfg.Postgres.GetDSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	entries, err := os.ReadDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read migrations dir: %v\n", err)
		os.Exit(1)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		sqlBytes, err := os.ReadFile(filepath.Join(*dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", name, err)
			os.Exit(1)
		}

		tx, err := db.Begin()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to begin transaction for %s: %v\n", name, err)
			os.Exit(1)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			fmt.Fprintf(os.Stderr, "migration %s failed: %v\n", name, err)
			os.Exit(1)
		}
		if err := tx.Commit(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to commit %s: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("applied %s\n", name)
	}
}
