// cmd/goschedule-migrate/main.go
package main

import (
	"fmt"
	"os"

	"github.com/ignatij/goschedule/internal/config"
	internal_storage "github.com/ignatij/goschedule/internal/storage"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "goschedule-migrate"}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		driver, dsn := connection(cmd)
		if err := internal_storage.Migrate(driver, dsn); err != nil {
			fmt.Printf("Failed to apply migrations: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations applied successfully")
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert all database migrations",
	Run: func(cmd *cobra.Command, args []string) {
		driver, dsn := connection(cmd)
		if err := internal_storage.MigrateDown(driver, dsn); err != nil {
			fmt.Printf("Failed to revert migrations: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Migrations reverted successfully")
	},
}

// connection resolves the target database from the flags, falling back to the config
// file, GOSCHEDULE_* and DB_* env vars.
func connection(cmd *cobra.Command) (string, string) {
	cfg, err := config.Load(config.New(""))
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	driver, dsn := cfg.DB.Driver, cfg.DB.DSN
	if d, _ := cmd.Flags().GetString("driver"); d != "" {
		driver = d
	}
	if connStr, _ := cmd.Flags().GetString("db"); connStr != "" {
		dsn = connStr
	}
	return driver, dsn
}

func main() {
	for _, c := range []*cobra.Command{migrateCmd, downCmd} {
		c.Flags().String("driver", "", "Database driver: sqlite or postgres (default from config)")
		c.Flags().String("db", "", "Database connection string (optional if configured)")
		rootCmd.AddCommand(c)
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
