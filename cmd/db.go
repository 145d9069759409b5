package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/booking-risk/internal/config"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the scored bookings store",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return cfg.Validate(config.ModeQuery)
	},
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the bookings table",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		zap.L().Info("store migrated", zap.String("driver", cfg.Store.Driver))
		return nil
	},
}

var dbCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete all but the newest row per booking id",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		res, err := st.Cleanup(ctx)
		if err != nil {
			return err
		}
		if res.Deleted > 0 {
			invalidateCache(ctx)
		}
		return printJSON(os.Stdout, res)
	},
}

var dbClearYes bool

var dbClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored booking",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !dbClearYes {
			return eris.New("refusing to clear the store without --yes")
		}
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		n, err := st.Clear(ctx)
		if err != nil {
			return err
		}
		invalidateCache(ctx)
		zap.L().Info("store cleared", zap.Int("deleted", n))
		return printJSON(os.Stdout, map[string]int{"deleted": n})
	},
}

var dbOptionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Print the distinct lanes, ports and years available to filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		opts, err := st.FilterOptions(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, opts)
	},
}

func init() {
	dbClearCmd.Flags().BoolVar(&dbClearYes, "yes", false, "confirm deletion of all rows")
	dbCmd.AddCommand(dbMigrateCmd, dbCleanupCmd, dbClearCmd, dbOptionsCmd)
	rootCmd.AddCommand(dbCmd)
}
