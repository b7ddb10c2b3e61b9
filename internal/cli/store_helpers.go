package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonledger/internal/config"
	"github.com/rshade/carbonledger/internal/engine"
	"github.com/rshade/carbonledger/internal/factors"
	"github.com/rshade/carbonledger/internal/factors/store"
	"github.com/rshade/carbonledger/internal/logging"
)

// openStore opens the factor library selected by the --factors-db flag
// or the configuration, seeding the default factors on first use.
func openStore(ctx context.Context, cmd *cobra.Command) (*store.Store, error) {
	path, _ := cmd.Flags().GetString("factors-db")
	if path == "" {
		var err error
		path, err = config.GetGlobalConfig().FactorsDBPath()
		if err != nil {
			return nil, err
		}
		if err = config.EnsureConfigDir(); err != nil {
			return nil, err
		}
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening factor library: %w", err)
	}

	if err := st.Seed(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seeding factor library: %w", err)
	}

	log := logging.FromContext(ctx)
	log.Debug().Ctx(ctx).Str("component", "cli").Str("factors_db", path).Msg("factor library opened")
	return st, nil
}

// resolutionContext builds the engine context from flags falling back to
// configured defaults, loading the active snapshot from the store.
func resolutionContext(ctx context.Context, cmd *cobra.Command, st *store.Store) (engine.Context, error) {
	cfg := config.GetGlobalConfig()

	region, _ := cmd.Flags().GetString("region")
	if region == "" {
		region = cfg.Factors.Region
	}
	if region == "" {
		region = factors.DefaultRegion
	}

	year, _ := cmd.Flags().GetInt("year")
	if year == 0 {
		year = cfg.Factors.Year
	}

	snapshot, err := st.ListActive(ctx, region)
	if err != nil {
		return engine.Context{}, fmt.Errorf("loading factor snapshot: %w", err)
	}

	return engine.Context{Region: region, Year: year, Snapshot: snapshot}, nil
}
