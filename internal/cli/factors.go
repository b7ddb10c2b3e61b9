package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshade/carbonledger/internal/logging"
	"github.com/rshade/carbonledger/internal/report"
)

// NewFactorsSeedCmd creates the "factors seed" command.
func NewFactorsSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the factor library with default factors",
		Long:  "Create the factor library if needed and load the default emission factors and GHG Protocol scope categories. No-op when the library already has factors.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			count, err := st.Count(ctx)
			if err != nil {
				return fmt.Errorf("counting factors: %w", err)
			}
			cmd.Printf("Factor library ready: %s factor(s)\n", report.FormatNumber(count))
			return nil
		},
	}
}

// NewFactorsListCmd creates the "factors list" command.
func NewFactorsListCmd() *cobra.Command {
	var (
		region string
		year   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active emission factors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			snapshot, err := st.ListActive(ctx, region)
			if err != nil {
				return fmt.Errorf("listing factors: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACTIVITY\tUNIT\tVALUE\tSCOPE\tREGION\tYEAR\tSOURCE\tVERSION")
			for _, rec := range snapshot.Records() {
				if year > 0 && rec.Year > year {
					continue
				}
				fmt.Fprintf(tw, "%s\t%s\t%.6f\t%s\t%s\t%d\t%s\t%s\n",
					rec.Activity, rec.Unit, rec.Value, rec.Scope, rec.Region, rec.Year, rec.Source, rec.Version)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "Filter by region (default: all)")
	cmd.Flags().IntVar(&year, "year", 0, "Only factors valid up to this year (0 = all)")
	return cmd
}

// NewFactorsImportCmd creates the "factors import" command.
func NewFactorsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <csv-file>",
		Short: "Import emission factors from a CSV file",
		Long: `Import factors from a CSV with columns: activity, unit,
emission_factor, and optionally scope, scope_category, region, year,
source, version, active. Rows with missing required fields or
non-numeric factors are rejected.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening factor file: %w", err)
			}
			defer f.Close()

			st, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			imported, rejected, err := st.ImportCSV(ctx, f)
			if err != nil {
				return fmt.Errorf("importing factors: %w", err)
			}

			log.Info().Ctx(ctx).Str("operation", "factors_import").
				Int("imported", imported).Int("rejected", rejected).Msg("factor import complete")
			cmd.Printf("Imported %d factor(s), rejected %d row(s)\n", imported, rejected)
			return nil
		},
	}
}

// NewFactorsCategoriesCmd creates the "factors categories" command.
func NewFactorsCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List GHG Protocol scope categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			st, err := openStore(ctx, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			categories, err := st.Categories(ctx)
			if err != nil {
				return fmt.Errorf("listing categories: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCOPE\tCATEGORY\tDESCRIPTION")
			for _, cat := range categories {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", cat.Scope, cat.Key, cat.Description)
			}
			return tw.Flush()
		},
	}
}
