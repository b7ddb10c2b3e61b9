package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rshade/carbonledger/internal/factors"
	"github.com/rshade/carbonledger/internal/logging"
)

// defaultFactors is the starter library used by Seed: common stationary
// fuel, grid electricity, road transport, and waste factors with global
// provenance.
//
//nolint:gochecknoglobals // Fixed seed data.
var defaultFactors = []FactorRecord{
	{Scope: "scope1", ScopeCategory: "stationary_combustion", Activity: "diesel", Unit: "l", Region: "global", Year: 2024, Value: 2.68, Source: "seed-library", Version: "1.0.0", Active: true},
	{Scope: "scope1", ScopeCategory: "stationary_combustion", Activity: "natural gas", Unit: "kwh", Region: "global", Year: 2024, Value: 0.18, Source: "seed-library", Version: "1.0.0", Active: true},
	{Scope: "scope2", ScopeCategory: "purchased_electricity", Activity: "electricity", Unit: "kwh", Region: "global", Year: 2024, Value: 0.4, Source: "seed-library", Version: "1.0.0", Active: true},
	{Scope: "scope3", ScopeCategory: "cat4_upstream_transport", Activity: "road freight", Unit: "km", Region: "global", Year: 2024, Value: 0.12, Source: "seed-library", Version: "1.0.0", Active: true},
	{Scope: "scope3", ScopeCategory: "cat5_waste_generated", Activity: "mixed waste", Unit: "kg", Region: "global", Year: 2024, Value: 0.45, Source: "seed-library", Version: "1.0.0", Active: true},
}

// defaultCategories is the GHG Protocol scope-category taxonomy.
//
//nolint:gochecknoglobals // Fixed seed data.
var defaultCategories = []ScopeCategory{
	{Scope: "scope1", Key: "stationary_combustion", Label: "Stationary Combustion", Description: "Fuel burned in owned or controlled equipment."},
	{Scope: "scope1", Key: "mobile_combustion", Label: "Mobile Combustion", Description: "Fuel burned in owned or controlled vehicles."},
	{Scope: "scope1", Key: "process_emissions", Label: "Process Emissions", Description: "Direct process emissions from industrial operations."},
	{Scope: "scope1", Key: "fugitive_emissions", Label: "Fugitive Emissions", Description: "Leakage of refrigerants and other gases."},
	{Scope: "scope2", Key: "purchased_electricity", Label: "Purchased Electricity", Description: "Indirect emissions from purchased electricity."},
	{Scope: "scope2", Key: "purchased_steam", Label: "Purchased Steam", Description: "Indirect emissions from imported steam."},
	{Scope: "scope2", Key: "purchased_heating", Label: "Purchased Heating", Description: "Indirect emissions from district heating."},
	{Scope: "scope2", Key: "purchased_cooling", Label: "Purchased Cooling", Description: "Indirect emissions from district cooling."},
	{Scope: "scope3", Key: "cat1_purchased_goods_services", Label: "Category 1 Purchased Goods and Services", Description: "Upstream emissions from purchased goods and services."},
	{Scope: "scope3", Key: "cat2_capital_goods", Label: "Category 2 Capital Goods", Description: "Upstream emissions from capital goods."},
	{Scope: "scope3", Key: "cat3_fuel_energy_related", Label: "Category 3 Fuel and Energy Related", Description: "Fuel and energy activities not included in Scope 1/2."},
	{Scope: "scope3", Key: "cat4_upstream_transport", Label: "Category 4 Upstream Transportation", Description: "Upstream transport and distribution."},
	{Scope: "scope3", Key: "cat5_waste_generated", Label: "Category 5 Waste Generated", Description: "Upstream waste treatment from operations."},
	{Scope: "scope3", Key: "cat6_business_travel", Label: "Category 6 Business Travel", Description: "Business travel in non-owned assets."},
	{Scope: "scope3", Key: "cat7_employee_commuting", Label: "Category 7 Employee Commuting", Description: "Commuting and remote work emissions."},
	{Scope: "scope3", Key: "cat8_upstream_leased_assets", Label: "Category 8 Upstream Leased Assets", Description: "Leased assets not in Scope 1/2."},
	{Scope: "scope3", Key: "cat9_downstream_transport", Label: "Category 9 Downstream Transportation", Description: "Downstream transport and distribution."},
	{Scope: "scope3", Key: "cat10_processing_sold_products", Label: "Category 10 Processing of Sold Products", Description: "Processing of intermediate sold products."},
	{Scope: "scope3", Key: "cat11_use_sold_products", Label: "Category 11 Use of Sold Products", Description: "Use-phase emissions of sold products."},
	{Scope: "scope3", Key: "cat12_end_of_life", Label: "Category 12 End-of-Life Treatment", Description: "End-of-life treatment of sold products."},
	{Scope: "scope3", Key: "cat13_downstream_leased_assets", Label: "Category 13 Downstream Leased Assets", Description: "Downstream leased assets."},
	{Scope: "scope3", Key: "cat14_franchises", Label: "Category 14 Franchises", Description: "Franchise operation emissions."},
	{Scope: "scope3", Key: "cat15_investments", Label: "Category 15 Investments", Description: "Financed and investment-related emissions."},
}

// Seed populates an empty library with the default factors and the
// scope-category taxonomy. Seeding a non-empty library is a no-op so
// user edits are never clobbered.
func (s *Store) Seed(ctx context.Context) error {
	log := logging.FromContext(ctx)

	n, err := s.Count(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Debug().Str("component", "store").Int64("records", n).Msg("library not empty, skipping seed")
		return nil
	}

	records := make([]FactorRecord, len(defaultFactors))
	copy(records, defaultFactors)
	if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
		return fmt.Errorf("seeding factor library: %w", err)
	}

	categories := make([]ScopeCategory, len(defaultCategories))
	copy(categories, defaultCategories)
	if err := s.db.WithContext(ctx).Create(&categories).Error; err != nil {
		return fmt.Errorf("seeding scope categories: %w", err)
	}

	log.Info().
		Str("component", "store").
		Int("factors", len(records)).
		Int("categories", len(categories)).
		Msg("factor library seeded")
	return nil
}

// ImportCSV loads factor records from CSV. Expected header columns:
// activity, unit, emission_factor, and optionally scope, scope_category,
// region, year, source, version, active. Rows with a missing activity,
// unit, or non-numeric emission_factor are skipped and counted as
// rejected.
func (s *Store) ImportCSV(ctx context.Context, r io.Reader) (imported, rejected int, err error) {
	log := logging.FromContext(ctx)

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("reading factor CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"activity", "unit", "emission_factor"} {
		if _, ok := col[required]; !ok {
			return 0, 0, fmt.Errorf("factor CSV missing column %q", required)
		}
	}

	field := func(row []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	var records []FactorRecord
	for {
		row, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return 0, 0, fmt.Errorf("reading factor CSV: %w", readErr)
		}

		activity := factors.NormalizeKey(field(row, "activity"))
		unit := field(row, "unit")
		value, parseErr := strconv.ParseFloat(field(row, "emission_factor"), 64)
		if activity == "" || unit == "" || parseErr != nil {
			rejected++
			continue
		}

		year := 0
		if y := field(row, "year"); y != "" {
			year, _ = strconv.Atoi(y)
		}
		active := true
		if a := field(row, "active"); a != "" {
			active = a == "1" || strings.EqualFold(a, "true")
		}

		rec := FactorRecord{
			Scope:         strings.ToLower(field(row, "scope")),
			ScopeCategory: strings.ToLower(field(row, "scope_category")),
			Activity:      activity,
			Unit:          unit,
			Region:        factors.NormalizeKey(field(row, "region")),
			Year:          year,
			Value:         value,
			Source:        field(row, "source"),
			Version:       field(row, "version"),
			Active:        active,
		}
		if rec.Region == "" {
			rec.Region = factors.DefaultRegion
		}
		if rec.Source == "" {
			rec.Source = "unspecified"
		}
		if rec.Version == "" {
			rec.Version = "1.0.0"
		}
		records = append(records, rec)
	}

	if len(records) > 0 {
		if err := s.db.WithContext(ctx).Create(&records).Error; err != nil {
			return 0, rejected, fmt.Errorf("importing factor records: %w", err)
		}
	}

	log.Info().
		Str("component", "store").
		Int("imported", len(records)).
		Int("rejected", rejected).
		Msg("factor CSV imported")
	return len(records), rejected, nil
}
