package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
)

// CLI flags
var (
	dsn       = flag.String("dsn", os.Getenv("DATABASE_URL"), "Postgres DSN (default: env DATABASE_URL)")
	out       = flag.String("out", "raw_asset_dump.csv", "Output CSV path")
	assetType = flag.String("asset-type", "", "Only dump raw assets of this type")
)

var header = []string{
	"id", "name", "asset_type", "asset_id", "tags",
	"street_address", "municipality", "city", "state", "zip_code",
	"latitude", "longitude", "parcel_id", "residence",
	"available_transportation", "parent_location",
	"url", "email", "phone",
	"hours_of_operation", "holiday_hours_of_operation", "periodicity",
	"capacity", "wifi_network", "wifi_notes",
	"internet_access", "computers_available", "accessibility",
	"open_to_public", "child_friendly", "sensitive", "do_not_display",
	"localizability", "services", "hard_to_count_population",
	"data_source_name", "data_source_url",
	"organization_name", "organization_phone", "organization_email",
	"etl_notes", "primary_key_from_rocket", "synthesized_key",
	"geocoding_properties",
}

const baseQuery = `
	SELECT
		ra.id,
		ra.name,
		COALESCE((SELECT string_agg(t.name, '|') FROM assets.asset_types t
			JOIN assets.raw_asset_asset_types j ON j.asset_type_id = t.id
			WHERE j.raw_asset_id = ra.id), '') AS asset_type,
		ra.asset_id,
		COALESCE((SELECT string_agg(t.name, '|') FROM assets.tags t
			JOIN assets.raw_asset_tags j ON j.tag_id = t.id
			WHERE j.raw_asset_id = ra.id), '') AS tags,
		ra.street_address, ra.municipality, ra.city, ra.state, ra.zip_code,
		ra.latitude, ra.longitude, ra.parcel_id, ra.residence,
		ra.available_transportation, ra.parent_location,
		ra.url, ra.email, ra.phone,
		ra.hours_of_operation, ra.holiday_hours_of_operation, ra.periodicity,
		ra.capacity, ra.wifi_network, ra.wifi_notes,
		ra.internet_access, ra.computers_available, ra.accessibility,
		ra.open_to_public, ra.child_friendly, ra.sensitive, ra.do_not_display,
		ra.localizability,
		COALESCE((SELECT string_agg(s.name, '|') FROM assets.services s
			JOIN assets.raw_asset_services j ON j.provided_service_id = s.id
			WHERE j.raw_asset_id = ra.id), '') AS services,
		COALESCE((SELECT string_agg(p.name, '|') FROM assets.target_populations p
			JOIN assets.raw_asset_populations j ON j.target_population_id = p.id
			WHERE j.raw_asset_id = ra.id), '') AS hard_to_count_population,
		ds.name AS data_source_name, ds.url AS data_source_url,
		ra.organization_name, ra.organization_phone, ra.organization_email,
		ra.etl_notes, ra.primary_key_from_rocket, ra.synthesized_key,
		ra.geocoding_properties
	FROM assets.raw_assets ra
	LEFT JOIN assets.data_sources ds ON ds.id = ra.data_source_id
`

func main() {
	_ = godotenv.Load(".env.local")
	flag.Parse()
	if *dsn == "" {
		fatalf("--dsn not provided and DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	database, err := sql.Open("pgx", *dsn)
	if err != nil {
		fatalf("connect: %v", err)
	}
	defer database.Close()

	if err := database.PingContext(ctx); err != nil {
		fatalf("ping: %v", err)
	}

	query := baseQuery + " ORDER BY ra.id"
	args := []any{}
	if *assetType != "" {
		fmt.Printf("Dumping just the raw assets of type %s.\n", *assetType)
		query = baseQuery + `
			WHERE EXISTS (
				SELECT 1 FROM assets.asset_types t
				JOIN assets.raw_asset_asset_types j ON j.asset_type_id = t.id
				WHERE j.raw_asset_id = ra.id AND t.name = $1
			) ORDER BY ra.id`
		args = append(args, *assetType)
	} else {
		fmt.Println("Dumping all raw assets.")
	}

	rows, err := database.QueryContext(ctx, query, args...)
	if err != nil {
		fatalf("query: %v", err)
	}
	defer rows.Close()

	f, err := os.Create(*out)
	if err != nil {
		fatalf("create %s: %v", *out, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		fatalf("write header: %v", err)
	}

	written := 0
	cols := make([]any, len(header))
	ptrs := make([]any, len(header))
	for i := range cols {
		ptrs[i] = &cols[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			fatalf("scan: %v", err)
		}
		record := make([]string, len(cols))
		for i, v := range cols {
			record[i] = cellString(v)
		}
		if err := w.Write(record); err != nil {
			fatalf("write row: %v", err)
		}
		written++
		if written%2000 == 0 {
			fmt.Printf("Wrote %d raw assets so far.\n", written)
		}
	}
	if err := rows.Err(); err != nil {
		fatalf("iterate: %v", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		fatalf("flush: %v", err)
	}
	fmt.Printf("Wrote %d raw assets to %s\n", written, *out)
}

func cellString(v any) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case []byte:
		return string(x)
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
