package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS agent_profiles (
		user_id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS assigned_outlets (
		assigned_outlet_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		outlet_name TEXT NOT NULL DEFAULT '',
		outlet_type TEXT NOT NULL DEFAULT '',
		community TEXT NOT NULL DEFAULT '',
		assembly TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		contact_name TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		business_phone TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (assigned_outlet_id, agent_id)
	)`,
	`CREATE INDEX IF NOT EXISTS assigned_outlets_agent_idx ON assigned_outlets (agent_id)`,
	`CREATE TABLE IF NOT EXISTS captured_outlets (
		captured_id TEXT PRIMARY KEY,
		assigned_outlet_id TEXT NOT NULL,
		agent_id TEXT NOT NULL,
		agent_user_id TEXT NOT NULL DEFAULT '',
		outlet_name TEXT NOT NULL DEFAULT '',
		outlet_type TEXT NOT NULL DEFAULT '',
		community TEXT NOT NULL DEFAULT '',
		assembly TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		longitude DOUBLE PRECISION NOT NULL DEFAULT 0,
		contact_name TEXT NOT NULL DEFAULT '',
		contact_phone TEXT NOT NULL DEFAULT '',
		business_phone TEXT NOT NULL DEFAULT '',
		outlet_front_image TEXT,
		outlet_side_image TEXT,
		telescopic_image TEXT,
		product_names TEXT[] NOT NULL DEFAULT '{}',
		product_images TEXT[] NOT NULL DEFAULT '{}',
		headerboard BOOLEAN NOT NULL DEFAULT FALSE,
		headerboard_agreement BOOLEAN NOT NULL DEFAULT FALSE,
		painted BOOLEAN NOT NULL DEFAULT FALSE,
		painted_agreement BOOLEAN NOT NULL DEFAULT FALSE,
		telescopic BOOLEAN NOT NULL DEFAULT FALSE,
		telescopic_agreement BOOLEAN NOT NULL DEFAULT FALSE,
		number_of_stylists INTEGER NOT NULL DEFAULT 0,
		partnership_agreement_date DATE,
		partnership_expiring_date DATE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (assigned_outlet_id, agent_id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		sort_order INTEGER
	)`,
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
