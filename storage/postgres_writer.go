package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"cararth-ingest/models"
)

// PostgresWriter persists certified listings to PostgreSQL.
type PostgresWriter struct {
	db *sql.DB
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema
// migrations, and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(dsn string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db}
	if err := pw.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS certified_listings (
			id            VARCHAR(32)  PRIMARY KEY,
			title         TEXT         NOT NULL,
			brand         VARCHAR(50)  NOT NULL,
			model         VARCHAR(100) NOT NULL DEFAULT 'Unknown',
			year          INT          NOT NULL DEFAULT 0,
			price         BIGINT       NOT NULL DEFAULT 0,
			mileage       INT          NOT NULL DEFAULT 0,
			location      TEXT         NOT NULL DEFAULT '',
			city          VARCHAR(100) NOT NULL DEFAULT '',
			fuel_type     VARCHAR(30)  NOT NULL DEFAULT 'Unknown',
			transmission  VARCHAR(30)  NOT NULL DEFAULT 'Unknown',
			features      TEXT[]       NOT NULL DEFAULT '{}',
			image_urls    TEXT[]       NOT NULL DEFAULT '{}',
			source        VARCHAR(100) NOT NULL,
			source_url    TEXT         UNIQUE NOT NULL,
			status        VARCHAR(20)  NOT NULL,
			seller_type   VARCHAR(20)  NOT NULL DEFAULT 'dealer',
			trust_score   NUMERIC(5,2) NOT NULL DEFAULT 0,
			trust_note    TEXT         NOT NULL DEFAULT '',
			extracted_at  TIMESTAMPTZ  NOT NULL,
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_certified_brand  ON certified_listings(brand);
		CREATE INDEX IF NOT EXISTS idx_certified_city   ON certified_listings(city);
		CREATE INDEX IF NOT EXISTS idx_certified_price  ON certified_listings(price);
		CREATE INDEX IF NOT EXISTS idx_certified_status ON certified_listings(status);
	`)
	return err
}

// Store upserts one listing keyed by its deterministic ID. Re-running
// ingestion over the same detail URL updates the row in place instead
// of creating a duplicate.
func (pw *PostgresWriter) Store(ctx context.Context, l *models.Listing) error {
	_, err := pw.db.ExecContext(ctx, `
		INSERT INTO certified_listings
			(id, title, brand, model, year, price, mileage, location, city,
			 fuel_type, transmission, features, image_urls, source, source_url,
			 status, seller_type, trust_score, trust_note, extracted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			mileage = EXCLUDED.mileage,
			features = EXCLUDED.features,
			image_urls = EXCLUDED.image_urls,
			status = EXCLUDED.status,
			trust_score = EXCLUDED.trust_score,
			trust_note = EXCLUDED.trust_note,
			extracted_at = EXCLUDED.extracted_at
	`,
		l.ID, l.Title, l.Brand, l.Model, l.Year, l.Price, l.Mileage,
		l.Location, l.City, l.FuelType, l.Transmission,
		pq.Array(l.Features), pq.Array(l.ImagePublicURLs),
		l.Source, l.SourceURL, l.VerificationStatus, l.SellerType,
		l.TrustScore, l.TrustExplanation, l.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: store %s: %w", l.ID, err)
	}
	return nil
}

// FetchCertified retrieves stored certified listings — used by the run
// report for price statistics.
func (pw *PostgresWriter) FetchCertified() ([]*models.Listing, error) {
	rows, err := pw.db.Query(`
		SELECT id, title, brand, model, year, price, mileage, location, city,
		       fuel_type, transmission, features, image_urls, source, source_url,
		       status, seller_type, trust_score, trust_note, extracted_at, created_at
		FROM certified_listings
		WHERE status = $1
		ORDER BY created_at DESC
	`, models.StatusCertified)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch certified: %w", err)
	}
	defer rows.Close()

	var listings []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		var features, images pq.StringArray
		if err := rows.Scan(
			&l.ID, &l.Title, &l.Brand, &l.Model, &l.Year, &l.Price, &l.Mileage,
			&l.Location, &l.City, &l.FuelType, &l.Transmission,
			&features, &images, &l.Source, &l.SourceURL,
			&l.VerificationStatus, &l.SellerType, &l.TrustScore,
			&l.TrustExplanation, &l.ExtractedAt, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		l.Features = features
		l.ImagePublicURLs = images
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

var _ ListingSink = (*PostgresWriter)(nil)
