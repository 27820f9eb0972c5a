package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/churn-insight/dashboard/internal/storage/models"
	"github.com/churn-insight/dashboard/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		features TEXT NOT NULL,
		department TEXT NOT NULL,
		label INTEGER NOT NULL,
		probability REAL,
		baseline REAL NOT NULL,
		output REAL NOT NULL,
		top_feature TEXT,
		top_contribution REAL,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
	CREATE INDEX IF NOT EXISTS idx_predictions_label ON predictions(label);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertPrediction(ctx context.Context, record *models.PredictionRecord) error {
	featuresJSON, err := json.Marshal(record.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	var probability sql.NullFloat64
	if record.Probability != nil {
		probability = sql.NullFloat64{Float64: *record.Probability, Valid: true}
	}

	query := `
		INSERT INTO predictions (id, features, department, label, probability, baseline, output,
			top_feature, top_contribution, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.ExecContext(ctx,
		query,
		record.ID,
		string(featuresJSON),
		record.Department,
		record.Label,
		probability,
		record.Baseline,
		record.Output,
		record.TopFeature,
		record.TopContribution,
		record.LatencyMS,
		record.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	logger.Debug("Prediction recorded",
		zap.String("prediction_id", record.ID),
		zap.Int("label", record.Label),
	)
	return nil
}

func (c *Client) RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	query := `
		SELECT id, features, department, label, probability, baseline, output,
			top_feature, top_contribution, latency_ms, created_at
		FROM predictions
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions: %w", err)
	}
	defer rows.Close()

	records := make([]models.PredictionRecord, 0, limit)
	for rows.Next() {
		var r models.PredictionRecord
		var featuresJSON string
		var probability sql.NullFloat64
		var topFeature sql.NullString
		var topContribution sql.NullFloat64
		var createdAt int64

		err := rows.Scan(&r.ID, &featuresJSON, &r.Department, &r.Label, &probability,
			&r.Baseline, &r.Output, &topFeature, &topContribution, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if err := json.Unmarshal([]byte(featuresJSON), &r.Features); err != nil {
			return nil, fmt.Errorf("failed to unmarshal features for %s: %w", r.ID, err)
		}
		if probability.Valid {
			p := probability.Float64
			r.Probability = &p
		}
		r.TopFeature = topFeature.String
		r.TopContribution = topContribution.Float64
		r.CreatedAt = time.Unix(0, createdAt)
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate predictions: %w", err)
	}
	return records, nil
}

func (c *Client) CountByLabel(ctx context.Context) (map[int]int, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT label, COUNT(*) FROM predictions GROUP BY label`)
	if err != nil {
		return nil, fmt.Errorf("failed to count predictions: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var label, n int
		if err := rows.Scan(&label, &n); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts[label] = n
	}
	return counts, rows.Err()
}
