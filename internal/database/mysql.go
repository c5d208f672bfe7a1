package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/zikalyze/core/pkg/config"
	"github.com/zikalyze/core/pkg/models"
)

// MySQLClient handles the feedback audit table. Redis owns the live
// learning state; MySQL keeps the durable trail of user feedback.
type MySQLClient struct {
	db     *sql.DB
	logger *logrus.Entry
	cfg    *config.MySQLConfig
}

// NewMySQLClient creates a new MySQL client
func NewMySQLClient(cfg *config.MySQLConfig, logger *logrus.Logger) (*MySQLClient, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	logger.WithField("dsn", fmt.Sprintf("%s:***@tcp(%s:%d)/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)).Debug("Connecting to MySQL")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &MySQLClient{
		db:     db,
		logger: logger.WithField("component", "mysql"),
		cfg:    cfg,
	}, nil
}

// Close closes the database connection
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// Health checks database health
func (mc *MySQLClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return mc.db.PingContext(ctx)
}

// Migrate creates the schema. Idempotent; run on startup and by the
// migrate command.
func (mc *MySQLClient) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS feedback_events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			result_id VARCHAR(36) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			predicted_bias VARCHAR(10) NOT NULL,
			actual_outcome VARCHAR(10) NOT NULL,
			submitted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_feedback_symbol (symbol),
			INDEX idx_feedback_result (result_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := mc.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to run migration: %w", err)
	}
	mc.logger.Info("Schema migration complete")
	return nil
}

// InsertFeedback appends one feedback event to the audit trail.
func (mc *MySQLClient) InsertFeedback(ctx context.Context, event *models.FeedbackEvent) error {
	query := `
		INSERT INTO feedback_events (result_id, symbol, predicted_bias, actual_outcome, submitted_at)
		VALUES (?, ?, ?, ?, ?)
	`
	submitted := event.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}

	if _, err := mc.db.ExecContext(ctx, query,
		event.ResultID, event.Symbol, string(event.PredictedBias), string(event.ActualOutcome), submitted,
	); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// ListFeedback returns the most recent feedback events for a symbol.
func (mc *MySQLClient) ListFeedback(ctx context.Context, symbol string, limit int) ([]*models.FeedbackEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT result_id, symbol, predicted_bias, actual_outcome, submitted_at
		FROM feedback_events
		WHERE symbol = ?
		ORDER BY submitted_at DESC
		LIMIT ?
	`

	rows, err := mc.db.QueryContext(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var events []*models.FeedbackEvent
	for rows.Next() {
		var ev models.FeedbackEvent
		var predicted, actual string
		if err := rows.Scan(&ev.ResultID, &ev.Symbol, &predicted, &actual, &ev.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		ev.PredictedBias = models.Direction(predicted)
		ev.ActualOutcome = models.Direction(actual)
		events = append(events, &ev)
	}
	return events, rows.Err()
}

// WipeFeedback deletes all feedback rows for a symbol, the durable
// half of a user data-wipe request.
func (mc *MySQLClient) WipeFeedback(ctx context.Context, symbol string) error {
	result, err := mc.db.ExecContext(ctx, `DELETE FROM feedback_events WHERE symbol = ?`, symbol)
	if err != nil {
		return fmt.Errorf("failed to wipe feedback: %w", err)
	}

	if n, err := result.RowsAffected(); err == nil {
		mc.logger.WithFields(logrus.Fields{
			"symbol": symbol,
			"rows":   n,
		}).Info("Wiped feedback audit rows")
	}
	return nil
}
