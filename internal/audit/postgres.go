package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"health-risk-workers/internal/common/database"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/models"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS risk_assessments (
	id              UUID PRIMARY KEY,
	source          TEXT NOT NULL,
	correlation_key TEXT,
	risk_level      TEXT NOT NULL,
	rule_level      TEXT NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	model_available BOOLEAN NOT NULL,
	model_version   TEXT,
	vitals          JSONB NOT NULL,
	result          JSONB NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL
)`

const createIndexSQL = `
CREATE INDEX IF NOT EXISTS risk_assessments_created_at_idx
	ON risk_assessments (created_at DESC)`

// ErrNotFound is returned by Get for unknown IDs.
var ErrNotFound = stderrors.New("assessment not found")

// PostgresStore writes assessments to the risk_assessments table.
type PostgresStore struct {
	db *database.PostgresClient
}

func NewPostgresStore(db *database.PostgresClient) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Name() string {
	return "postgres"
}

// EnsureSchema creates the table and index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{createTableSQL, createIndexSQL} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.NewDatabaseConnectionFailedError(fmt.Errorf("ensure schema: %w", err))
	}
	return nil
}

// Purge deletes assessments recorded before cutoff and returns the count.
func (s *PostgresStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(ctx, `DELETE FROM risk_assessments WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, errors.NewDatabaseConnectionFailedError(fmt.Errorf("purge: %w", err))
	}
	return res.RowsAffected()
}

func (s *PostgresStore) Record(ctx context.Context, rec Record) error {
	doc, err := rec.document()
	if err != nil {
		return errors.NewAssessmentRecordFailedError(s.Name(), err)
	}
	vitals, err := json.Marshal(doc.Vitals)
	if err != nil {
		return errors.NewAssessmentRecordFailedError(s.Name(), err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO risk_assessments (
			id, source, correlation_key, risk_level, rule_level, confidence,
			model_available, model_version, vitals, result, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		doc.AssessmentID,
		doc.Source,
		nullString(doc.CorrelationKey),
		string(doc.RiskLevel),
		string(doc.RuleLevel),
		doc.Confidence,
		doc.ModelAvailable,
		nullString(doc.ModelVersion),
		vitals,
		[]byte(doc.Result),
		doc.CreatedAt,
	)
	if err != nil {
		return errors.NewAssessmentRecordFailedError(s.Name(), err)
	}
	return nil
}

// StoredAssessment is a row read back from risk_assessments.
type StoredAssessment struct {
	ID             string            `json:"assessment_id"`
	Source         string            `json:"source"`
	CorrelationKey string            `json:"correlation_key,omitempty"`
	ModelAvailable bool              `json:"model_available"`
	ModelVersion   string            `json:"model_version,omitempty"`
	Assessment     models.Assessment `json:"assessment"`
	CreatedAt      time.Time         `json:"timestamp"`
}

// Get loads one assessment by ID.
func (s *PostgresStore) Get(ctx context.Context, id string) (*StoredAssessment, error) {
	var (
		out          StoredAssessment
		correlation  sql.NullString
		modelVersion sql.NullString
		result       []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT id, source, correlation_key, model_available, model_version, result, created_at
		FROM risk_assessments
		WHERE id = $1`, id).Scan(
		&out.ID, &out.Source, &correlation, &out.ModelAvailable, &modelVersion, &result, &out.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}
	if err := json.Unmarshal(result, &out.Assessment); err != nil {
		return nil, fmt.Errorf("decode stored assessment %s: %w", id, err)
	}
	out.CorrelationKey = correlation.String
	out.ModelVersion = modelVersion.String
	return &out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
