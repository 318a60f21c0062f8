package audit

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/database"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAssessment() *models.Assessment {
	return &models.Assessment{
		RiskLevel:  models.RiskHigh,
		Confidence: 0.3,
		VitalStatuses: []models.VitalStatus{
			{Vital: models.VitalBloodPressure, Value: "145/95", Status: models.StatusHigh, Detail: "high"},
		},
		Recommendations: models.Recommendations{ImmediateActions: []string{"act"}},
		RuleLevel:       models.RiskHigh,
		ModelAvailable:  true,
		ModelVersion:    "v1",
		Input:           models.VitalSnapshot{Age: 45, SystolicBP: 145, DiastolicBP: 95, BloodSugar: 12.5, BodyTemp: 38.2, HeartRate: 98},
	}
}

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(database.NewPostgresFromDB(db)), mock
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(SourceAPI, "req-1", sampleAssessment())
	assert.Len(t, rec.ID, 36)
	assert.Equal(t, SourceAPI, rec.Source)
	assert.False(t, rec.CreatedAt.IsZero())
	assert.NotEqual(t, rec.ID, NewRecord(SourceAPI, "req-1", sampleAssessment()).ID)
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS risk_assessments").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureSchemaRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS risk_assessments").WillReturnError(stderrors.New("permission denied"))
	mock.ExpectRollback()

	err := store.EnsureSchema(context.Background())
	assert.True(t, errors.IsCode(err, errors.ErrCodeDatabaseConnectionFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Purge(t *testing.T) {
	store, mock := newMockStore(t)
	cutoff := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec("DELETE FROM risk_assessments").WithArgs(cutoff).WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := store.Purge(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Record(t *testing.T) {
	store, mock := newMockStore(t)
	rec := NewRecord(SourceWorker, "2251799813685249", sampleAssessment())

	mock.ExpectExec("INSERT INTO risk_assessments").
		WithArgs(rec.ID, SourceWorker, sqlmock.AnyArg(), "high", "high", 0.3, true, sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Record(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordFailure(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO risk_assessments").WillReturnError(stderrors.New("connection refused"))

	err := store.Record(context.Background(), NewRecord(SourceAPI, "", sampleAssessment()))
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssessmentRecordFailed))
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := newMockStore(t)
	result, err := json.Marshal(sampleAssessment())
	require.NoError(t, err)
	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM risk_assessments").
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "source", "correlation_key", "model_available", "model_version", "result", "created_at",
		}).AddRow("a-1", SourceAPI, nil, true, "v1", result, created))

	got, err := store.Get(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, "a-1", got.ID)
	assert.Equal(t, "", got.CorrelationKey)
	assert.Equal(t, "v1", got.ModelVersion)
	assert.Equal(t, models.RiskHigh, got.Assessment.RiskLevel)
	assert.Equal(t, created, got.CreatedAt)
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM risk_assessments").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSearchIndexer_Record(t *testing.T) {
	var gotPath, gotMethod string
	var gotDoc map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotDoc)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	defer srv.Close()

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	rec := NewRecord(SourceAPI, "req-9", sampleAssessment())

	require.NoError(t, NewSearchIndexer(es, "risk-assessments").Record(context.Background(), rec))
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/risk-assessments/_doc/"+rec.ID, gotPath)
	assert.Equal(t, "high", gotDoc["risk_level"])
	assert.Equal(t, "req-9", gotDoc["correlation_key"])
}

func TestSearchIndexer_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	es, err := database.NewElasticsearch(config.ElasticsearchConfig{URL: srv.URL})
	require.NoError(t, err)
	err = NewSearchIndexer(es, "risk-assessments").Record(context.Background(), NewRecord(SourceAPI, "", sampleAssessment()))
	assert.True(t, errors.IsCode(err, errors.ErrCodeAssessmentRecordFailed))
}

type fakeSink struct {
	name    string
	err     error
	records []Record
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Record(_ context.Context, rec Record) error {
	f.records = append(f.records, rec)
	return f.err
}

func TestRecorder_BestEffort(t *testing.T) {
	good := &fakeSink{name: "good"}
	bad := &fakeSink{name: "bad", err: stderrors.New("down")}
	r := NewRecorder(logger.NewTestLogger(t), bad, nil, good)

	n := r.Record(context.Background(), NewRecord(SourceWorker, "", sampleAssessment()))
	assert.Equal(t, 1, n)
	assert.Len(t, good.records, 1)
	assert.Len(t, bad.records, 1)

	var nilRecorder *Recorder
	assert.Equal(t, 0, nilRecorder.Record(context.Background(), Record{}))
}
