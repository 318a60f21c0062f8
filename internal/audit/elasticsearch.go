package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"health-risk-workers/internal/common/database"
	"health-risk-workers/internal/common/errors"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "assessment_id":   {"type": "keyword"},
      "source":          {"type": "keyword"},
      "correlation_key": {"type": "keyword"},
      "risk_level":      {"type": "keyword"},
      "rule_level":      {"type": "keyword"},
      "confidence":      {"type": "float"},
      "model_available": {"type": "boolean"},
      "model_version":   {"type": "keyword"},
      "vitals":          {"type": "object"},
      "result":          {"type": "object", "enabled": false},
      "created_at":      {"type": "date"}
    }
  }
}`

// SearchIndexer writes one document per assessment, keyed by assessment ID.
type SearchIndexer struct {
	es    *database.ElasticsearchClient
	index string
}

func NewSearchIndexer(es *database.ElasticsearchClient, index string) *SearchIndexer {
	return &SearchIndexer{es: es, index: index}
}

func (i *SearchIndexer) Name() string {
	return "elasticsearch"
}

// EnsureIndex creates the index with the assessment mapping.
func (i *SearchIndexer) EnsureIndex(ctx context.Context) error {
	return i.es.EnsureIndex(ctx, i.index, indexMapping)
}

func (i *SearchIndexer) Record(ctx context.Context, rec Record) error {
	doc, err := rec.document()
	if err != nil {
		return errors.NewAssessmentRecordFailedError(i.Name(), err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return errors.NewAssessmentRecordFailedError(i.Name(), err)
	}

	client := i.es.Client
	res, err := client.Index(
		i.index,
		bytes.NewReader(body),
		client.Index.WithDocumentID(rec.ID),
		client.Index.WithContext(ctx),
	)
	if err != nil {
		return errors.NewAssessmentRecordFailedError(i.Name(), err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return errors.NewAssessmentRecordFailedError(i.Name(), fmt.Errorf("%s: %s", res.Status(), msg))
	}
	return nil
}
