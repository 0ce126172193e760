package exporters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"mercator-hq/helios/pkg/config"
	"mercator-hq/helios/pkg/telemetry"
)

// Elasticsearch indexes one document per record.
type Elasticsearch struct {
	client *elasticsearch.Client
	index  string
}

// NewElasticsearch creates the Elasticsearch exporter from config.
func NewElasticsearch(cfg config.ElasticsearchConfig) (*Elasticsearch, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &Elasticsearch{client: client, index: cfg.Index}, nil
}

func (*Elasticsearch) Name() string { return "elasticsearch" }

func (e *Elasticsearch) Export(ctx context.Context, rec *telemetry.LogRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      e.index,
		DocumentID: rec.Attributes.ID,
		Body:       bytes.NewReader(doc),
	}
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return fmt.Errorf("index request: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		detail, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("index %s: %s: %s", e.index, res.Status(), detail)
	}
	return nil
}
