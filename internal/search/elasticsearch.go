package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"fanpass/internal/config"
	"fanpass/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// ElasticsearchClient индексирует завершенные платежи для административного поиска
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient создает новый клиент Elasticsearch и индекс платежей
func NewElasticsearchClient(ctx context.Context, cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
		Transport: &http.Transport{
			ResponseHeaderTimeout: cfg.Timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	if err := client.EnsureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

var paymentMapping = map[string]interface{}{
	"settings": map[string]interface{}{
		"number_of_shards":   1,
		"number_of_replicas": 0,
	},
	"mappings": map[string]interface{}{
		"properties": map[string]interface{}{
			"payment_id": map[string]interface{}{"type": "keyword"},
			"order_id":   map[string]interface{}{"type": "keyword"},
			"capture_id": map[string]interface{}{"type": "keyword"},
			"user_id":    map[string]interface{}{"type": "keyword"},
			"event_id":   map[string]interface{}{"type": "keyword"},
			"event_name": map[string]interface{}{
				"type": "text",
				"fields": map[string]interface{}{
					"keyword": map[string]interface{}{
						"type":         "keyword",
						"ignore_above": 256,
					},
				},
			},
			"amount": map[string]interface{}{
				"type":           "scaled_float",
				"scaling_factor": 100,
			},
			"status":       map[string]interface{}{"type": "keyword"},
			"referred_by":  map[string]interface{}{"type": "keyword"},
			"guest_name":   map[string]interface{}{"type": "text"},
			"completed_at": map[string]interface{}{"type": "date"},
		},
	},
}

// EnsureIndex создает индекс если он не существует
func (c *ElasticsearchClient) EnsureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mappingJSON, err := json.Marshal(paymentMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

// IndexPayment индексирует платеж, повторная индексация перезаписывает документ
func (c *ElasticsearchClient) IndexPayment(ctx context.Context, doc *models.PaymentSearchResponseItem) error {
	if doc.CompletedAt == "" {
		doc.CompletedAt = time.Now().UTC().Format(time.RFC3339)
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal payment: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: doc.PaymentID,
		Body:       bytes.NewReader(docJSON),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index payment: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// SearchPayments выполняет поиск платежей, свежие первыми
func (c *ElasticsearchClient) SearchPayments(ctx context.Context, query, status string, page, pageSize int) (*models.PaymentSearchResponse, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	from := 0
	if page > 0 {
		from = (page - 1) * pageSize
	}

	searchRequest := map[string]interface{}{
		"query":            buildSearchQuery(query, status),
		"sort":             buildSortQuery(query),
		"from":             from,
		"size":             pageSize,
		"track_total_hits": true,
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(searchJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.PaymentSearchResponseItem `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := &models.PaymentSearchResponse{
		Total: response.Hits.Total.Value,
		Items: make([]models.PaymentSearchResponseItem, len(response.Hits.Hits)),
	}
	for i, hit := range response.Hits.Hits {
		result.Items[i] = hit.Source
	}

	return result, nil
}

// buildSearchQuery строит поисковый запрос: полнотекст по названию события и
// имени гостя, точное совпадение по идентификаторам
func buildSearchQuery(query, status string) map[string]interface{} {
	var must, filter []map[string]interface{}

	if query = strings.TrimSpace(query); query != "" {
		must = append(must, map[string]interface{}{
			"bool": map[string]interface{}{
				"should": []map[string]interface{}{
					{"multi_match": map[string]interface{}{
						"query":     query,
						"fields":    []string{"event_name^2", "guest_name"},
						"fuzziness": "AUTO",
					}},
					{"multi_match": map[string]interface{}{
						"query":  query,
						"type":   "phrase",
						"fields": []string{"payment_id", "order_id", "capture_id", "user_id", "event_id", "referred_by"},
					}},
				},
				"minimum_should_match": 1,
			},
		})
	}

	if status = strings.TrimSpace(status); status != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"status": status},
		})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]interface{}{
			"match_all": map[string]interface{}{},
		}
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{"bool": boolQuery}
}

// buildSortQuery строит сортировку
func buildSortQuery(query string) []map[string]interface{} {
	if strings.TrimSpace(query) != "" {
		return []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"completed_at": map[string]interface{}{"order": "desc"}},
		}
	}

	return []map[string]interface{}{
		{"completed_at": map[string]interface{}{"order": "desc"}},
	}
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
