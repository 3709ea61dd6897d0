package config

import "time"

// ElasticsearchConfig содержит конфигурацию для подключения к Elasticsearch
type ElasticsearchConfig struct {
	Enabled    bool          `envconfig:"ELASTICSEARCH_ENABLED" default:"true"`
	URL        string        `envconfig:"ELASTICSEARCH_URL" default:"http://localhost:9200"`
	Index      string        `envconfig:"ELASTICSEARCH_INDEX" default:"payments"`
	Username   string        `envconfig:"ELASTICSEARCH_USERNAME"`
	Password   string        `envconfig:"ELASTICSEARCH_PASSWORD"`
	MaxRetries int           `envconfig:"ELASTICSEARCH_MAX_RETRIES" default:"3"`
	Timeout    time.Duration `envconfig:"ELASTICSEARCH_TIMEOUT" default:"30s"`
}
