package kafka

import (
	"os"
	"strings"

	"github.com/repokit/testrepo/internal/config"
)

// DefaultBroker is used when neither the environment nor the config name a
// broker.
const DefaultBroker = "localhost:19092"

// GetBrokers returns the Kafka/Redpanda broker addresses.
// It checks environment variables first, then falls back to config, then default.
func GetBrokers(cfg *config.Config) []string {
	if brokers := os.Getenv("TESTREPO_BROKERS"); brokers != "" {
		var out []string
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				out = append(out, b)
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	if cfg != nil && cfg.Indexer != nil && len(cfg.Indexer.Brokers) > 0 {
		return cfg.Indexer.Brokers
	}

	return []string{DefaultBroker}
}

// GetIndexTopic returns the bulk index topic name.
// It checks environment variables first, then falls back to config, then default.
func GetIndexTopic(cfg *config.Config) string {
	if topic := os.Getenv("TESTREPO_INDEX_TOPIC"); topic != "" {
		return topic
	}

	if cfg != nil && cfg.Indexer != nil && cfg.Indexer.Topic != "" {
		return cfg.Indexer.Topic
	}

	return config.DefaultIndexTopic
}

// GetConsumerGroup returns the consumer group name for bulk index workers.
// It checks environment variables first, then falls back to config, then default.
func GetConsumerGroup(cfg *config.Config) string {
	if group := os.Getenv("TESTREPO_CONSUMER_GROUP"); group != "" {
		return group
	}

	if cfg != nil && cfg.Indexer != nil && cfg.Indexer.ConsumerGroup != "" {
		return cfg.Indexer.ConsumerGroup
	}

	return config.DefaultConsumerGroup
}
