package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// TransactionConfig is the timeout and query.log metadata for one kind of write
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

var transactionConfigs = map[string]TransactionConfig{
	"alias_merge": {
		Timeout:  30 * time.Second,
		Metadata: map[string]any{"operation": "alias_merge", "type": "write"},
	},
	"contributor_sync": {
		Timeout:  3 * time.Minute,
		Metadata: map[string]any{"operation": "contributor_sync", "type": "write"},
	},
}

// ConfigForOperation returns the config for operation, or a 60s fallback
func ConfigForOperation(operation string) TransactionConfig {
	if tc, ok := transactionConfigs[operation]; ok {
		return tc
	}
	return TransactionConfig{
		Timeout:  60 * time.Second,
		Metadata: map[string]any{"operation": operation, "type": "unknown"},
	}
}

// AsNeo4jConfig converts to options for ExecuteRead/ExecuteWrite
func (tc TransactionConfig) AsNeo4jConfig() []func(*neo4j.TransactionConfig) {
	var configs []func(*neo4j.TransactionConfig)
	if tc.Timeout > 0 {
		configs = append(configs, neo4j.WithTxTimeout(tc.Timeout))
	}
	if len(tc.Metadata) > 0 {
		configs = append(configs, neo4j.WithTxMetadata(tc.Metadata))
	}
	return configs
}
