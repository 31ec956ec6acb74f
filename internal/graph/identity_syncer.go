// Package graph mirrors resolved contributor identities into Neo4j so alias
// history can be queried alongside other project graphs.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rohankatakam/reviewscout/internal/models"
)

const mergeAliasCypher = `
MERGE (p:Contributor {id: $primaryID})
SET p.login = $primaryLogin,
    p.canonical_name = $primaryName
MERGE (a:Alias {id: $duplicateID})
SET a.login = $duplicateLogin,
    a.email = $duplicateEmail,
    a.canonical_name = $duplicateName
MERGE (a)-[r:ALIAS_OF]->(p)
SET r.priority = $priority,
    r.similarity = $similarity,
    r.merged_at = datetime($mergedAt)
WITH p
MATCH (stale:Contributor {id: $duplicateID})
OPTIONAL MATCH (nested:Alias)-[:ALIAS_OF]->(stale)
WITH p, stale, collect(nested) AS nested
FOREACH (n IN nested | MERGE (n)-[:ALIAS_OF]->(p))
DETACH DELETE stale`

const upsertContributorsCypher = `
UNWIND $rows AS row
MERGE (c:Contributor {id: row.id})
SET c.login = row.login,
    c.email = row.email,
    c.canonical_name = row.canonical_name`

// IdentitySyncer writes merge decisions into Neo4j as ALIAS_OF edges
type IdentitySyncer struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewIdentitySyncer connects and verifies the database is reachable
func NewIdentitySyncer(ctx context.Context, uri, username, password, database string) (*IdentitySyncer, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	return &IdentitySyncer{
		driver:   driver,
		database: database,
		logger:   slog.Default().With("component", "graph"),
	}, nil
}

// OnMerge records the duplicate as an alias of the primary. Aliases that
// pointed at the duplicate are re-pointed at the primary.
func (s *IdentitySyncer) OnMerge(ctx context.Context, d models.MergeDecision) error {
	params := map[string]any{
		"primaryID":      d.Primary.ID,
		"primaryLogin":   d.Primary.LoginValue(),
		"primaryName":    d.Primary.CanonicalName,
		"duplicateID":    d.Duplicate.ID,
		"duplicateLogin": d.Duplicate.LoginValue(),
		"duplicateEmail": d.Duplicate.EmailValue(),
		"duplicateName":  d.Duplicate.CanonicalName,
		"priority":       string(d.Priority),
		"similarity":     d.Similarity,
		"mergedAt":       time.Now().UTC().Format(time.RFC3339),
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, mergeAliasCypher, params)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	}, ConfigForOperation("alias_merge").AsNeo4jConfig()...)
	if err != nil {
		return fmt.Errorf("failed to sync alias %s -> %s: %w", d.Duplicate.ID, d.Primary.ID, err)
	}

	s.logger.Debug("alias synced", "duplicate_id", d.Duplicate.ID, "primary_id", d.Primary.ID)
	return nil
}

// SyncContributors upserts primary contributors in one UNWIND statement
func (s *IdentitySyncer) SyncContributors(ctx context.Context, contributors []models.Contributor) (int, error) {
	rows := make([]map[string]any, 0, len(contributors))
	for _, c := range contributors {
		if !c.IsPrimary {
			continue
		}
		rows = append(rows, map[string]any{
			"id":             c.ID,
			"login":          c.LoginValue(),
			"email":          c.EmailValue(),
			"canonical_name": c.CanonicalName,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, upsertContributorsCypher, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	}, ConfigForOperation("contributor_sync").AsNeo4jConfig()...)
	if err != nil {
		return 0, fmt.Errorf("failed to sync contributors: %w", err)
	}

	s.logger.Info("contributors synced to graph", "count", len(rows))
	return len(rows), nil
}

// Close releases the driver
func (s *IdentitySyncer) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
