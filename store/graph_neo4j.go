package store

import (
	"context"

	"github.com/habiliai/memoryd/errors"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/samber/lo"
)

// Neo4jGraphStore stores entities as (:Entity {user_id, name, type, record_ids})
// and relations as [:RELATES {type, record_id, user_id}].
type Neo4jGraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ GraphStore = (*Neo4jGraphStore)(nil)

const (
	cypherDeleteRelations = `
MATCH ()-[r:RELATES]->()
WHERE r.record_id IN $record_ids
DELETE r`

	cypherPruneEntities = `
MATCH (n:Entity)
WHERE any(id IN n.record_ids WHERE id IN $record_ids)
SET n.record_ids = [id IN n.record_ids WHERE NOT id IN $record_ids]
WITH n
WHERE size(n.record_ids) = 0
DETACH DELETE n`

	cypherMergeEntities = `
UNWIND $entities AS e
MERGE (n:Entity {user_id: $user_id, name: e.name})
ON CREATE SET n.type = e.type, n.record_ids = [$record_id], n.created_at = datetime()
ON MATCH SET n.record_ids = CASE
	WHEN $record_id IN n.record_ids THEN n.record_ids
	ELSE n.record_ids + $record_id
END`

	cypherCreateRelations = `
UNWIND $relations AS r
MATCH (s:Entity {user_id: $user_id, name: r.source})
MATCH (t:Entity {user_id: $user_id, name: r.target})
CREATE (s)-[:RELATES {type: r.relation, record_id: $record_id, user_id: $user_id}]->(t)`
)

func NewNeo4jGraphStore(ctx context.Context, uri, username, password, database string) (*Neo4jGraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrGraphStore, "failed to create neo4j driver for %s", uri)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, errors.WrapKindf(err, errors.ErrGraphStore, "failed to connect to neo4j at %s", uri)
	}

	s := &Neo4jGraphStore{driver: driver, database: database}
	if err := s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		_, err := tx.Run(ctx, "CREATE INDEX entity_user_name IF NOT EXISTS FOR (n:Entity) ON (n.user_id, n.name)", nil)
		return err
	}); err != nil {
		_ = driver.Close(ctx)
		return nil, errors.Wrapf(err, "failed to create entity index")
	}
	return s, nil
}

func (s *Neo4jGraphStore) Upsert(ctx context.Context, userID, recordID string, g *Graph) error {
	entities := lo.Map(g.Entities, func(e Entity, _ int) map[string]any {
		return map[string]any{"name": e.Name, "type": e.Type}
	})
	relations := lo.Map(g.Relations, func(r Relation, _ int) map[string]any {
		return map[string]any{"source": r.Source, "relation": r.Relation, "target": r.Target}
	})

	return s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		ids := map[string]any{"record_ids": []string{recordID}}
		if _, err := tx.Run(ctx, cypherDeleteRelations, ids); err != nil {
			return err
		}
		if _, err := tx.Run(ctx, cypherPruneEntities, ids); err != nil {
			return err
		}
		params := map[string]any{
			"user_id":   userID,
			"record_id": recordID,
			"entities":  entities,
			"relations": relations,
		}
		if _, err := tx.Run(ctx, cypherMergeEntities, params); err != nil {
			return err
		}
		_, err := tx.Run(ctx, cypherCreateRelations, params)
		return err
	})
}

func (s *Neo4jGraphStore) DeleteByRecord(ctx context.Context, recordIDs ...string) error {
	if len(recordIDs) == 0 {
		return nil
	}
	return s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		params := map[string]any{"record_ids": recordIDs}
		if _, err := tx.Run(ctx, cypherDeleteRelations, params); err != nil {
			return err
		}
		_, err := tx.Run(ctx, cypherPruneEntities, params)
		return err
	})
}

func (s *Neo4jGraphStore) DeleteAll(ctx context.Context, userID string) error {
	return s.write(ctx, func(tx neo4j.ManagedTransaction) error {
		_, err := tx.Run(ctx, `
MATCH (n:Entity)
WHERE $user_id = '' OR n.user_id = $user_id
DETACH DELETE n`, map[string]any{"user_id": userID})
		return err
	})
}

func (s *Neo4jGraphStore) Relations(ctx context.Context, userID string) ([]Relation, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
MATCH (s:Entity)-[r:RELATES]->(t:Entity)
WHERE $user_id = '' OR r.user_id = $user_id
RETURN s.name AS source, r.type AS relation, t.name AS target, r.record_id AS record_id, r.user_id AS user_id`,
			map[string]any{"user_id": userID})
		if err != nil {
			return nil, err
		}

		var relations []Relation
		for result.Next(ctx) {
			rec := result.Record()
			relations = append(relations, Relation{
				Source:   stringValue(rec, "source"),
				Relation: stringValue(rec, "relation"),
				Target:   stringValue(rec, "target"),
				RecordID: stringValue(rec, "record_id"),
				UserID:   stringValue(rec, "user_id"),
			})
		}
		return relations, result.Err()
	})
	if err != nil {
		return nil, errors.WrapKindf(err, errors.ErrGraphStore, "failed to list relations")
	}
	relations, _ := out.([]Relation)
	return relations, nil
}

func (s *Neo4jGraphStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Neo4jGraphStore) write(ctx context.Context, fn func(tx neo4j.ManagedTransaction) error) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: s.database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return nil, fn(tx)
	})
	return errors.Mark(err, errors.ErrGraphStore)
}

func stringValue(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
