package database

import (
	"context"
	"fmt"
	"log"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/metrics"
	"github.com/ontoforge/ontoforge-go/internal/schema"
)

// Traversal directions.
const (
	DirectionOutgoing = "outgoing"
	DirectionIncoming = "incoming"
	DirectionBoth     = "both"
)

// Neighbors performs a 1-hop traversal from a center entity. Outgoing
// edges are collected first, then incoming edges fill the remaining limit.
// relationTypeKey narrows the traversal to one relation type when set.
func (dm *DBManager) Neighbors(ctx context.Context, ontologyKey string, snap *apptype.SchemaSnapshot, centerDef *apptype.EntityTypeDef, centerID, direction, relationTypeKey string, limit int) ([]apptype.Neighbor, error) {
	done := metrics.TimeOp("get_neighbors")
	success := false
	defer func() { done(success) }()

	neighbors := make([]apptype.Neighbor, 0, limit)

	if direction == DirectionOutgoing || direction == DirectionBoth {
		for _, key := range snap.RelationTypeKeys() {
			if len(neighbors) >= limit {
				break
			}
			rt := snap.RelationTypes[key]
			if rt.SourceKey != centerDef.Key {
				continue
			}
			if relationTypeKey != "" && rt.Key != relationTypeKey {
				continue
			}
			batch, err := dm.neighborsVia(ctx, ontologyKey, snap, rt, centerID, DirectionOutgoing, limit-len(neighbors))
			if err != nil {
				return nil, err
			}
			neighbors = append(neighbors, batch...)
		}
	}

	if direction == DirectionIncoming || direction == DirectionBoth {
		for _, key := range snap.RelationTypeKeys() {
			if len(neighbors) >= limit {
				break
			}
			rt := snap.RelationTypes[key]
			if rt.TargetKey != centerDef.Key {
				continue
			}
			if relationTypeKey != "" && rt.Key != relationTypeKey {
				continue
			}
			batch, err := dm.neighborsVia(ctx, ontologyKey, snap, rt, centerID, DirectionIncoming, limit-len(neighbors))
			if err != nil {
				return nil, err
			}
			neighbors = append(neighbors, batch...)
		}
	}

	success = true
	return neighbors, nil
}

// neighborsVia collects up to limit neighbors along one relation type in
// one direction. Relations whose far entity row is missing are skipped
// with a warning rather than failing the traversal.
func (dm *DBManager) neighborsVia(ctx context.Context, ontologyKey string, snap *apptype.SchemaSnapshot, rt *apptype.RelationTypeDef, centerID, direction string, limit int) ([]apptype.Neighbor, error) {
	db, err := dm.getDB(ontologyKey)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	matchCol := schema.ColFromID
	farCol := schema.ColToID
	farTypeKey := rt.TargetKey
	if direction == DirectionIncoming {
		matchCol = schema.ColToID
		farCol = schema.ColFromID
		farTypeKey = rt.SourceKey
	}
	farDef, ok := snap.EntityType(farTypeKey)
	if !ok {
		return nil, apperror.NewInternal(fmt.Errorf("relation type %s references unknown entity type %s", rt.Key, farTypeKey))
	}

	query := fmt.Sprintf("SELECT %s FROM %q WHERE %s = ? ORDER BY %s ASC, %s ASC LIMIT ?",
		relationSelectColumns(rt), relationTable(rt), matchCol, schema.ColCreatedAt, schema.ColID)
	rows, err := db.QueryContext(ctx, query, centerID, limit)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("failed to traverse %s: %w", rt.Key, err))
	}
	defer rows.Close()

	relations := make([]apptype.Instance, 0, limit)
	for rows.Next() {
		rel, err := scanRelation(rows, rt)
		if err != nil {
			log.Printf("Warning: failed to scan relation row during traversal: %v", err)
			continue
		}
		rel[apptype.KeyDirection] = direction
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.NewInternal(err)
	}

	neighbors := make([]apptype.Neighbor, 0, len(relations))
	for _, rel := range relations {
		farIDKey := apptype.KeyToEntityID
		if farCol == schema.ColFromID {
			farIDKey = apptype.KeyFromEntityID
		}
		farID, _ := rel[farIDKey].(string)
		entity, err := dm.GetEntity(ctx, ontologyKey, farDef, farID)
		if err != nil {
			if apperror.IsNotFound(err) {
				log.Printf("Warning: relation %v references missing entity %s, skipping", rel[apptype.KeyID], farID)
				continue
			}
			return nil, err
		}
		neighbors = append(neighbors, apptype.Neighbor{Relation: rel, Entity: entity})
	}
	return neighbors, nil
}
