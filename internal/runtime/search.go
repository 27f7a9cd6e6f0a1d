package runtime

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ontoforge/ontoforge-go/internal/apperror"
	"github.com/ontoforge/ontoforge-go/internal/apptype"
	"github.com/ontoforge/ontoforge-go/internal/schema"
)

// maxCandidateFetch caps how many ANN candidates are pulled per type when
// post-filtering may discard some of them.
const maxCandidateFetch = 500

// SearchParams carries semantic search options.
type SearchParams struct {
	Query         string
	EntityTypeKey string
	Limit         int
	MinScore      float64
	Filters       map[string]string
	Fields        []string
}

type typedCandidate struct {
	typeKey string
	id      string
	score   float64
}

// SemanticSearch embeds the query text and returns the closest entities
// by cosine similarity, across one entity type or all of them.
func (s *Service) SemanticSearch(ctx context.Context, ontologyKey string, params SearchParams) (*apptype.SearchResult, error) {
	if s.embedder == nil {
		return nil, apperror.NewValidation(
			"Semantic search requires an embeddings provider; none is configured", nil)
	}
	if params.Query == "" {
		return nil, apperror.NewValidation("Search query must not be empty",
			map[string]string{"query": "Required"})
	}
	limit := clampLimit(params.Limit, defaultSearchLimit, maxSearchLimit)

	snap, err := s.schemas.Snapshot(ctx, ontologyKey)
	if err != nil {
		return nil, err
	}

	var targetKeys []string
	explicitType := params.EntityTypeKey != ""
	if explicitType {
		if _, ok := snap.EntityType(params.EntityTypeKey); !ok {
			return nil, apperror.NewNotFound("entity type", params.EntityTypeKey)
		}
		targetKeys = []string{params.EntityTypeKey}
	} else {
		targetKeys = snap.EntityTypeKeys()
	}

	embedCtx, cancel := context.WithTimeout(ctx, s.embedTimeout)
	vectors, err := s.embedder.Embed(embedCtx, []string{params.Query})
	cancel()
	if err != nil || len(vectors) != 1 {
		// Unlike write-time embedding, search cannot proceed without a
		// query vector.
		return nil, apperror.NewValidation("Failed to embed search query",
			map[string]string{"query": "the embeddings provider returned no vector"}).WithInternal(err)
	}
	queryVec := vectors[0]

	filtered := len(params.Filters) > 0
	fetchLimit := candidateFetchLimit(limit, filtered)

	var all []typedCandidate
	for _, typeKey := range targetKeys {
		def := snap.EntityTypes[typeKey]

		var where []string
		var args []any
		if filtered {
			where, args, err = schema.BuildFilterClauses(def.Key, def.Properties, params.Filters)
			if err != nil {
				// Fanning out across all types: a type that does not define
				// a filtered property simply cannot match.
				if !explicitType && apperror.IsValidation(err) {
					s.log.Debug("skipping entity type lacking filtered property",
						slog.String("entityTypeKey", typeKey))
					continue
				}
				return nil, err
			}
		}

		candidates, err := s.db.SemanticCandidates(ctx, ontologyKey, def, queryVec, fetchLimit)
		if err != nil {
			return nil, err
		}
		if filtered && len(candidates) > 0 {
			ids := make([]string, len(candidates))
			for i, c := range candidates {
				ids[i] = c.ID
			}
			surviving, err := s.db.FilterCandidateIDs(ctx, ontologyKey, def, ids, where, args)
			if err != nil {
				return nil, err
			}
			kept := candidates[:0]
			for _, c := range candidates {
				if surviving[c.ID] {
					kept = append(kept, c)
				}
			}
			candidates = kept
		}
		for _, c := range candidates {
			if c.Score < params.MinScore {
				continue
			}
			all = append(all, typedCandidate{typeKey: typeKey, id: c.ID, score: c.Score})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].id < all[j].id
	})
	if len(all) > limit {
		all = all[:limit]
	}

	results := make([]apptype.ScoredEntity, 0, len(all))
	for _, c := range all {
		def := snap.EntityTypes[c.typeKey]
		entity, err := s.db.GetEntity(ctx, ontologyKey, def, c.id)
		if err != nil {
			if apperror.IsNotFound(err) {
				// Deleted between candidate scan and hydration.
				continue
			}
			return nil, err
		}
		if entity, err = projectEntity(def, entity, params.Fields); err != nil {
			return nil, err
		}
		results = append(results, apptype.ScoredEntity{Entity: entity, Score: c.score})
	}

	return &apptype.SearchResult{Results: results, Query: params.Query, Total: len(results)}, nil
}

// candidateFetchLimit decides how many candidates to pull per type. With
// post-filters in play, over-fetch so enough survive; without them, the
// requested limit is exact.
func candidateFetchLimit(limit int, filtered bool) int {
	if !filtered {
		return limit
	}
	fetch := limit * 5
	if fetch > maxCandidateFetch {
		return maxCandidateFetch
	}
	return fetch
}
