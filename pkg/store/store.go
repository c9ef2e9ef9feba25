package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/apperrors"
	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/models"
)

const (
	upsertBatchSize = 100

	defaultThreshold         = 0.30
	defaultTemplateThreshold = 0.15
	defaultTemplateBoost     = 0.15

	// Fetch more rows than requested so that threshold filtering and
	// template re-ranking still leave enough results to fill the limit.
	fetchMultiplier = 3
)

// scoredEntry pairs a stored entry with its raw cosine similarity.
type scoredEntry struct {
	Entry      models.SchemaVectorEntry
	Similarity float64
}

// vectorRepository is the persistence seam for the document store.
// Implemented by pgRepository against Postgres/pgvector, and by fakes
// in tests.
type vectorRepository interface {
	UpsertBatch(ctx context.Context, entries []models.SchemaVectorEntry) error
	Search(ctx context.Context, embedding []float32, limit int) ([]scoredEntry, error)
	Clear(ctx context.Context) error
}

// Store maintains the semantic document corpus: schema descriptions,
// relationship blurbs, business rules and query templates, embedded and
// indexed for similarity search.
type Store struct {
	repo     vectorRepository
	embedder llm.Client
	cache    *SearchCache
	logger   *zap.Logger

	threshold         float64
	templateThreshold float64
	templateBoost     float64
}

func New(repo vectorRepository, embedder llm.Client, cache *SearchCache, logger *zap.Logger) *Store {
	return &Store{
		repo:              repo,
		embedder:          embedder,
		cache:             cache,
		logger:            logger.Named("store"),
		threshold:         defaultThreshold,
		templateThreshold: defaultTemplateThreshold,
		templateBoost:     defaultTemplateBoost,
	}
}

// Rebuild replaces the stored corpus with freshly embedded entries built
// from the given schema snapshot and documentation set. All texts go to
// the embedding backend in a single batched call; entries with duplicate
// IDs collapse to the last occurrence before embedding.
func (s *Store) Rebuild(
	ctx context.Context,
	tables []models.SchemaTable,
	fks []models.ForeignKeyConstraint,
	docs []models.DocumentationEntry,
) (int, error) {
	entries := dedupeByID(buildEntries(tables, fks, docs))
	if len(entries) == 0 {
		s.logger.Warn("rebuild requested with empty corpus")
		return 0, nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Content
	}

	embeddings, err := s.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("%w: embedding corpus of %d entries: %v",
			apperrors.ErrEmbeddingFailure, len(entries), err)
	}
	if len(embeddings) != len(entries) {
		return 0, fmt.Errorf("%w: embedding backend returned %d vectors for %d entries",
			apperrors.ErrEmbeddingFailure, len(embeddings), len(entries))
	}
	for i := range entries {
		entries[i].Embedding = embeddings[i]
	}

	if err := s.repo.Clear(ctx); err != nil {
		return 0, fmt.Errorf("%w: clearing previous corpus: %v", apperrors.ErrStoreFailure, err)
	}

	for start := 0; start < len(entries); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := s.repo.UpsertBatch(ctx, entries[start:end]); err != nil {
			return 0, fmt.Errorf("%w: upserting batch %d-%d: %v",
				apperrors.ErrStoreFailure, start, end, err)
		}
	}

	s.logger.Info("corpus rebuilt",
		zap.Int("entries", len(entries)),
		zap.Int("tables", len(tables)),
		zap.Int("documents", len(docs)))
	return len(entries), nil
}

// Search embeds the query and returns the most relevant corpus entries.
// Results below the similarity threshold are dropped; queries that look
// like they are asking for a known report get a more permissive threshold
// and templates get a ranking boost so canned queries surface first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]models.SchemaVectorEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	normalized := normalizeQuery(query)

	cacheKey := fmt.Sprintf("%s|%d", normalized, limit)
	if s.cache != nil {
		if cached, ok := s.cache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	embedding, err := s.embedder.CreateEmbedding(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding search query: %v", apperrors.ErrEmbeddingFailure, err)
	}

	scored, err := s.repo.Search(ctx, embedding, limit*fetchMultiplier)
	if err != nil {
		return nil, fmt.Errorf("%w: searching corpus: %v", apperrors.ErrStoreFailure, err)
	}

	templateLike := isTemplateLikeQuery(normalized)
	threshold := s.threshold
	if templateLike {
		threshold = s.templateThreshold
	}

	type ranked struct {
		entry models.SchemaVectorEntry
		score float64
	}
	var kept []ranked
	for _, sc := range scored {
		if sc.Similarity < threshold {
			continue
		}
		score := sc.Similarity
		if templateLike && sc.Entry.IsTemplate() {
			score += s.templateBoost
		}
		kept = append(kept, ranked{entry: sc.Entry, score: score})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}

	results := make([]models.SchemaVectorEntry, len(kept))
	for i, r := range kept {
		results[i] = r.entry
	}

	if s.cache != nil {
		s.cache.Put(cacheKey, results)
	}
	return results, nil
}

// Clear removes every stored entry.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clearing corpus: %v", apperrors.ErrStoreFailure, err)
	}
	return nil
}

func dedupeByID(entries []models.SchemaVectorEntry) []models.SchemaVectorEntry {
	seen := make(map[string]int, len(entries))
	var out []models.SchemaVectorEntry
	for _, e := range entries {
		if idx, ok := seen[e.ID]; ok {
			out[idx] = e
			continue
		}
		seen[e.ID] = len(out)
		out = append(out, e)
	}
	return out
}

func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// templateSignals are phrasings that usually mean the user wants one of
// the canned report queries rather than an ad-hoc exploration.
var templateSignals = []string{
	"how many",
	"average",
	"pass rate",
	"report",
	"per testing center",
	"per diocese",
	"top ",
	"list all",
	"breakdown",
}

func isTemplateLikeQuery(normalized string) bool {
	for _, signal := range templateSignals {
		if strings.Contains(normalized, signal) {
			return true
		}
	}
	return false
}
