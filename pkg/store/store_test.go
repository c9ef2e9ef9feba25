package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/apperrors"
	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/models"
)

// fakeRepo keeps entries in memory and returns canned similarity scores
// keyed by entry ID.
type fakeRepo struct {
	entries      map[string]models.SchemaVectorEntry
	similarities map[string]float64
	upsertCalls  int
	clearCalls   int
	searchErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		entries:      make(map[string]models.SchemaVectorEntry),
		similarities: make(map[string]float64),
	}
}

func (f *fakeRepo) UpsertBatch(_ context.Context, entries []models.SchemaVectorEntry) error {
	f.upsertCalls++
	for _, e := range entries {
		f.entries[e.ID] = e
	}
	return nil
}

func (f *fakeRepo) Search(_ context.Context, _ []float32, limit int) ([]scoredEntry, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []scoredEntry
	for id, sim := range f.similarities {
		entry, ok := f.entries[id]
		if !ok {
			entry = models.SchemaVectorEntry{ID: id}
		}
		out = append(out, scoredEntry{Entry: entry, Similarity: sim})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRepo) Clear(context.Context) error {
	f.clearCalls++
	f.entries = make(map[string]models.SchemaVectorEntry)
	return nil
}

func testTables() []models.SchemaTable {
	return []models.SchemaTable{
		{
			SchemaName: "public",
			TableName:  "students",
			Columns: []models.Column{
				{Name: "id", DataType: "bigint"},
				{Name: "diocese_id", DataType: "bigint"},
			},
			Access: &models.AccessDescriptor{
				RequiresTenantFilter: true,
				JoinPathToTenant:     "students.diocese_id",
			},
		},
		{
			SchemaName: "public",
			TableName:  "scores",
			Columns: []models.Column{
				{Name: "id", DataType: "bigint"},
				{Name: "student_id", DataType: "bigint"},
				{Name: "value", DataType: "numeric", IsNullable: true},
			},
		},
	}
}

func TestRebuildSingleEmbeddingBatch(t *testing.T) {
	repo := newFakeRepo()
	mock := llm.NewMockClient()
	var batchSizes []int
	mock.CreateEmbeddingsFunc = func(_ context.Context, inputs []string) ([][]float32, error) {
		batchSizes = append(batchSizes, len(inputs))
		out := make([][]float32, len(inputs))
		for i := range out {
			out[i] = []float32{0.1, 0.2}
		}
		return out, nil
	}

	s := New(repo, mock, NewSearchCache(0, 0), zap.NewNop())
	docs := []models.DocumentationEntry{
		{ID: "rule_role_ids", Title: "Role IDs", Content: "Role 3 means student."},
		{ID: "template_pass_rate", Title: "Pass rate", Content: "Pass rate per center."},
	}

	count, err := s.Rebuild(context.Background(), testTables(), nil, docs)
	require.NoError(t, err)

	// 2 tables + 5 columns + 2 docs
	assert.Equal(t, 9, count)
	require.Len(t, batchSizes, 1, "all corpus texts must embed in one batched call")
	assert.Equal(t, 9, batchSizes[0])
	assert.Equal(t, 1, mock.CreateEmbeddingsCalls)
	assert.Equal(t, 1, repo.clearCalls)
	assert.Len(t, repo.entries, 9)
}

func TestRebuildDedupesByIDLastWins(t *testing.T) {
	repo := newFakeRepo()
	mock := llm.NewMockClient()
	mock.CreateEmbeddingsFunc = func(_ context.Context, inputs []string) ([][]float32, error) {
		out := make([][]float32, len(inputs))
		for i := range out {
			out[i] = []float32{1}
		}
		return out, nil
	}

	s := New(repo, mock, nil, zap.NewNop())
	docs := []models.DocumentationEntry{
		{ID: "rule_x", Title: "First", Content: "old text"},
		{ID: "rule_x", Title: "Second", Content: "new text"},
	}

	count, err := s.Rebuild(context.Background(), nil, nil, docs)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Contains(t, repo.entries["rule_x"].Content, "new text")
}

func TestRebuildEmbeddingFailure(t *testing.T) {
	repo := newFakeRepo()
	mock := llm.NewMockClient()
	mock.CreateEmbeddingsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("backend down")
	}

	s := New(repo, mock, nil, zap.NewNop())
	_, err := s.Rebuild(context.Background(), testTables(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrEmbeddingFailure)
	assert.Equal(t, 0, repo.clearCalls, "a failed rebuild must not touch the stored corpus")
}

func TestRebuildChunksUpserts(t *testing.T) {
	repo := newFakeRepo()
	mock := llm.NewMockClient()
	mock.CreateEmbeddingsFunc = func(_ context.Context, inputs []string) ([][]float32, error) {
		out := make([][]float32, len(inputs))
		for i := range out {
			out[i] = []float32{1}
		}
		return out, nil
	}

	var docs []models.DocumentationEntry
	for i := 0; i < 250; i++ {
		docs = append(docs, models.DocumentationEntry{
			ID:      models.RuleIDPrefix + string(rune('a'+i%26)) + string(rune('0'+i/26)),
			Content: "rule body",
		})
	}

	s := New(repo, mock, nil, zap.NewNop())
	count, err := s.Rebuild(context.Background(), nil, nil, docs)
	require.NoError(t, err)
	assert.Equal(t, count, len(repo.entries))
	assert.Equal(t, 1, mock.CreateEmbeddingsCalls)
	assert.Equal(t, (count+upsertBatchSize-1)/upsertBatchSize, repo.upsertCalls)
}

func TestSearchThresholdFiltering(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["table_students"] = models.SchemaVectorEntry{ID: "table_students", Type: models.EntryTypeTable}
	repo.entries["table_scores"] = models.SchemaVectorEntry{ID: "table_scores", Type: models.EntryTypeTable}
	repo.similarities["table_students"] = 0.80
	repo.similarities["table_scores"] = 0.10

	mock := llm.NewMockClient()
	mock.CreateEmbeddingFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1}, nil
	}

	s := New(repo, mock, nil, zap.NewNop())
	results, err := s.Search(context.Background(), "which students enrolled recently", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "table_students", results[0].ID)
}

func TestSearchTemplateBoostRanking(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["template_pass_rate"] = models.SchemaVectorEntry{
		ID:   "template_pass_rate",
		Type: models.EntryTypeDocumentation,
	}
	repo.entries["table_scores"] = models.SchemaVectorEntry{ID: "table_scores", Type: models.EntryTypeTable}
	// The plain table scores slightly higher on raw similarity, but a
	// template-like question should rank the template first.
	repo.similarities["template_pass_rate"] = 0.50
	repo.similarities["table_scores"] = 0.55

	mock := llm.NewMockClient()
	mock.CreateEmbeddingFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1}, nil
	}

	s := New(repo, mock, nil, zap.NewNop())
	results, err := s.Search(context.Background(), "What is the pass rate per testing center?", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "template_pass_rate", results[0].ID)
}

func TestSearchTemplateBoostNotAppliedToAdHocQueries(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["template_pass_rate"] = models.SchemaVectorEntry{
		ID:   "template_pass_rate",
		Type: models.EntryTypeDocumentation,
	}
	repo.entries["table_scores"] = models.SchemaVectorEntry{ID: "table_scores", Type: models.EntryTypeTable}
	repo.similarities["template_pass_rate"] = 0.50
	repo.similarities["table_scores"] = 0.55

	mock := llm.NewMockClient()
	mock.CreateEmbeddingFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1}, nil
	}

	s := New(repo, mock, nil, zap.NewNop())
	results, err := s.Search(context.Background(), "show score rows joined with students", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "table_scores", results[0].ID)
}

func TestSearchUsesCache(t *testing.T) {
	repo := newFakeRepo()
	repo.entries["table_students"] = models.SchemaVectorEntry{ID: "table_students"}
	repo.similarities["table_students"] = 0.9

	mock := llm.NewMockClient()
	mock.CreateEmbeddingFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1}, nil
	}

	s := New(repo, mock, NewSearchCache(0, 0), zap.NewNop())
	_, err := s.Search(context.Background(), "Students  In The Diocese", 5)
	require.NoError(t, err)
	// Same query with different whitespace and casing hits the cache.
	_, err = s.Search(context.Background(), "students in the diocese", 5)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.CreateEmbeddingCalls)
}

func TestSearchRepoFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.searchErr = errors.New("connection reset")

	mock := llm.NewMockClient()
	mock.CreateEmbeddingFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1}, nil
	}

	s := New(repo, mock, nil, zap.NewNop())
	_, err := s.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStoreFailure)
}

func TestBuildEntriesContent(t *testing.T) {
	fks := []models.ForeignKeyConstraint{
		{
			ConstraintName:    "scores_student_id_fkey",
			TableName:         "scores",
			ColumnName:        "student_id",
			ForeignTableName:  "students",
			ForeignColumnName: "id",
		},
	}
	docs := []models.DocumentationEntry{
		{
			ID:      "template_avg_score",
			Title:   "Average score",
			Content: "Average score per testing center.",
			Metadata: models.DocumentationMetadata{
				QuestionTemplate: "What is the average score per testing center?",
				Keywords:         []string{"average", "score"},
				Tables:           []string{"scores"},
				Category:         "reporting",
			},
		},
	}

	entries := buildEntries(testTables(), fks, docs)
	byID := make(map[string]models.SchemaVectorEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	table := byID["table_students"]
	assert.Equal(t, models.EntryTypeTable, table.Type)
	assert.Contains(t, table.Content, "diocese_id")
	assert.Contains(t, table.Content, "Tenant-protected")

	col := byID["column_scores_value"]
	assert.Equal(t, models.EntryTypeColumn, col.Type)
	assert.Contains(t, col.Content, "nullable")

	rel := byID["relation_scores_student_id_fkey"]
	assert.Equal(t, models.EntryTypeRelation, rel.Type)
	assert.Contains(t, rel.Content, "scores.student_id = students.id")

	doc := byID["template_avg_score"]
	assert.Equal(t, models.EntryTypeDocumentation, doc.Type)
	assert.True(t, doc.IsTemplate())
	assert.Contains(t, doc.Content, "average score per testing center")
	assert.Equal(t, "scores", doc.TableName)
	assert.Equal(t, "reporting", doc.Metadata["category"])
}
