package synthesis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/apperrors"
	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/models"
)

// fakeSchema serves a static catalog snapshot.
type fakeSchema struct {
	tables  []models.SchemaTable
	fks     []models.ForeignKeyConstraint
	plan    string
	listErr error
}

func (f *fakeSchema) ListTables(context.Context) ([]models.SchemaTable, error) {
	return f.tables, f.listErr
}

func (f *fakeSchema) ListForeignKeys(context.Context) ([]models.ForeignKeyConstraint, error) {
	return f.fks, nil
}

func (f *fakeSchema) Explain(_ context.Context, sqlText string) (string, error) {
	if f.plan == "" {
		return "Seq Scan", nil
	}
	return f.plan, nil
}

func (f *fakeSchema) IndexUsage(context.Context) ([]models.IndexUsageStat, error) {
	return []models.IndexUsageStat{{TableName: "scores", IndexName: "scores_pkey", Scans: 12}}, nil
}

func (f *fakeSchema) TableSizes(context.Context) ([]models.TableSizeStat, error) {
	return []models.TableSizeStat{{TableName: "scores", RowCount: 1000, TotalBytes: 65536}}, nil
}

type fakeDocuments struct {
	entries   []models.SchemaVectorEntry
	err       error
	calls     int
	lastQuery string
}

func (f *fakeDocuments) Search(_ context.Context, query string, limit int) ([]models.SchemaVectorEntry, error) {
	f.calls++
	f.lastQuery = query
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

type fakeResolver struct {
	id   int64
	name string
	err  error
}

func (f *fakeResolver) ResolveTenantName(context.Context, string) (int64, string, error) {
	return f.id, f.name, f.err
}

// testDeps builds orchestrator deps over the default fake schema and an
// unconfigured mock client. Tests override fields as needed.
func testDeps(schema *fakeSchema) Deps {
	if schema == nil {
		schema = defaultSchema()
	}
	return Deps{
		Client:    llm.NewMockClient(),
		Schema:    schema,
		Documents: &fakeDocuments{},
		Resolver:  &fakeResolver{},
		Logger:    zap.NewNop(),
	}
}

func defaultSchema() *fakeSchema {
	return &fakeSchema{
		tables: []models.SchemaTable{
			{
				SchemaName: "public",
				TableName:  "users",
				Columns: []models.Column{
					{Name: "id", DataType: "bigint"},
					{Name: "role_id", DataType: "integer"},
					{Name: "diocese_id", DataType: "bigint"},
				},
				Access: &models.AccessDescriptor{
					RequiresTenantFilter:  true,
					JoinPathToTenant:      "users.diocese_id",
					HasDirectTenantColumn: true,
				},
			},
			{
				SchemaName: "public",
				TableName:  "scores",
				Columns: []models.Column{
					{Name: "id", DataType: "bigint"},
					{Name: "student_id", DataType: "bigint"},
					{Name: "points_earned", DataType: "integer"},
					{Name: "points_possible", DataType: "integer"},
				},
			},
		},
		fks: []models.ForeignKeyConstraint{
			{
				ConstraintName:    "scores_student_id_fkey",
				TableName:         "scores",
				ColumnName:        "student_id",
				ForeignTableName:  "students",
				ForeignColumnName: "id",
			},
		},
	}
}

func TestNewOrchestratorModes(t *testing.T) {
	deps := testDeps(nil)

	tests := []struct {
		mode    string
		want    any
		wantErr bool
	}{
		{mode: ModeSinglePass, want: (*SinglePass)(nil)},
		{mode: "", want: (*SinglePass)(nil)},
		{mode: ModeMultiAgent, want: (*MultiAgent)(nil)},
		{mode: ModeRetrieval, want: (*RetrievalAugmented)(nil)},
		{mode: "psychic", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("mode_"+tt.mode, func(t *testing.T) {
			orch, err := NewOrchestrator(tt.mode, deps)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.IsType(t, tt.want, orch)
		})
	}
}

func TestScopedQuestion(t *testing.T) {
	sub := int64(12)
	question := "How many students passed?"

	unrestricted := scopedQuestion(question, models.Unrestricted())
	assert.Equal(t, question, unrestricted)

	tenant := scopedQuestion(question, models.CallerContext{
		TenantID: 43, TenantName: "Springfield", Role: models.RoleTenant,
	})
	assert.Contains(t, tenant, "diocese_id = 43")
	assert.Contains(t, tenant, "Springfield")

	subTenant := scopedQuestion(question, models.CallerContext{
		TenantID: 43, SubTenantID: &sub, Role: models.RoleSubTenant,
	})
	assert.Contains(t, subTenant, "diocese_id = 43")
	assert.Contains(t, subTenant, "testing_center_id = 12")
}

func TestDescribeSchemaMentionsScoping(t *testing.T) {
	schema := defaultSchema()
	description := describeSchema(schema.tables, schema.fks)

	assert.Contains(t, description, "public.users")
	assert.Contains(t, description, "role_id (integer, not null)")
	assert.Contains(t, description, "Tenant-scoped via users.diocese_id")
	assert.Contains(t, description, "scores.student_id -> students.id")
}

func TestSynthesizePropagatesSchemaErrors(t *testing.T) {
	schema := defaultSchema()
	schema.listErr = errors.New("catalog unavailable")
	deps := testDeps(schema)

	orch := NewSinglePass(deps)
	_, err := orch.Synthesize(context.Background(), "anything", models.Unrestricted())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrNoSQLBlock)
}
