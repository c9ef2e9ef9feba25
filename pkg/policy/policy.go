package policy

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/models"
)

// Tenant scoping column conventions for the reporting schema.
const (
	// TenantColumn is the tenant-id column protected tables filter on.
	TenantColumn = "diocese_id"
	// SubTenantColumn is the sub-tenant-id column required for
	// sub-tenant-scoped callers.
	SubTenantColumn = "testing_center_id"
)

// ForbiddenKeywords are the mutating statement-class keywords blocked for
// every caller role, matched as standalone tokens.
var ForbiddenKeywords = []string{"drop", "delete", "alter", "truncate", "grant", "revoke"}

// DefaultProtectedTables maps tenant-protected table names to a textual
// description of their join path to the tenant root. The schema depth for
// tenant scoping is shallow and fixed, so paths are a static lookup
// (direct, one hop, two hops), not a graph search.
var DefaultProtectedTables = map[string]string{
	"users":           "users.diocese_id",
	"students":        "students.diocese_id",
	"testing_centers": "testing_centers.diocese_id",
	"scores":          "scores.student_id -> students.diocese_id",
	"classes":         "classes.testing_center_id -> testing_centers.diocese_id",
	"answers":         "answers.score_id -> scores.student_id -> students.diocese_id",
}

// Classification is the outcome of the forbidden-statement check.
type Classification struct {
	Forbidden      bool
	MatchedKeyword string
}

// MissingFilter describes one filter a statement must gain before the
// gateway will execute it.
type MissingFilter struct {
	Tables      []string // protected tables the statement references
	Description string   // exact filter text to add, e.g. "diocese_id = 7"
}

// Engine evaluates statement-class and row-level scoping rules. Pure
// function of (caller context, SQL text); holds no mutable state.
type Engine struct {
	protected map[string]string
	logger    *zap.Logger
}

// NewEngine creates a policy engine over the default protected-table set.
func NewEngine(logger *zap.Logger) *Engine {
	return NewEngineWithTables(DefaultProtectedTables, logger)
}

// NewEngineWithTables creates a policy engine with a custom
// protected-table map. Used by tests and non-default schemas.
func NewEngineWithTables(protected map[string]string, logger *zap.Logger) *Engine {
	return &Engine{
		protected: protected,
		logger:    logger.Named("policy"),
	}
}

// Classify reports whether the statement belongs to a forbidden class.
// Matching is per token, so a column named "truncated_at" does not trip
// the check, but a DELETE buried mid-statement does. Applies to every
// caller role, including unrestricted.
func (e *Engine) Classify(sqlText string) Classification {
	tokens := Scan(sqlText)
	for _, kw := range ForbiddenKeywords {
		if hasIdentToken(tokens, kw) {
			return Classification{
				Forbidden:      true,
				MatchedKeyword: strings.ToUpper(kw),
			}
		}
	}
	return Classification{}
}

// RequiredFilters returns the row-level filters the statement is missing
// for the given caller. Unrestricted callers bypass scoping entirely.
func (e *Engine) RequiredFilters(caller models.CallerContext, sqlText string) []MissingFilter {
	if caller.Unrestricted() {
		return nil
	}

	tokens := Scan(sqlText)

	var referenced []string
	for table := range e.protected {
		if hasIdentToken(tokens, table) {
			referenced = append(referenced, table)
		}
	}
	if len(referenced) == 0 {
		return nil
	}
	sort.Strings(referenced)

	var missing []MissingFilter

	tenantValue := strconv.FormatInt(caller.TenantID, 10)
	if !hasEqualityFilter(tokens, TenantColumn, tenantValue) &&
		!hasNameEquality(tokens, caller.TenantName) {
		missing = append(missing, MissingFilter{
			Tables:      referenced,
			Description: fmt.Sprintf("%s = %d", TenantColumn, caller.TenantID),
		})
	}

	if caller.Role == models.RoleSubTenant && caller.SubTenantID != nil {
		subValue := strconv.FormatInt(*caller.SubTenantID, 10)
		if !hasEqualityFilter(tokens, SubTenantColumn, subValue) {
			missing = append(missing, MissingFilter{
				Tables:      referenced,
				Description: fmt.Sprintf("%s = %d", SubTenantColumn, *caller.SubTenantID),
			})
		}
	}

	if len(missing) > 0 {
		e.logger.Debug("Statement missing required filters",
			zap.Strings("tables", referenced),
			zap.Int("missing_count", len(missing)))
	}

	return missing
}

// TenantProtected reports whether the named table requires tenant
// scoping, and its join path to the tenant root.
func (e *Engine) TenantProtected(tableName string) (string, bool) {
	path, ok := e.protected[strings.ToLower(tableName)]
	return path, ok
}
