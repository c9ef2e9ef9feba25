// Package gateway is the single chokepoint between synthesized SQL and
// the target database. Every statement passes the access policy checks
// here regardless of what upstream layers already validated.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/logging"
	"github.com/queryglass/queryglass/pkg/models"
	"github.com/queryglass/queryglass/pkg/policy"
	sqlutil "github.com/queryglass/queryglass/pkg/sql"
)

// ErrConnection marks failures to reach the target database at all, as
// opposed to SQL errors the database reported. Connection failures are
// the only errors Run raises; everything else comes back as an Outcome.
var ErrConnection = errors.New("target database connection failed")

// SQLRunner executes one statement against a target database. The
// production implementation opens a fresh connection per call.
type SQLRunner interface {
	RunQuery(ctx context.Context, connString, sqlText string) (*ResultSet, error)
}

// Gateway applies the access policy and execution cache in front of a
// SQLRunner.
type Gateway struct {
	policy *policy.Engine
	runner SQLRunner
	cache  *ExecutionCache
	logger *zap.Logger
}

func New(policyEngine *policy.Engine, runner SQLRunner, cache *ExecutionCache, logger *zap.Logger) *Gateway {
	return &Gateway{
		policy: policyEngine,
		runner: runner,
		cache:  cache,
		logger: logger.Named("gateway"),
	}
}

// Run pushes one statement through the policy pipeline and, if it
// passes, executes it. SQL errors come back inside the Outcome; the
// returned error is reserved for connection-level failures.
func (g *Gateway) Run(ctx context.Context, sqlText, connString string, caller models.CallerContext) (Outcome, error) {
	if classification := g.policy.Classify(sqlText); classification.Forbidden {
		g.logger.Warn("Refused forbidden statement",
			zap.String("keyword", classification.MatchedKeyword),
			zap.String("sql", logging.SanitizeQuery(sqlText)))
		return Outcome{
			ErrText: "This action is not allowed " + classification.MatchedKeyword,
			Refused: true,
		}, nil
	}

	if missing := g.policy.RequiredFilters(caller, sqlText); len(missing) > 0 {
		// A rejection here means the synthesis layer produced
		// unscoped SQL despite its own rules; log it apart from
		// ordinary SQL errors.
		g.logger.Error("Refused statement missing tenant filters",
			zap.Int64("tenant_id", caller.TenantID),
			zap.String("sql", logging.SanitizeQuery(sqlText)))
		return Outcome{
			ErrText: describeMissingFilters(missing),
			Refused: true,
		}, nil
	}

	validation := sqlutil.ValidateAndNormalize(sqlText)
	if validation.Error != nil {
		return Outcome{ErrText: validation.Error.Error(), Refused: true}, nil
	}
	normalized := validation.NormalizedSQL

	cacheKey := g.cache.Key(normalized, connString)
	if outcome, ok := g.cache.Get(cacheKey); ok {
		g.logger.Debug("Execution cache hit",
			zap.String("sql", logging.SanitizeQuery(normalized)))
		return outcome, nil
	}

	result, err := g.runner.RunQuery(ctx, connString, normalized)
	if err != nil {
		if errors.Is(err, ErrConnection) {
			return Outcome{}, err
		}
		outcome := Outcome{ErrText: err.Error()}
		g.cache.Put(cacheKey, outcome)
		return outcome, nil
	}

	outcome := Outcome{Result: result}
	g.cache.Put(cacheKey, outcome)
	return outcome, nil
}

func describeMissingFilters(missing []policy.MissingFilter) string {
	parts := make([]string, len(missing))
	for i, m := range missing {
		parts[i] = fmt.Sprintf("Query must include %s for tables: %s",
			m.Description, strings.Join(m.Tables, ", "))
	}
	return strings.Join(parts, "; ")
}

// PgxRunner executes statements over a fresh pgx connection per call.
// The target database is caller-supplied and request-scoped, so no pool
// is held.
type PgxRunner struct {
	logger *zap.Logger
}

func NewPgxRunner(logger *zap.Logger) *PgxRunner {
	return &PgxRunner{logger: logger.Named("runner")}
}

var _ SQLRunner = (*PgxRunner)(nil)

func (r *PgxRunner) RunQuery(ctx context.Context, connString, sqlText string) (*ResultSet, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConnection,
			logging.SanitizeError(err))
	}
	defer conn.Close(ctx)

	rows, err := conn.Query(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	fields := make([]string, len(fieldDescs))
	for i, fd := range fieldDescs {
		fields[i] = fd.Name
	}

	var resultRows [][]string
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make([]string, len(values))
		for i, v := range values {
			if v == nil {
				row[i] = "NULL"
				continue
			}
			row[i] = fmt.Sprintf("%v", v)
		}
		resultRows = append(resultRows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &ResultSet{Fields: fields, Rows: resultRows}, nil
}
