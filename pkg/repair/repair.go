// Package repair executes candidate SQL and, on database errors, feeds
// the error text back into a correction model call, retrying a bounded
// number of times. Pending → Executing → {Success, CorrectionNeeded} →
// Correcting → Executing → … → Success | Exhausted.
package repair

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/queryglass/queryglass/pkg/gateway"
	"github.com/queryglass/queryglass/pkg/llm"
	"github.com/queryglass/queryglass/pkg/logging"
	"github.com/queryglass/queryglass/pkg/models"
	"github.com/queryglass/queryglass/pkg/prompts"
	"github.com/queryglass/queryglass/pkg/retry"
	"github.com/queryglass/queryglass/pkg/synthesis"
)

const (
	defaultBackoffBase  = 500 * time.Millisecond
	defaultCycleTimeout = 45 * time.Second
	correctionTemp      = 0.1
)

// Executor runs one statement through the policy-enforcing gateway.
type Executor interface {
	Run(ctx context.Context, sqlText, connString string, caller models.CallerContext) (gateway.Outcome, error)
}

// Result is the terminal state of one validate-and-correct run.
type Result struct {
	// SQL is the final statement: the original on first-attempt
	// success, the last correction otherwise.
	SQL     string
	IsValid bool
	// Output is the serialized result set on success, the last error
	// text on exhaustion or refusal.
	Output      string
	Attempts    int
	Corrections int
}

// Loop drives execution attempts and correction calls.
type Loop struct {
	executor     Executor
	client       llm.Client
	backoffBase  time.Duration
	cycleTimeout time.Duration
	logger       *zap.Logger
}

func New(executor Executor, client llm.Client, logger *zap.Logger) *Loop {
	return &Loop{
		executor:     executor,
		client:       client,
		backoffBase:  defaultBackoffBase,
		cycleTimeout: defaultCycleTimeout,
		logger:       logger.Named("repair"),
	}
}

// ValidateAndCorrect executes the statement, correcting and retrying on
// database errors. With maxRetries = k it issues at most k executions
// and at most k-1 correction calls. Policy refusals are terminal and
// never corrected. The returned error is reserved for connection-level
// failures and context cancellation.
func (l *Loop) ValidateAndCorrect(ctx context.Context, sqlText, connString string, caller models.CallerContext, maxRetries int) (Result, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	result := Result{SQL: sqlText}

	outcome, err := l.executor.Run(ctx, sqlText, connString, caller)
	if err != nil {
		return result, err
	}
	result.Attempts = 1

	if !outcome.Failed() {
		result.IsValid = true
		result.Output = outcome.Serialize()
		return result, nil
	}
	if outcome.Refused {
		result.Output = outcome.ErrText
		return result, nil
	}

	lastError := outcome.ErrText

	for correction := 1; correction < maxRetries; correction++ {
		// Backoff scales with the attempt number so repeated invalid
		// statements don't hammer the database back-to-back.
		if err := retry.Sleep(ctx, time.Duration(correction)*l.backoffBase); err != nil {
			result.Output = lastError
			return result, err
		}

		cycleCtx, cancel := context.WithTimeout(ctx, l.cycleTimeout)
		corrected, corrErr := l.correct(cycleCtx, result.SQL, lastError)
		result.Corrections++
		if corrErr != nil {
			cancel()
			// Correction failure (including cycle timeout) consumes
			// this retry and moves on.
			l.logger.Warn("Correction attempt failed",
				zap.Int("correction", correction),
				zap.Error(corrErr))
			if ctx.Err() != nil {
				result.Output = lastError
				return result, ctx.Err()
			}
			continue
		}

		result.SQL = corrected
		outcome, err = l.executor.Run(cycleCtx, corrected, connString, caller)
		cancel()
		if err != nil {
			result.Output = lastError
			return result, err
		}
		result.Attempts++

		if !outcome.Failed() {
			result.IsValid = true
			result.Output = outcome.Serialize()
			return result, nil
		}
		if outcome.Refused {
			result.Output = outcome.ErrText
			return result, nil
		}
		lastError = outcome.ErrText
	}

	l.logger.Warn("Repair retries exhausted",
		zap.Int("attempts", result.Attempts),
		zap.String("last_error", logging.TruncateString(lastError, 200)))
	result.Output = lastError
	return result, nil
}

// correct asks the model to fix the statement using only the database's
// error text, returning SQL only.
func (l *Loop) correct(ctx context.Context, failedSQL, dbError string) (string, error) {
	prompt := prompts.BuildCorrectionPrompt(failedSQL, dbError)
	response, err := l.client.GenerateResponse(ctx, prompt, prompts.SystemPrompt, correctionTemp)
	if err != nil {
		return "", fmt.Errorf("correction model call: %w", err)
	}

	corrected, err := synthesis.ExtractSQLBlock(response)
	if err != nil {
		return "", fmt.Errorf("correction response: %w", err)
	}
	return corrected, nil
}
