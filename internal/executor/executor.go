// Package executor runs one compliance scan end to end: account gate,
// credential retrieval, engine dispatch, and execution bookkeeping.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/threatengine/onboarding/internal/engine"
	"github.com/threatengine/onboarding/internal/metrics"
	"github.com/threatengine/onboarding/internal/models"
	"github.com/threatengine/onboarding/internal/secrets"
)

var (
	// ErrAccountNotFound means the scan targets an account that no longer exists.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountNotActive means the account exists but has not finished
	// onboarding (or was moved to error).
	ErrAccountNotActive = errors.New("account is not active")
)

// AccountStore is the account lookup the executor needs.
type AccountStore interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
}

// ExecutionStore records execution history.
type ExecutionStore interface {
	Create(ctx context.Context, scheduleID, accountID, triggeredBy string, startedAt time.Time) (*models.Execution, error)
	Complete(ctx context.Context, id, scanID string, total, passed, failed int) error
	Fail(ctx context.Context, id, errorMessage string) error
}

// ScanResultStore records engine scan metadata.
type ScanResultStore interface {
	Create(ctx context.Context, scanID, accountID, providerType, scanType string, startedAt time.Time) error
	UpdateStatus(ctx context.Context, scanID, status string, total, passed, failed int) error
}

// Engine dispatches scans to the provider engines.
type Engine interface {
	Scan(ctx context.Context, req engine.ScanRequest) (*engine.ScanResult, error)
}

// Request describes one scan to run.
type Request struct {
	ScheduleID      string
	AccountID       string
	ProviderType    string
	Regions         []string
	Services        []string
	ExcludeServices []string
	TriggeredBy     string
}

// Executor runs scans.
type Executor struct {
	accounts    AccountStore
	executions  ExecutionStore
	scanResults ScanResultStore
	vault       secrets.Gateway
	engine      Engine
	log         *slog.Logger
}

// New returns an Executor.
func New(accounts AccountStore, executions ExecutionStore, scanResults ScanResultStore,
	vault secrets.Gateway, eng Engine, log *slog.Logger) *Executor {
	return &Executor{
		accounts:    accounts,
		executions:  executions,
		scanResults: scanResults,
		vault:       vault,
		engine:      eng,
		log:         log,
	}
}

// ExecuteScan runs the gate chain and dispatches the scan. It writes nothing:
// missing account, inactive account, and credential failures all surface as
// errors before the engine is contacted.
func (x *Executor) ExecuteScan(ctx context.Context, req Request) (*engine.ScanResult, error) {
	account, err := x.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, req.AccountID)
	}
	if account.Status != models.AccountActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrAccountNotActive, req.AccountID, account.Status)
	}

	creds, err := x.vault.Retrieve(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("retrieve credentials: %w", err)
	}

	return x.engine.Scan(ctx, engine.ScanRequest{
		Provider:        req.ProviderType,
		Identifier:      account.AccountNumber,
		Credentials:     creds.Fields,
		Regions:         req.Regions,
		Services:        req.Services,
		ExcludeServices: req.ExcludeServices,
	})
}

// RunTracked wraps ExecuteScan with execution history: it creates a running
// execution, runs the scan, and applies exactly one terminal update. The
// execution id is returned even when the scan fails so callers can point at
// the failure record.
func (x *Executor) RunTracked(ctx context.Context, req Request) (string, *engine.ScanResult, error) {
	startedAt := time.Now().UTC()
	exec, err := x.executions.Create(ctx, req.ScheduleID, req.AccountID, req.TriggeredBy, startedAt)
	if err != nil {
		return "", nil, fmt.Errorf("create execution: %w", err)
	}

	metrics.IncExecutionsRunning()
	defer metrics.DecExecutionsRunning()

	result, scanErr := x.ExecuteScan(ctx, req)
	if scanErr != nil {
		if err := x.executions.Fail(ctx, exec.ID, scanErr.Error()); err != nil {
			x.log.Error("mark execution failed", "execution_id", exec.ID, "error", err)
		}
		metrics.IncExecutionsTotal(models.ExecutionFailed)
		return exec.ID, nil, scanErr
	}

	if err := x.executions.Complete(ctx, exec.ID, result.ScanID, result.TotalChecks, result.PassedChecks, result.FailedChecks); err != nil {
		x.log.Error("mark execution completed", "execution_id", exec.ID, "error", err)
	}
	metrics.IncExecutionsTotal(models.ExecutionCompleted)
	x.recordScanResult(ctx, req, result, startedAt)
	return exec.ID, result, nil
}

// recordScanResult keeps a local copy of the engine scan metadata. Best-effort:
// the execution record is the source of truth for history.
func (x *Executor) recordScanResult(ctx context.Context, req Request, result *engine.ScanResult, startedAt time.Time) {
	if x.scanResults == nil || result.ScanID == "" {
		return
	}
	scanType := "scheduled"
	if req.TriggeredBy != models.TriggeredByScheduler {
		scanType = "on_demand"
	}
	if err := x.scanResults.Create(ctx, result.ScanID, req.AccountID, req.ProviderType, scanType, startedAt); err != nil {
		x.log.Warn("record scan result", "scan_id", result.ScanID, "error", err)
		return
	}
	status := result.Status
	if status == "" {
		status = "completed"
	}
	if err := x.scanResults.UpdateStatus(ctx, result.ScanID, status, result.TotalChecks, result.PassedChecks, result.FailedChecks); err != nil {
		x.log.Warn("record scan result status", "scan_id", result.ScanID, "error", err)
	}
}
