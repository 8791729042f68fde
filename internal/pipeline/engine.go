package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/internal/observer"
	"github.com/leanfinance/onboarding-service/internal/storage"
	"github.com/leanfinance/onboarding-service/pkg/logger"
	"github.com/leanfinance/onboarding-service/pkg/utils"
)

// Engine executes steps in order, persisting the state of each one.
//
// Error policy: a failed step is recorded and the run continues with the next
// step. The onboarding ends completed only when no step failed; otherwise it
// ends failed and the next polling cycle retries it. Steps reporting
// themselves already done are recorded as skipped.
type Engine struct {
	repo storage.OnboardingRepo
}

// NewEngine creates a pipeline engine on the given repository.
func NewEngine(repo storage.OnboardingRepo) *Engine {
	return &Engine{repo: repo}
}

// Run executes the pipeline for an already-persisted onboarding record and
// returns it with its final status. Returns an error only when persistence
// itself fails; step failures are captured in the record.
func (e *Engine) Run(ctx context.Context, record *model.OnboardingRecord, pc *Context, steps []Step) (*model.OnboardingRecord, error) {
	if record.ID == 0 {
		return nil, fmt.Errorf("onboarding record must be persisted before running the pipeline")
	}

	loggerCtx := logger.FromContext(ctx).With(
		zap.Int64("onboarding_id", record.ID),
		zap.Int64("deal_id", record.DealID),
	)
	loggerCtx.Info("Pipeline started", zap.Int("steps", len(steps)))

	if err := e.repo.UpdateStatus(ctx, record.ID, model.StatusInProgress, ""); err != nil {
		return nil, err
	}
	record.Status = model.StatusInProgress

	var failedSteps []string

	for _, step := range steps {
		stepLogger := loggerCtx.With(zap.String("step", string(step.Name())))

		startedAt := utils.Now()
		stepRecord := model.StepRecord{
			OnboardingID: record.ID,
			StepName:     step.Name(),
			Status:       model.StepInProgress,
			StartedAt:    &startedAt,
		}
		if err := e.repo.UpsertStep(ctx, stepRecord); err != nil {
			return nil, err
		}
		if err := e.repo.UpdateStatus(ctx, record.ID, model.StatusInProgress, step.Name()); err != nil {
			return nil, err
		}
		record.CurrentStep = step.Name()
		stepLogger.Info("Step started")

		result := runStepSafe(ctx, step, pc)

		completedAt := utils.Now()
		stepRecord.CompletedAt = &completedAt
		stepRecord.ResultData = marshalResultData(result.Data)

		switch {
		case result.Skipped():
			stepRecord.Status = model.StepSkipped
			stepLogger.Info("Step skipped, already done")
		case result.Success:
			stepRecord.Status = model.StepCompleted
			stepLogger.Info("Step completed")
		default:
			stepRecord.Status = model.StepFailed
			stepRecord.ErrorMessage = result.Error
			failedSteps = append(failedSteps, string(step.Name()))
			stepLogger.Warn("Step failed", zap.String("error", result.Error))
		}
		observer.IncPipelineStep(string(step.Name()), string(stepRecord.Status))

		if err := e.repo.UpsertStep(ctx, stepRecord); err != nil {
			return nil, err
		}
	}

	finalStatus := model.StatusCompleted
	if len(failedSteps) > 0 {
		finalStatus = model.StatusFailed
		loggerCtx.Warn("Pipeline completed with failures", zap.Strings("failed_steps", failedSteps))
	} else {
		loggerCtx.Info("Pipeline completed successfully")
	}

	if err := e.repo.UpdateStatus(ctx, record.ID, finalStatus, ""); err != nil {
		return nil, err
	}
	record.Status = finalStatus
	record.CurrentStep = ""

	return record, nil
}

// runStepSafe isolates step panics: a panicking step fails like any other
// instead of aborting the run.
func runStepSafe(ctx context.Context, step Step, pc *Context) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			logger.FromContext(ctx).Error("Step panicked",
				zap.String("step", string(step.Name())),
				zap.Any("panic", r))
			result = failure("unhandled panic: %v", r)
		}
	}()
	return RunStep(ctx, step, pc)
}

func marshalResultData(data map[string]interface{}) datatypes.JSON {
	if len(data) == 0 {
		return nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
