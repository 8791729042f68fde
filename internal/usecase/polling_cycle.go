package usecase

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/mailer"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/internal/observer"
	"github.com/leanfinance/onboarding-service/internal/storage"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

// PollingCycle is one scheduled run: detect new won deals and process them,
// retry resumable onboardings, then mail the admin a summary of failures.
type PollingCycle struct {
	detector   *DealDetector
	manager    *OnboardingManager
	repo       storage.OnboardingRepo
	mail       mailer.Sender
	adminEmail string
}

// NewPollingCycle creates the cycle runner.
func NewPollingCycle(
	detector *DealDetector,
	manager *OnboardingManager,
	repo storage.OnboardingRepo,
	mail mailer.Sender,
	adminEmail string,
) *PollingCycle {
	return &PollingCycle{
		detector:   detector,
		manager:    manager,
		repo:       repo,
		mail:       mail,
		adminEmail: adminEmail,
	}
}

// Run executes one full cycle. Detection or listing failures abort the cycle
// and propagate so the scheduler's error hook can alert the admin; failures
// of individual deals are contained and reflected in their records.
func (p *PollingCycle) Run(ctx context.Context) error {
	cycleID := uuid.NewString()
	ctx = logger.WithCycleID(ctx, cycleID)
	loggerCtx := logger.FromContext(ctx)

	loggerCtx.Info("Polling cycle started")
	startTime := time.Now()

	err := p.runPhases(ctx)

	observer.ObservePollingCycleDuration(time.Since(startTime))
	if err != nil {
		observer.IncPollingCycle("error")
		loggerCtx.Error("Polling cycle aborted", zap.Error(err))
		return err
	}
	observer.IncPollingCycle("success")
	loggerCtx.Info("Polling cycle completed", zap.Duration("took", time.Since(startTime)))
	return nil
}

func (p *PollingCycle) runPhases(ctx context.Context) error {
	if err := p.processNewDeals(ctx); err != nil {
		return err
	}
	if err := p.retryResumable(ctx); err != nil {
		return err
	}
	p.notifyFailedSummary(ctx)
	return nil
}

func (p *PollingCycle) processNewDeals(ctx context.Context) error {
	loggerCtx := logger.FromContext(ctx)

	newDeals, err := p.detector.DetectNewDeals(ctx)
	if err != nil {
		return fmt.Errorf("deal detection failed: %w", err)
	}
	loggerCtx.Info("New deals to process", zap.Int("count", len(newDeals)))

	for i := range newDeals {
		p.safeProcessDeal(ctx, &newDeals[i], "new_deal")
	}
	return nil
}

// retryResumable re-enriches persisted onboardings that have not completed
// (pending, waiting for a technician or interrupted mid-run) and pushes them
// through the manager again. Per-record failures never stop the sweep.
func (p *PollingCycle) retryResumable(ctx context.Context) error {
	loggerCtx := logger.FromContext(ctx)

	resumable, err := p.repo.ListResumable(ctx)
	if err != nil {
		return fmt.Errorf("listing resumable onboardings failed: %w", err)
	}
	if len(resumable) == 0 {
		return nil
	}
	loggerCtx.Info("Resumable onboardings found", zap.Int("count", len(resumable)))

	for i := range resumable {
		record := &resumable[i]
		recordLogger := loggerCtx.With(
			zap.Int64("onboarding_id", record.ID),
			zap.Int64("deal_id", record.DealID))

		enriched, err := p.detector.EnrichDealByID(ctx, record.DealID)
		if err != nil {
			recordLogger.Error("Re-enrichment failed", zap.Error(err))
			continue
		}
		if enriched == nil {
			recordLogger.Warn("Deal no longer enrichable, leaving for a later cycle")
			continue
		}

		p.safeProcessDeal(ctx, enriched, "retry")
	}
	return nil
}

// safeProcessDeal contains per-deal failures so one broken deal never stops
// the cycle.
func (p *PollingCycle) safeProcessDeal(ctx context.Context, deal *model.EnrichedDeal, processContext string) {
	loggerCtx := logger.FromContext(ctx).With(
		zap.Int64("deal_id", deal.DealID),
		zap.String("context", processContext))

	record, err := p.manager.ProcessDeal(ctx, deal)
	if err != nil {
		observer.IncDealProcessed(processContext, "error")
		loggerCtx.Error("Deal processing error", zap.Error(err))
		return
	}
	observer.IncDealProcessed(processContext, string(record.Status))
	loggerCtx.Info("Deal processed", zap.String("status", string(record.Status)))
}

// notifyFailedSummary mails the admin when failed onboardings remain after
// the cycle. Best effort: a mail failure only logs.
func (p *PollingCycle) notifyFailedSummary(ctx context.Context) {
	loggerCtx := logger.FromContext(ctx)

	failed, err := p.repo.ListFailed(ctx)
	if err != nil {
		loggerCtx.Error("Failed to list failed onboardings for the summary", zap.Error(err))
		return
	}
	if len(failed) == 0 {
		return
	}
	loggerCtx.Warn("Failed onboardings present", zap.Int("count", len(failed)))

	var lines strings.Builder
	fmt.Fprintf(&lines, "Se encontraron %d onboarding(s) con errores:\n\n", len(failed))
	for _, r := range failed {
		department := string(r.Department)
		if department == "" {
			department = "sin asignar"
		}
		fmt.Fprintf(&lines, "  • Deal %d: %s (depto: %s)\n", r.DealID, r.DealName, department)
	}

	subject := fmt.Sprintf("[LeanFinance Onboardings] %d onboarding(s) con error", len(failed))
	body := "<pre>" + html.EscapeString(lines.String()) + "</pre>"

	_, err = p.mail.Send(ctx, p.adminEmail, subject, body)
	observer.IncAdminNotification("failed_summary", err)
	if err != nil {
		loggerCtx.Error("Failed-summary email error", zap.Error(err))
		return
	}
	loggerCtx.Info("Admin notified of failed onboardings", zap.Int("count", len(failed)))
}

// NotifyCriticalError mails the admin when a cycle dies with an unhandled
// error. An empty trace is omitted from the body. Never returns an error and
// never panics; this runs from the scheduler's error path.
func (p *PollingCycle) NotifyCriticalError(ctx context.Context, cause error, trace string) {
	loggerCtx := logger.FromContext(ctx)

	detail := "sin detalle"
	if cause != nil {
		detail = cause.Error()
	}
	body := fmt.Sprintf(
		"<h2>El ciclo de polling ha fallado con un error no controlado.</h2>"+
			"<p><strong>Error:</strong> %s</p>",
		html.EscapeString(detail))
	if trace != "" {
		body += fmt.Sprintf("<pre>%s</pre>", html.EscapeString(trace))
	}

	_, err := p.mail.Send(ctx, p.adminEmail, "[LeanFinance Onboardings] ERROR CRITICO en polling", body)
	observer.IncAdminNotification("critical_error", err)
	if err != nil {
		loggerCtx.Error("Admin critical-error notification failed", zap.Error(err))
		return
	}
	loggerCtx.Info("Admin notified of critical error")
}
