package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

// NotifySlackStep sends a DM to the assigned technician announcing the new
// deal. No idempotency check: a rerun after failure sends the message again.
type NotifySlackStep struct {
	slack Messenger
}

// NewNotifySlackStep creates the Slack notification step.
func NewNotifySlackStep(slackClient Messenger) *NotifySlackStep {
	return &NotifySlackStep{slack: slackClient}
}

func (s *NotifySlackStep) Name() model.StepName {
	return model.StepNotifySlack
}

func (s *NotifySlackStep) CheckAlreadyDone(context.Context, *Context) (bool, error) {
	return false, nil
}

func (s *NotifySlackStep) Execute(ctx context.Context, pc *Context) Result {
	loggerCtx := logger.FromContext(ctx).With(
		zap.Int64("deal_id", pc.DealID),
		zap.String("company", pc.CompanyName),
	)

	if pc.Technician == nil || pc.Technician.SlackID == "" {
		return failure("technician has no slack id")
	}

	ts, err := s.slack.SendDirectMessage(ctx, pc.Technician.SlackID, buildTechnicianMessage(pc))
	if err != nil {
		return failure("failed to send direct message: %v", err)
	}

	loggerCtx.Info("Technician notified on Slack",
		zap.String("technician", pc.Technician.ShortName),
		zap.String("slack_id", pc.Technician.SlackID),
		zap.String("ts", ts))

	return Result{Success: true, Data: map[string]interface{}{"slack_ts": ts}}
}

func buildTechnicianMessage(pc *Context) string {
	techName := "técnico"
	if pc.Technician != nil && pc.Technician.ShortName != "" {
		techName = pc.Technician.ShortName
	}
	return fmt.Sprintf(
		"Hola %s 👋\n\n"+
			"Se te ha asignado un nuevo negocio: *%s*\n"+
			"Empresa: *%s*\n"+
			"Servicio: *%s*\n\n"+
			"Revisa tu bandeja de entrada de email para más información.",
		techName, pc.DealName, pc.CompanyName, pc.ServiceName)
}
