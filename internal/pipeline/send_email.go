package pipeline

import (
	"context"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/mailer"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

// SendEmailStep emails the technician the onboarding summary with links to
// the Drive folder, the Holded contact and the CRM deal. Runs last so the
// links created by earlier steps are available.
type SendEmailStep struct {
	mail mailer.Sender
}

// NewSendEmailStep creates the email step.
func NewSendEmailStep(sender mailer.Sender) *SendEmailStep {
	return &SendEmailStep{mail: sender}
}

func (s *SendEmailStep) Name() model.StepName {
	return model.StepSendEmail
}

func (s *SendEmailStep) CheckAlreadyDone(context.Context, *Context) (bool, error) {
	return false, nil
}

func (s *SendEmailStep) Execute(ctx context.Context, pc *Context) Result {
	loggerCtx := logger.FromContext(ctx).With(
		zap.Int64("deal_id", pc.DealID),
		zap.String("company", pc.CompanyName),
	)

	if pc.Technician == nil {
		return failure("no technician assigned")
	}
	if pc.Technician.Email == "" {
		return failure("technician has no email address")
	}

	subject := fmt.Sprintf("Nuevo onboarding: %s — %s", pc.CompanyName, pc.ServiceName)
	messageID, err := s.mail.Send(ctx, pc.Technician.Email, subject, buildOnboardingEmailHTML(pc))
	if err != nil {
		return failure("failed to send email: %v", err)
	}

	loggerCtx.Info("Onboarding email sent to technician",
		zap.String("technician", pc.Technician.ShortName),
		zap.String("email", pc.Technician.Email),
		zap.String("message_id", messageID))

	return Result{Success: true, Data: map[string]interface{}{"email_message_id": messageID}}
}

func buildOnboardingEmailHTML(pc *Context) string {
	techName := "técnico"
	if pc.Technician != nil && pc.Technician.ShortName != "" {
		techName = pc.Technician.ShortName
	}

	var links strings.Builder
	if pc.DriveFolderURL != "" {
		fmt.Fprintf(&links, `<li><strong>Google Drive:</strong> <a href="%s">Carpeta del cliente</a></li>`+"\n", pc.DriveFolderURL)
	}
	if pc.HoldedContactURL != "" {
		fmt.Fprintf(&links, `<li><strong>Holded:</strong> <a href="%s">Ficha del contacto</a></li>`+"\n", pc.HoldedContactURL)
	}
	if dealURL := pc.DealURL(); dealURL != "" {
		fmt.Fprintf(&links, `<li><strong>HubSpot:</strong> <a href="%s">Deal en HubSpot</a></li>`+"\n", dealURL)
	}

	row := func(label, value string) string {
		return fmt.Sprintf(`        <tr>
            <td style="padding: 8px; border: 1px solid #ddd; font-weight: bold;">%s</td>
            <td style="padding: 8px; border: 1px solid #ddd;">%s</td>
        </tr>`, label, html.EscapeString(value))
	}

	return fmt.Sprintf(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
    <h2>Nuevo onboarding asignado</h2>

    <p>Hola %s,</p>

    <p>Se te ha asignado un nuevo negocio. A continuación tienes los detalles:</p>

    <table style="border-collapse: collapse; width: 100%%; margin: 16px 0;">
%s
%s
%s
%s
    </table>

    <h3>Enlaces</h3>
    <ul>
        %s
    </ul>

    <div style="background-color: #fff3cd; border: 1px solid #ffc107; border-radius: 4px; padding: 12px; margin: 16px 0;">
        <strong>⚠️ Importante:</strong> La ficha del cliente en Holded se ha creado automáticamente
        y <strong>no ha sido supervisada</strong>. Por favor, revisa que los datos sean correctos
        antes de empezar a trabajar.
    </div>

    <p style="color: #666; font-size: 12px; margin-top: 24px;">
        Este email ha sido enviado automáticamente por el sistema de onboardings de LeanFinance.
    </p>
</div>`,
		html.EscapeString(techName),
		row("Negocio", pc.DealName),
		row("Empresa", pc.CompanyName),
		row("Servicio", pc.ServiceName),
		row("Departamento", pc.Department.Label()),
		links.String())
}
