package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/internal/pipeline"
	"github.com/leanfinance/onboarding-service/internal/storage"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

// OnboardingManager orchestrates the full onboarding of one enriched deal:
// department resolution, technician resolution and pipeline execution.
type OnboardingManager struct {
	repo     storage.OnboardingRepo
	mapper   *ServiceMapper
	engine   *pipeline.Engine
	slack    pipeline.Messenger
	clients  pipeline.Clients
	portalID int64
}

// NewOnboardingManager creates a manager. clients carries the external
// dependencies handed to the pipeline steps.
func NewOnboardingManager(
	repo storage.OnboardingRepo,
	mapper *ServiceMapper,
	engine *pipeline.Engine,
	slack pipeline.Messenger,
	clients pipeline.Clients,
	portalID int64,
) *OnboardingManager {
	return &OnboardingManager{
		repo:     repo,
		mapper:   mapper,
		engine:   engine,
		slack:    slack,
		clients:  clients,
		portalID: portalID,
	}
}

// ProcessDeal runs the onboarding for one detected won deal and returns the
// record with its final status (completed, failed or waiting_technician).
//
// Technician resolution depends on the department: departments with assigned
// technician properties take the first matching candidate from the deal and
// cross it with the team sheet; without a match the record parks as
// waiting_technician and the department responsible is pinged. Departments
// without such properties always resolve to the responsible.
func (m *OnboardingManager) ProcessDeal(ctx context.Context, deal *model.EnrichedDeal) (*model.OnboardingRecord, error) {
	loggerCtx := logger.FromContext(ctx).With(
		zap.Int64("deal_id", deal.DealID),
		zap.String("company", deal.CompanyName),
	)

	// Safety net: the detector filters processed deals, but a completed
	// record must never rerun.
	existing, err := m.repo.FindByDealID(ctx, deal.DealID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Status == model.StatusCompleted {
		loggerCtx.Info("Onboarding already completed")
		return existing, nil
	}

	department, err := m.mapper.ResolveDepartment(ctx, deal.ServiceName)
	if err != nil {
		if apperrors.IsServiceNotFoundError(err) || apperrors.IsDepartmentNotAssignedError(err) {
			return m.saveFailed(ctx, deal, err.Error(), existing)
		}
		return nil, err
	}

	technician, err := m.resolveTechnician(ctx, deal, department)
	if err != nil {
		return nil, err
	}
	if technician == nil {
		return m.handleWaitingTechnician(ctx, deal, department, existing)
	}

	record := existing
	if record == nil {
		record, err = m.createRecord(ctx, deal, department)
		if err != nil {
			return nil, err
		}
	}

	pc := pipeline.NewContext(deal, department, technician, m.portalID)
	steps := pipeline.BuildPipeline(m.clients)

	loggerCtx.Info("Running onboarding pipeline",
		zap.String("department", string(department)),
		zap.String("technician", technician.ShortName))
	return m.engine.Run(ctx, record, pc, steps)
}

// resolveTechnician returns the technician for the deal, or nil when the
// department needs one assigned in the CRM and none resolves.
func (m *OnboardingManager) resolveTechnician(ctx context.Context, deal *model.EnrichedDeal, department model.Department) (*model.TeamMember, error) {
	loggerCtx := logger.FromContext(ctx)

	deptProperties, hasProperties := model.DepartmentTechnicianProperties[department]
	if !hasProperties {
		responsible, err := m.mapper.Responsible(ctx, department)
		if err != nil {
			return nil, err
		}
		if responsible != nil {
			loggerCtx.Info("Technician resolved to department responsible",
				zap.String("department", string(department)),
				zap.String("technician", responsible.ShortName))
		}
		return responsible, nil
	}

	var candidate *model.TechnicianCandidate
	for i := range deal.Technicians {
		if containsString(deptProperties, deal.Technicians[i].PropertyName) {
			candidate = &deal.Technicians[i]
			break
		}
	}
	if candidate == nil {
		loggerCtx.Info("No technician assigned on the deal",
			zap.String("department", string(department)),
			zap.Strings("dept_properties", deptProperties))
		return nil, nil
	}

	members, err := m.mapper.TeamMembers(ctx, department)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].HubspotTecID == candidate.HubspotTecID {
			loggerCtx.Info("Technician resolved",
				zap.String("department", string(department)),
				zap.String("technician", members[i].ShortName))
			return &members[i], nil
		}
	}

	loggerCtx.Warn("Assigned technician not found in team sheet",
		zap.String("hubspot_tec_id", candidate.HubspotTecID),
		zap.String("department", string(department)))
	return nil, nil
}

// handleWaitingTechnician parks the onboarding until a technician is assigned
// in the CRM and pings the department responsible on Slack. The notification
// is best effort.
func (m *OnboardingManager) handleWaitingTechnician(ctx context.Context, deal *model.EnrichedDeal, department model.Department, existing *model.OnboardingRecord) (*model.OnboardingRecord, error) {
	loggerCtx := logger.FromContext(ctx).With(
		zap.Int64("deal_id", deal.DealID),
		zap.String("department", string(department)),
	)

	record := existing
	if record == nil {
		var err error
		record, err = m.persistRecord(ctx, deal, department, model.StatusWaitingTechnician, deal.Technicians)
		if err != nil {
			return nil, err
		}
	} else if record.Status != model.StatusWaitingTechnician {
		if err := m.repo.UpdateStatus(ctx, record.ID, model.StatusWaitingTechnician, ""); err != nil {
			return nil, err
		}
		record.Status = model.StatusWaitingTechnician
	}

	loggerCtx.Warn("Onboarding waiting for technician assignment")

	responsible, err := m.mapper.Responsible(ctx, department)
	if err != nil {
		loggerCtx.Error("Failed to look up department responsible", zap.Error(err))
		return record, nil
	}
	if responsible == nil || responsible.SlackID == "" {
		loggerCtx.Warn("No responsible with Slack id to notify")
		return record, nil
	}

	message := fmt.Sprintf(
		"⚠️ Nuevo negocio sin técnico asignado:\n"+
			"*%s*\n"+
			"Empresa: *%s*\n"+
			"Servicio: *%s*\n"+
			"Departamento: *%s*\n\n"+
			"Por favor, asigna un técnico en HubSpot.",
		deal.DealName, deal.CompanyName, deal.ServiceName, department.Label())

	if _, err := m.slack.SendDirectMessage(ctx, responsible.SlackID, message); err != nil {
		loggerCtx.Error("Failed to notify responsible on Slack", zap.Error(err))
	} else {
		loggerCtx.Info("Responsible notified of missing technician",
			zap.String("responsible", responsible.ShortName))
	}
	return record, nil
}

// createRecord persists a new pending record, keeping only the technician
// candidates relevant to the resolved department.
func (m *OnboardingManager) createRecord(ctx context.Context, deal *model.EnrichedDeal, department model.Department) (*model.OnboardingRecord, error) {
	deptProperties := model.DepartmentTechnicianProperties[department]
	var relevant []model.TechnicianCandidate
	for _, t := range deal.Technicians {
		if containsString(deptProperties, t.PropertyName) {
			relevant = append(relevant, t)
		}
	}
	return m.persistRecord(ctx, deal, department, model.StatusPending, relevant)
}

func (m *OnboardingManager) persistRecord(ctx context.Context, deal *model.EnrichedDeal, department model.Department, status model.OnboardingStatus, technicians []model.TechnicianCandidate) (*model.OnboardingRecord, error) {
	record := &model.OnboardingRecord{
		DealID:         deal.DealID,
		DealName:       deal.DealName,
		CompanyName:    deal.CompanyName,
		ServiceName:    deal.ServiceName,
		Department:     department,
		HubspotOwnerID: deal.HubspotOwnerID,
		Status:         status,
	}
	for _, t := range technicians {
		record.Technicians = append(record.Technicians, model.TechnicianInfo{
			HubspotTecID: t.HubspotTecID,
			PropertyName: t.PropertyName,
		})
	}
	if err := m.repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// saveFailed records the onboarding as failed before the pipeline ever ran,
// typically because the service could not be mapped to a department.
func (m *OnboardingManager) saveFailed(ctx context.Context, deal *model.EnrichedDeal, reason string, existing *model.OnboardingRecord) (*model.OnboardingRecord, error) {
	record := existing
	if record == nil {
		var err error
		record, err = m.persistRecord(ctx, deal, "", model.StatusFailed, nil)
		if err != nil {
			return nil, err
		}
	} else if record.Status != model.StatusFailed {
		if err := m.repo.UpdateStatus(ctx, record.ID, model.StatusFailed, ""); err != nil {
			return nil, err
		}
		record.Status = model.StatusFailed
	}

	logger.FromContext(ctx).Error("Onboarding failed before the pipeline",
		zap.Int64("deal_id", deal.DealID),
		zap.String("reason", reason))
	return record, nil
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
