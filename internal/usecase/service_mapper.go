// Package usecase wires detection, department resolution and pipeline
// execution into the polling cycle the scheduler runs.
package usecase

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

// Directory is the team/service sheet surface the mapper needs.
type Directory interface {
	FetchTeamMembers(ctx context.Context) ([]model.TeamMember, error)
	FetchServices(ctx context.Context) ([]model.ServiceEntry, error)
}

// ServiceMapper resolves a deal's service name to the department that
// executes it and exposes that department's team.
type ServiceMapper struct {
	directory Directory
}

// NewServiceMapper creates a mapper on the given directory.
func NewServiceMapper(directory Directory) *ServiceMapper {
	return &ServiceMapper{directory: directory}
}

// ResolveDepartment finds the department for a service name. Matching is
// exact after trimming and lowercasing. Returns apperrors.ErrServiceNotFound
// when the service is absent from the directory and
// apperrors.ErrDepartmentNotAssigned when present without a department.
func (m *ServiceMapper) ResolveDepartment(ctx context.Context, serviceName string) (model.Department, error) {
	loggerCtx := logger.FromContext(ctx)

	services, err := m.directory.FetchServices(ctx)
	if err != nil {
		return "", err
	}

	normalized := normalizeServiceName(serviceName)
	for _, entry := range services {
		if normalizeServiceName(entry.Name) != normalized {
			continue
		}
		if entry.Department == "" {
			loggerCtx.Warn("Service has no department assigned", zap.String("service", serviceName))
			return "", fmt.Errorf("%w: %q", apperrors.ErrDepartmentNotAssigned, serviceName)
		}
		loggerCtx.Info("Service mapped to department",
			zap.String("service", serviceName),
			zap.String("department", string(entry.Department)))
		return entry.Department, nil
	}

	loggerCtx.Warn("Service not found in directory", zap.String("service", serviceName))
	return "", fmt.Errorf("%w: %q", apperrors.ErrServiceNotFound, serviceName)
}

// TeamMembers returns all members of a department.
func (m *ServiceMapper) TeamMembers(ctx context.Context, department model.Department) ([]model.TeamMember, error) {
	members, err := m.directory.FetchTeamMembers(ctx)
	if err != nil {
		return nil, err
	}
	var result []model.TeamMember
	for _, member := range members {
		if member.Department == department {
			result = append(result, member)
		}
	}
	return result, nil
}

// Responsible returns the department's responsible member, or nil when none
// is marked.
func (m *ServiceMapper) Responsible(ctx context.Context, department model.Department) (*model.TeamMember, error) {
	members, err := m.TeamMembers(ctx, department)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if members[i].IsResponsible {
			return &members[i], nil
		}
	}
	logger.FromContext(ctx).Warn("No responsible found for department",
		zap.String("department", string(department)))
	return nil, nil
}

func normalizeServiceName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
