package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

func testServices() []model.ServiceEntry {
	return []model.ServiceEntry{
		{Name: "Préstamo ENISA", Department: model.DeptSU},
		{Name: "CFO Externo", Department: model.DeptFI},
		{Name: "Servicio Huérfano"}, // present in the sheet, no department yet
	}
}

func TestResolveDepartment(t *testing.T) {
	testCases := []struct {
		name        string
		serviceName string
		wantDept    model.Department
		wantErr     error
	}{
		{
			name:        "exact match",
			serviceName: "Préstamo ENISA",
			wantDept:    model.DeptSU,
		},
		{
			name:        "case insensitive",
			serviceName: "préstamo enisa",
			wantDept:    model.DeptSU,
		},
		{
			name:        "surrounding whitespace",
			serviceName: "  Préstamo ENISA  ",
			wantDept:    model.DeptSU,
		},
		{
			name:        "unknown service",
			serviceName: "Servicio Inexistente",
			wantErr:     apperrors.ErrServiceNotFound,
		},
		{
			name:        "service without department",
			serviceName: "Servicio Huérfano",
			wantErr:     apperrors.ErrDepartmentNotAssigned,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			directory := new(DirectoryMock)
			directory.On("FetchServices", mock.Anything).Return(testServices(), nil)
			mapper := NewServiceMapper(directory)

			ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
			dept, err := mapper.ResolveDepartment(ctx, tc.serviceName)

			if tc.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tc.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantDept, dept)
		})
	}
}

func TestResolveDepartment_DirectoryError(t *testing.T) {
	directory := new(DirectoryMock)
	directory.On("FetchServices", mock.Anything).Return(nil, errors.New("sheet unavailable"))
	mapper := NewServiceMapper(directory)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	_, err := mapper.ResolveDepartment(ctx, "Préstamo ENISA")

	require.Error(t, err)
	assert.False(t, errors.Is(err, apperrors.ErrServiceNotFound))
}

func TestTeamMembers_FiltersByDepartment(t *testing.T) {
	suMember := model.NewTeamMemberFixture(model.DeptSU)
	suResponsible := model.NewTeamMemberFixture(model.DeptSU)
	suResponsible.IsResponsible = true

	directory := new(DirectoryMock)
	directory.On("FetchTeamMembers", mock.Anything).Return([]model.TeamMember{
		suMember,
		model.NewTeamMemberFixture(model.DeptFI),
		suResponsible,
	}, nil)
	mapper := NewServiceMapper(directory)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	members, err := mapper.TeamMembers(ctx, model.DeptSU)

	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, suMember.HubspotTecID, members[0].HubspotTecID)
	assert.Equal(t, suResponsible.HubspotTecID, members[1].HubspotTecID)
}

func TestResponsible(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		directory := new(DirectoryMock)
		directory.On("FetchTeamMembers", mock.Anything).Return([]model.TeamMember{
			{HubspotTecID: "1", ShortName: "Ana", Department: model.DeptSU},
			{HubspotTecID: "3", ShortName: "Marta", Department: model.DeptSU, IsResponsible: true},
		}, nil)
		mapper := NewServiceMapper(directory)

		ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
		responsible, err := mapper.Responsible(ctx, model.DeptSU)

		require.NoError(t, err)
		require.NotNil(t, responsible)
		assert.Equal(t, "Marta", responsible.ShortName)
	})

	t.Run("none marked", func(t *testing.T) {
		directory := new(DirectoryMock)
		directory.On("FetchTeamMembers", mock.Anything).Return([]model.TeamMember{
			{HubspotTecID: "1", ShortName: "Ana", Department: model.DeptSU},
		}, nil)
		mapper := NewServiceMapper(directory)

		ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
		responsible, err := mapper.Responsible(ctx, model.DeptSU)

		require.NoError(t, err)
		assert.Nil(t, responsible)
	})
}
