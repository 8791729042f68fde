package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

// Note on SQL query matching:
// GORM generates SQL with variable clauses (ORDER BY, LIMIT, RETURNING) that
// make exact string matching brittle, so these tests use
// sqlmock.QueryMatcherRegexp with partial patterns and sqlmock.AnyArg() for
// arguments whose encoding may vary.

// AnyTime matches any time.Time argument.
type AnyTime struct{}

func (a AnyTime) Match(v driver.Value) bool {
	_, ok := v.(time.Time)
	return ok
}

func newTestOnboardingRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock, func()) {
	logger.Log = zaptest.NewLogger(t).Named("test")
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		Logger:                 gormLogger.Default.LogMode(gormLogger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	repo := &PostgresRepo{db: gormDB}
	teardown := func() {
		assert.NoError(t, mock.ExpectationsWereMet())
	}
	return repo, mock, teardown
}

func TestPostgresRepo_Create_Success(t *testing.T) {
	repo, mock, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)
	ctx := context.Background()

	record := &model.OnboardingRecord{
		DealID:      12345,
		DealName:    "ACME SL - ENISA",
		CompanyName: "ACME SL",
		ServiceName: "ENISA",
		Department:  model.DeptSU,
		Status:      model.StatusPending,
		Technicians: []model.TechnicianInfo{
			{HubspotTecID: "tec-9", PropertyName: "tecnico_enisa_asignado"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "onboardings"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectQuery(`INSERT INTO "onboarding_technicians"`).
		WithArgs(int64(7), "tec-9", "tecnico_enisa_asignado").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.Create(ctx, record)
	assert.NoError(t, err)
	assert.Equal(t, int64(7), record.ID)
	assert.Equal(t, int64(7), record.Technicians[0].OnboardingID)
}

func TestPostgresRepo_Create_DuplicateDeal(t *testing.T) {
	repo, mock, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)
	ctx := context.Background()

	record := &model.OnboardingRecord{
		DealID:   12345,
		DealName: "ACME SL - ENISA",
		Status:   model.StatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "onboardings"`).
		WillReturnError(newPgError("23505", "idx_onboardings_deal_id"))
	mock.ExpectRollback()

	err := repo.Create(ctx, record)
	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrDuplicate)
}

func TestPostgresRepo_FindByDealID_Found(t *testing.T) {
	repo, mock, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)
	ctx := context.Background()
	now := time.Now()

	cols := []string{"id", "deal_id", "deal_name", "company_name", "service_name", "department", "status", "created_at", "updated_at"}
	mock.ExpectQuery(`SELECT \* FROM "onboardings" WHERE deal_id`).
		WithArgs(int64(12345), 1).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(7, 12345, "ACME SL - ENISA", "ACME SL", "ENISA", "SU", "failed", now, now))
	mock.ExpectQuery(`SELECT \* FROM "onboarding_steps" WHERE "onboarding_steps"."onboarding_id"`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "onboarding_id", "step_name", "status"}).
			AddRow(1, 7, "create_drive_folder", "completed").
			AddRow(2, 7, "create_holded_contact", "failed"))
	mock.ExpectQuery(`SELECT \* FROM "onboarding_technicians" WHERE "onboarding_technicians"."onboarding_id"`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "onboarding_id", "hubspot_tec_id", "property_name"}).
			AddRow(1, 7, "tec-9", "tecnico_enisa_asignado"))

	found, err := repo.FindByDealID(ctx, 12345)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, int64(12345), found.DealID)
	assert.Equal(t, model.StatusFailed, found.Status)
	assert.Len(t, found.Technicians, 1)
	assert.Len(t, found.Steps, 2)
}

func TestPostgresRepo_FindByDealID_NotFound(t *testing.T) {
	repo, mock, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "onboardings" WHERE deal_id`).
		WithArgs(int64(404), 1).
		WillReturnError(gorm.ErrRecordNotFound)

	found, err := repo.FindByDealID(ctx, 404)
	assert.Nil(t, found)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresRepo_UpdateStatus_Success(t *testing.T) {
	repo, mock, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE "onboardings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(ctx, 7, model.StatusInProgress, model.StepCreateDriveFolder)
	assert.NoError(t, err)
}

func TestPostgresRepo_UpdateStatus_InvalidStatus(t *testing.T) {
	repo, _, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)

	err := repo.UpdateStatus(context.Background(), 7, model.OnboardingStatus("bogus"), "")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPostgresRepo_UpdateStatus_MissingRecord(t *testing.T) {
	repo, mock, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE "onboardings" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(ctx, 999, model.StatusCompleted, "")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestPostgresRepo_UpsertStep_Insert(t *testing.T) {
	repo, mock, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)
	ctx := context.Background()
	now := time.Now()

	step := model.StepRecord{
		OnboardingID: 7,
		StepName:     model.StepCreateDriveFolder,
		Status:       model.StepInProgress,
		StartedAt:    &now,
	}

	mock.ExpectQuery(`INSERT INTO "onboarding_steps" .* ON CONFLICT \("onboarding_id","step_name"\) DO UPDATE SET`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	err := repo.UpsertStep(ctx, step)
	assert.NoError(t, err)
}

func TestPostgresRepo_UpsertStep_InvalidStatus(t *testing.T) {
	repo, _, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)

	err := repo.UpsertStep(context.Background(), model.StepRecord{
		OnboardingID: 7,
		StepName:     model.StepNotifySlack,
		Status:       model.StepStatus("bogus"),
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestPostgresRepo_ListResumable(t *testing.T) {
	repo, mock, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)
	ctx := context.Background()
	now := time.Now()

	cols := []string{"id", "deal_id", "deal_name", "status", "created_at"}
	mock.ExpectQuery(`SELECT \* FROM "onboardings" WHERE status IN .* ORDER BY created_at ASC`).
		WithArgs("pending", "waiting_technician", "in_progress").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, 100, "A - ENISA", "pending", now.Add(-2*time.Hour)).
			AddRow(2, 200, "B - CFO", "in_progress", now.Add(-time.Hour)))
	mock.ExpectQuery(`SELECT \* FROM "onboarding_technicians"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "onboarding_id", "hubspot_tec_id", "property_name"}))

	records, err := repo.ListResumable(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(100), records[0].DealID)
	assert.Equal(t, int64(200), records[1].DealID)
}

func TestPostgresRepo_ListFailed_Empty(t *testing.T) {
	repo, mock, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "onboardings" WHERE status IN`).
		WithArgs("failed").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	records, err := repo.ListFailed(ctx)
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestPostgresRepo_ListFailed_DatabaseError(t *testing.T) {
	repo, mock, teardown := newTestOnboardingRepo(t)
	t.Cleanup(teardown)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT \* FROM "onboardings" WHERE status IN`).
		WithArgs("failed").
		WillReturnError(errors.New("permission denied for table onboardings"))

	records, err := repo.ListFailed(ctx)
	assert.Error(t, err)
	assert.Nil(t, records)
}
