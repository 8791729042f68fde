package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/leanfinance/onboarding-service/internal/apperrors"
	"github.com/leanfinance/onboarding-service/internal/hubspot"
	"github.com/leanfinance/onboarding-service/internal/model"
	storagemock "github.com/leanfinance/onboarding-service/internal/storage/mock"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

func init() {
	// Initialize logger for tests
	logger.Log = zaptest.NewLogger(nil).Named("test")
}

func TestParseDealName(t *testing.T) {
	testCases := []struct {
		name        string
		dealName    string
		wantCompany string
		wantService string
		wantErr     bool
	}{
		{
			name:        "standard separator",
			dealName:    "ACME SL - Préstamo ENISA",
			wantCompany: "ACME SL",
			wantService: "Préstamo ENISA",
		},
		{
			name:        "service keeps extra hyphens",
			dealName:    "EMPRESA - ENISA - NEXT",
			wantCompany: "EMPRESA",
			wantService: "ENISA - NEXT",
		},
		{
			name:        "bare hyphen",
			dealName:    "ACME SA-CFO",
			wantCompany: "ACME SA",
			wantService: "CFO",
		},
		{
			name:        "hyphen with trailing space",
			dealName:    "ACME- CFO Externo",
			wantCompany: "ACME",
			wantService: "CFO Externo",
		},
		{
			name:     "no separator",
			dealName: "SIN SEPARADOR",
			wantErr:  true,
		},
		{
			name:     "empty company half",
			dealName: " - Servicio",
			wantErr:  true,
		},
		{
			name:     "empty string",
			dealName: "",
			wantErr:  true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			company, service, err := ParseDealName(tc.dealName)
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantCompany, company)
			assert.Equal(t, tc.wantService, service)
		})
	}
}

func TestParseCloseDate(t *testing.T) {
	t.Run("millisecond epoch", func(t *testing.T) {
		got := parseCloseDate("1719792000000")
		assert.Equal(t, int64(1719792000), got.Unix())
	})

	t.Run("iso 8601", func(t *testing.T) {
		got := parseCloseDate("2026-07-01T00:00:00Z")
		assert.Equal(t, 2026, got.Year())
		assert.Equal(t, time.July, got.Month())
	})

	t.Run("iso 8601 without offset", func(t *testing.T) {
		got := parseCloseDate("2026-07-01T09:30:00")
		assert.Equal(t, 2026, got.Year())
		assert.Equal(t, time.July, got.Month())
		assert.Equal(t, 9, got.Hour())
	})

	t.Run("date only", func(t *testing.T) {
		got := parseCloseDate("2026-07-01")
		assert.Equal(t, 2026, got.Year())
		assert.Equal(t, time.July, got.Month())
		assert.Equal(t, 1, got.Day())
	})

	t.Run("garbage falls back to now", func(t *testing.T) {
		got := parseCloseDate("not-a-date")
		assert.WithinDuration(t, time.Now(), got, 5*time.Second)
	})

	t.Run("empty falls back to now", func(t *testing.T) {
		got := parseCloseDate("")
		assert.WithinDuration(t, time.Now(), got, 5*time.Second)
	})
}

func wonDeal(id, name string) hubspot.Object {
	return hubspot.Object{
		ID: id,
		Properties: map[string]string{
			"dealname":  name,
			"pipeline":  "default",
			"dealstage": "closedwon",
			"closedate": "1719792000000",
		},
	}
}

func TestDetectNewDeals_SkipsProcessedDeals(t *testing.T) {
	crm := new(CRMMock)
	repo := new(storagemock.OnboardingRepoMock)
	detector := NewDealDetector(crm, repo, 7)

	crm.On("SearchWonDeals", mock.Anything, mock.AnythingOfType("time.Time")).
		Return([]hubspot.Object{wonDeal("111", "ACME - CFO")}, nil)
	// A persisted record means the deal was already detected
	repo.On("FindByDealID", mock.Anything, int64(111)).
		Return(model.NewOnboardingRecordFixture(model.StatusCompleted), nil)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	deals, err := detector.DetectNewDeals(ctx)

	require.NoError(t, err)
	assert.Empty(t, deals)
	crm.AssertNotCalled(t, "GetDealCompanyID", mock.Anything, mock.Anything)
}

func TestDetectNewDeals_EnrichesNewDeal(t *testing.T) {
	crm := new(CRMMock)
	repo := new(storagemock.OnboardingRepoMock)
	detector := NewDealDetector(crm, repo, 7)

	crm.On("SearchWonDeals", mock.Anything, mock.AnythingOfType("time.Time")).
		Return([]hubspot.Object{wonDeal("222", "ACME SL - Préstamo ENISA")}, nil)
	repo.On("FindByDealID", mock.Anything, int64(222)).
		Return(nil, apperrors.ErrNotFound)
	crm.On("GetDealCompanyID", mock.Anything, "222").Return("900", nil)
	crm.On("GetCompany", mock.Anything, "900").Return(&hubspot.Object{
		ID: "900",
		Properties: map[string]string{
			"name":         "ACME SL",
			"nif":          "B12345678",
			"domain":       "acme.example",
			"tl_holded_id": "h-42",
		},
	}, nil)
	crm.On("GetCompanyContactIDs", mock.Anything, "900").Return([]string{"500", "501"}, nil)
	crm.On("GetContact", mock.Anything, "500").Return(&hubspot.Object{
		ID: "500",
		Properties: map[string]string{
			"firstname":               "Laura",
			"lastname":                "Ruiz",
			"email":                   "laura@acme.example",
			"tecnico_enisa_asignado":  "777",
			"asesor_laboral_asignado": "888",
		},
	}, nil)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	deals, err := detector.DetectNewDeals(ctx)

	require.NoError(t, err)
	require.Len(t, deals, 1)

	deal := deals[0]
	assert.Equal(t, int64(222), deal.DealID)
	assert.Equal(t, "ACME SL", deal.CompanyName)
	assert.Equal(t, "Préstamo ENISA", deal.ServiceName)
	assert.Equal(t, "h-42", deal.Company.HoldedID)
	// Website falls back to the domain property
	assert.Equal(t, "acme.example", deal.Company.Website)
	// Only the first contact is used
	assert.Equal(t, "500", deal.ContactPerson.ContactID)
	crm.AssertNotCalled(t, "GetContact", mock.Anything, "501")

	require.Len(t, deal.Technicians, 2)
	assert.Equal(t, "777", deal.Technicians[0].HubspotTecID)
	assert.Equal(t, "tecnico_enisa_asignado", deal.Technicians[0].PropertyName)
	assert.Equal(t, "asesor_laboral_asignado", deal.Technicians[1].PropertyName)
}

func TestDetectNewDeals_SkipsBrokenChains(t *testing.T) {
	crm := new(CRMMock)
	repo := new(storagemock.OnboardingRepoMock)
	detector := NewDealDetector(crm, repo, 7)

	crm.On("SearchWonDeals", mock.Anything, mock.AnythingOfType("time.Time")).
		Return([]hubspot.Object{
			wonDeal("300", "SIN SEPARADOR"),
			wonDeal("301", "ACME - CFO"),
			wonDeal("not-a-number", "OTRA - COSA"),
		}, nil)
	repo.On("FindByDealID", mock.Anything, mock.AnythingOfType("int64")).
		Return(nil, apperrors.ErrNotFound)
	// Deal 301 has no associated company
	crm.On("GetDealCompanyID", mock.Anything, "301").Return("", nil)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	deals, err := detector.DetectNewDeals(ctx)

	require.NoError(t, err)
	assert.Empty(t, deals)
	crm.AssertNotCalled(t, "GetCompany", mock.Anything, mock.Anything)
}

func TestDetectNewDeals_SearchErrorPropagates(t *testing.T) {
	crm := new(CRMMock)
	repo := new(storagemock.OnboardingRepoMock)
	detector := NewDealDetector(crm, repo, 7)

	crm.On("SearchWonDeals", mock.Anything, mock.AnythingOfType("time.Time")).
		Return(nil, errors.New("hubspot down"))

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	_, err := detector.DetectNewDeals(ctx)

	require.Error(t, err)
	repo.AssertNotCalled(t, "FindByDealID", mock.Anything, mock.Anything)
}

func TestEnrichDealByID(t *testing.T) {
	crm := new(CRMMock)
	repo := new(storagemock.OnboardingRepoMock)
	detector := NewDealDetector(crm, repo, 7)

	raw := wonDeal("400", "BETA SL - Nóminas")
	crm.On("GetDeal", mock.Anything, "400").Return(&raw, nil)
	crm.On("GetDealCompanyID", mock.Anything, "400").Return("901", nil)
	crm.On("GetCompany", mock.Anything, "901").Return(&hubspot.Object{
		ID:         "901",
		Properties: map[string]string{"name": "BETA SL"},
	}, nil)
	crm.On("GetCompanyContactIDs", mock.Anything, "901").Return([]string{"600"}, nil)
	crm.On("GetContact", mock.Anything, "600").Return(&hubspot.Object{
		ID:         "600",
		Properties: map[string]string{"email": "ceo@beta.example"},
	}, nil)

	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	deal, err := detector.EnrichDealByID(ctx, 400)

	require.NoError(t, err)
	require.NotNil(t, deal)
	assert.Equal(t, "BETA SL", deal.CompanyName)
	assert.Equal(t, "Nóminas", deal.ServiceName)
	assert.Empty(t, deal.Technicians)
}
