package model

import (
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// NewEnrichedDealFixture generates a realistic enriched deal for tests.
// Fields can be overridden after creation.
func NewEnrichedDealFixture() *EnrichedDeal {
	companyName := gofakeit.Company()
	serviceName := gofakeit.RandomString([]string{
		"Préstamo ENISA", "CFO Externo", "Contabilidad PYME", "Nóminas",
	})
	ownerID := int64(gofakeit.Number(1000, 9999))
	amount := gofakeit.Price(1000, 50000)

	return &EnrichedDeal{
		DealID:         int64(gofakeit.Number(100000, 999999)),
		DealName:       companyName + " - " + serviceName,
		CompanyName:    companyName,
		ServiceName:    serviceName,
		CloseDate:      gofakeit.DateRange(time.Now().AddDate(0, 0, -7), time.Now()),
		HubspotOwnerID: &ownerID,
		Pipeline:       "default",
		DealStage:      "closedwon",
		Amount:         &amount,
		Company: CompanyInfo{
			CompanyID: fmt.Sprintf("%d", gofakeit.Number(100000, 999999)),
			Name:      companyName,
			NIF:       "B" + gofakeit.DigitN(8),
			Email:     gofakeit.Email(),
			Phone:     gofakeit.Phone(),
			Website:   gofakeit.URL(),
			Address:   gofakeit.Street(),
			City:      gofakeit.City(),
			ZipCode:   gofakeit.Zip(),
			Country:   "España",
		},
		ContactPerson: ContactPersonInfo{
			ContactID: fmt.Sprintf("%d", gofakeit.Number(100000, 999999)),
			FirstName: gofakeit.FirstName(),
			LastName:  gofakeit.LastName(),
			Email:     gofakeit.Email(),
			Mobile:    gofakeit.Phone(),
			JobTitle:  "CEO",
		},
	}
}

// NewTeamMemberFixture generates a team member of the given department.
func NewTeamMemberFixture(department Department) TeamMember {
	firstName := gofakeit.FirstName()
	return TeamMember{
		HubspotTecID: fmt.Sprintf("%d", gofakeit.Number(10000, 99999)),
		SlackID:      "U" + gofakeit.LetterN(8),
		Email:        gofakeit.Email(),
		FullName:     firstName + " " + gofakeit.LastName(),
		ShortName:    firstName,
		Department:   department,
	}
}

// NewOnboardingRecordFixture generates a persisted-looking record in the
// given status.
func NewOnboardingRecordFixture(status OnboardingStatus) *OnboardingRecord {
	deal := NewEnrichedDealFixture()
	return &OnboardingRecord{
		ID:          int64(gofakeit.Number(1, 10000)),
		DealID:      deal.DealID,
		DealName:    deal.DealName,
		CompanyName: deal.CompanyName,
		ServiceName: deal.ServiceName,
		Department:  DeptSU,
		Status:      status,
	}
}
