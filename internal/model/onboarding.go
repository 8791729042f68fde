package model

import (
	"time"

	"gorm.io/datatypes"
)

// OnboardingRecord represents the onboardings table structure: one row per
// detected won deal, tracking the provisioning pipeline for that deal.
type OnboardingRecord struct {
	// ID is the internal database primary key.
	ID int64 `json:"id" gorm:"primaryKey;autoIncrement"`
	// DealID is the external HubSpot deal id. Unique: a deal is onboarded at most once.
	DealID int64 `json:"deal_id" gorm:"column:deal_id;uniqueIndex" validate:"required"`
	// DealName is the raw deal name ("EMPRESA - SERVICIO").
	DealName string `json:"deal_name" gorm:"column:deal_name" validate:"required"`
	// CompanyName is the company half parsed from the deal name.
	CompanyName string `json:"company_name" gorm:"column:company_name"`
	// ServiceName is the service half parsed from the deal name.
	ServiceName string `json:"service_name" gorm:"column:service_name"`
	// Department is the resolved department code, empty until resolved.
	Department Department `json:"department,omitempty" gorm:"column:department"`
	// HubspotOwnerID is the salesperson who closed the deal, if known.
	HubspotOwnerID *int64 `json:"hubspot_owner_id,omitempty" gorm:"column:hubspot_owner_id"`
	// Status is the record's lifecycle status.
	Status OnboardingStatus `json:"status" gorm:"column:status" validate:"required"`
	// CurrentStep is the step currently executing, empty outside a pipeline run.
	CurrentStep StepName `json:"current_step,omitempty" gorm:"column:current_step"`
	// CreatedAt is the timestamp when the record was first created.
	CreatedAt time.Time `json:"created_at,omitempty" gorm:"column:created_at;autoCreateTime"`
	// UpdatedAt is refreshed on every status write.
	UpdatedAt time.Time `json:"updated_at,omitempty" gorm:"column:updated_at;autoUpdateTime"`

	// Technicians are the candidates stored for the resolved department.
	Technicians []TechnicianInfo `json:"technicians,omitempty" gorm:"foreignKey:OnboardingID"`
	// Steps are the per-step progress rows for this onboarding.
	Steps []StepRecord `json:"steps,omitempty" gorm:"foreignKey:OnboardingID"`
}

// TableName specifies the table name for GORM.
func (OnboardingRecord) TableName() string {
	return "onboardings"
}

// TechnicianInfo represents the onboarding_technicians table structure: an
// assigned-technician candidate and the contact property it came from.
type TechnicianInfo struct {
	// ID is the internal database primary key.
	ID int64 `json:"-" gorm:"primaryKey;autoIncrement"`
	// OnboardingID references the owning onboarding record.
	OnboardingID int64 `json:"-" gorm:"column:onboarding_id;index"`
	// HubspotTecID is the technician's external id as stored on the contact.
	HubspotTecID string `json:"hubspot_tec_id" gorm:"column:hubspot_tec_id" validate:"required"`
	// PropertyName is the contact property the id was read from
	// (e.g. "tecnico_enisa_asignado").
	PropertyName string `json:"property_name" gorm:"column:property_name" validate:"required"`
}

// TableName specifies the table name for GORM.
func (TechnicianInfo) TableName() string {
	return "onboarding_technicians"
}

// StepRecord represents the onboarding_steps table structure: the persisted
// outcome of one pipeline step for one onboarding. Unique on
// (onboarding_id, step_name); the engine upserts it at step start and end.
type StepRecord struct {
	// ID is the internal database primary key.
	ID int64 `json:"-" gorm:"primaryKey;autoIncrement"`
	// OnboardingID references the owning onboarding record.
	OnboardingID int64 `json:"onboarding_id" gorm:"column:onboarding_id;uniqueIndex:idx_onboarding_step" validate:"required"`
	// StepName identifies the step.
	StepName StepName `json:"step_name" gorm:"column:step_name;uniqueIndex:idx_onboarding_step" validate:"required"`
	// Status is the step's persisted status.
	Status StepStatus `json:"status" gorm:"column:status" validate:"required"`
	// ResultData is the step's structured result payload, if any.
	ResultData datatypes.JSON `json:"result_data,omitempty" gorm:"type:jsonb;column:result_data"`
	// ErrorMessage is the human-readable failure detail, if the step failed.
	ErrorMessage string `json:"error_message,omitempty" gorm:"column:error_message"`
	// StartedAt is set when the step transitions to in_progress.
	StartedAt *time.Time `json:"started_at,omitempty" gorm:"column:started_at"`
	// CompletedAt is set when the step reaches a terminal status.
	CompletedAt *time.Time `json:"completed_at,omitempty" gorm:"column:completed_at"`
}

// TableName specifies the table name for GORM.
func (StepRecord) TableName() string {
	return "onboarding_steps"
}

// StepUpdateColumns returns the column names refreshed when a step row is
// upserted. Excludes the primary key and the unique pair.
func StepUpdateColumns() []string {
	return []string{
		"status",
		"result_data",
		"error_message",
		"started_at",
		"completed_at",
	}
}
