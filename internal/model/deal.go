package model

import (
	"strings"
	"time"
)

// CompanyInfo carries the HubSpot company properties the pipeline needs.
type CompanyInfo struct {
	CompanyID string `json:"company_id" validate:"required"`
	Name      string `json:"name"`
	NIF       string `json:"nif,omitempty"`
	// Email is the company's generic_email property.
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Website string `json:"website,omitempty"`
	Address string `json:"address,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
	// HoldedID is the tl_holded_id property; non-empty means the company
	// already exists in Holded.
	HoldedID string `json:"holded_id,omitempty"`
	// DriveFolderID / DriveFolderURL are set once the client folder exists.
	DriveFolderID  string `json:"drive_folder_id,omitempty"`
	DriveFolderURL string `json:"drive_folder_url,omitempty"`
}

// ContactPersonInfo carries the HubSpot contact (CEO) properties.
type ContactPersonInfo struct {
	ContactID string `json:"contact_id" validate:"required"`
	FirstName string `json:"firstname,omitempty"`
	LastName  string `json:"lastname,omitempty"`
	// FullName is the nombre_y_apellidos custom property.
	FullName string `json:"full_name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Mobile   string `json:"mobile,omitempty"`
	// JobTitle is the cargo_en_empresa custom property.
	JobTitle string `json:"job_title,omitempty"`
}

// DisplayName returns the name to show for the contact, preferring the
// full-name property over first/last, falling back to the email.
func (c ContactPersonInfo) DisplayName() string {
	if c.FullName != "" {
		return c.FullName
	}
	parts := make([]string, 0, 2)
	if c.FirstName != "" {
		parts = append(parts, c.FirstName)
	}
	if c.LastName != "" {
		parts = append(parts, c.LastName)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return c.Email
}

// TechnicianCandidate is an assigned-technician value found on the contact,
// before it is persisted as a TechnicianInfo row.
type TechnicianCandidate struct {
	HubspotTecID string `json:"hubspot_tec_id"`
	PropertyName string `json:"property_name"`
}

// EnrichedDeal is the output of detection: a won deal with its parsed names,
// company, contact person and technician candidates. Ephemeral; consumed once
// by the onboarding manager.
type EnrichedDeal struct {
	DealID         int64     `json:"deal_id" validate:"required"`
	DealName       string    `json:"deal_name"`
	CompanyName    string    `json:"company_name"`
	ServiceName    string    `json:"service_name"`
	CloseDate      time.Time `json:"close_date"`
	HubspotOwnerID *int64    `json:"hubspot_owner_id,omitempty"`
	Pipeline       string    `json:"pipeline,omitempty"`
	DealStage      string    `json:"dealstage,omitempty"`
	Amount         *float64  `json:"amount,omitempty"`

	Company       CompanyInfo       `json:"company"`
	ContactPerson ContactPersonInfo `json:"contact_person"`

	Technicians []TechnicianCandidate `json:"technicians,omitempty"`
}
