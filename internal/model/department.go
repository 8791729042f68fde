package model

// Department is an internal service line code, as used in the
// "matriz-onboardings" sheet.
type Department string

const (
	DeptSU Department = "SU" // Financiación Pública
	DeptFI Department = "FI" // CFO
	DeptAS Department = "AS" // Asesoría fiscal
	DeptLA Department = "LA" // Asesoría laboral
	DeptLE Department = "LE" // Legal
	DeptDA Department = "DA" // Servicios DATA
	DeptDI Department = "DI" // Diseño
)

// Valid reports whether d is a known department code.
func (d Department) Valid() bool {
	switch d {
	case DeptSU, DeptFI, DeptAS, DeptLA, DeptLE, DeptDA, DeptDI:
		return true
	}
	return false
}

// Label returns the human-readable department name.
func (d Department) Label() string {
	if label, ok := departmentLabels[d]; ok {
		return label
	}
	return string(d)
}

var departmentLabels = map[Department]string{
	DeptSU: "Financiación Pública",
	DeptFI: "CFO",
	DeptAS: "Asesoría fiscal",
	DeptLA: "Asesoría laboral",
	DeptLE: "Legal",
	DeptDA: "Servicios DATA",
	DeptDI: "Diseño",
}

// DepartmentTechnicianProperties maps a department to the HubSpot contact
// properties that may carry its assigned technician id. Departments absent
// from this map resolve their technician to the department responsible.
var DepartmentTechnicianProperties = map[Department][]string{
	DeptSU: {"tecnico_enisa_asignado", "tecnico_subvencion_asignado"},
	DeptFI: {"cfo_asignado", "cfo_asignado_ii"},
	DeptAS: {"asesor_fiscal_asignado", "administrativo_asignado"},
	DeptLA: {"asesor_laboral_asignado"},
}

// DepartmentDriveSubfolder maps a department to the subfolder created inside
// the client's Drive folder. Departments absent from this map get no subfolder.
var DepartmentDriveSubfolder = map[Department]string{
	DeptSU: "03 - Financiación Pública",
	DeptFI: "01 - CFO",
	DeptAS: "02 - Asesoría fiscal, contable y laboral",
	DeptLA: "02 - Asesoría fiscal, contable y laboral",
}

// TeamMember is one row of the "usuarios" sheet: a staff member with the
// external ids needed to notify and assign them.
type TeamMember struct {
	// HubspotTecID links the member to the "assigned technician" contact
	// properties in HubSpot. Empty for members never assigned through HubSpot.
	HubspotTecID string `json:"hubspot_tec_id,omitempty"`
	// SlackID is the member's Slack user id for direct messages.
	SlackID string `json:"slack_id,omitempty"`
	// Email is the member's work email address.
	Email string `json:"email" validate:"required,email"`
	// FullName is the member's complete name.
	FullName string `json:"full_name"`
	// ShortName is the informal name used in notifications.
	ShortName string `json:"short_name"`
	// Department is the service line the member belongs to.
	Department Department `json:"department" validate:"required"`
	// IsResponsible marks the member as the department's default owner and
	// escalation point.
	IsResponsible bool `json:"is_responsible"`
}

// ServiceEntry is one row of the "servicios" sheet: a sellable service and
// the department that executes it.
type ServiceEntry struct {
	// Name is the service name exactly as it appears in deal names.
	Name string `json:"name" validate:"required"`
	// Tags is a free-form classification column, unused by the core.
	Tags string `json:"tags,omitempty"`
	// Department owns execution of the service. Empty means not yet assigned.
	Department Department `json:"department,omitempty"`
}
