package model

// OnboardingStatus is the lifecycle status of an onboarding record.
type OnboardingStatus string

const (
	StatusPending           OnboardingStatus = "pending"
	StatusWaitingTechnician OnboardingStatus = "waiting_technician"
	StatusInProgress        OnboardingStatus = "in_progress"
	StatusCompleted         OnboardingStatus = "completed"
	StatusFailed            OnboardingStatus = "failed"
)

// Valid reports whether s is a known onboarding status.
func (s OnboardingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusWaitingTechnician, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// StepStatus is the persisted status of a single pipeline step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

// Valid reports whether s is a known step status.
func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepInProgress, StepCompleted, StepFailed, StepSkipped:
		return true
	}
	return false
}

// StepName identifies one of the fixed provisioning steps.
type StepName string

const (
	StepCreateDriveFolder   StepName = "create_drive_folder"
	StepCreateHoldedContact StepName = "create_holded_contact"
	StepNotifySlack         StepName = "notify_slack"
	StepSendEmail           StepName = "send_email"
)

// Valid reports whether n is a known step name.
func (n StepName) Valid() bool {
	switch n {
	case StepCreateDriveFolder, StepCreateHoldedContact, StepNotifySlack, StepSendEmail:
		return true
	}
	return false
}
