package pipeline

import "github.com/leanfinance/onboarding-service/internal/mailer"

// Clients bundles the external dependencies the steps need.
type Clients struct {
	Drive   DriveAPI
	Holded  ContactCreator
	Slack   Messenger
	Mail    mailer.Sender
	HubSpot CompanyUpdater

	// DriveParentFolderID is the shared drive folder client folders live under.
	DriveParentFolderID string
}

// BuildPipeline returns the ordered step list. The order is deliberate:
// Drive first (the technician needs the folder to work), Holded second
// (create the record before announcing it), Slack third (fast heads-up),
// email last (it includes the Drive and Holded links).
func BuildPipeline(c Clients) []Step {
	return []Step{
		NewDriveFolderStep(c.Drive, c.HubSpot, c.DriveParentFolderID),
		NewHoldedContactStep(c.Holded, c.HubSpot),
		NewNotifySlackStep(c.Slack),
		NewSendEmailStep(c.Mail),
	}
}
