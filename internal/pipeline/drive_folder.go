package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/leanfinance/onboarding-service/internal/drive"
	"github.com/leanfinance/onboarding-service/internal/model"
	"github.com/leanfinance/onboarding-service/pkg/logger"
)

// DriveFolderStep creates the client folder on the shared drive, plus the
// department subfolder when the department has one.
//
// Idempotency: the client folder is detected through drive_folder_id on the
// CRM company; the subfolder by name lookup inside the client folder. After
// creating the folder the step writes drive_folder_id and drive_folder_url
// back to the company.
type DriveFolderStep struct {
	drive          DriveAPI
	hubspot        CompanyUpdater
	parentFolderID string
}

// NewDriveFolderStep creates the Drive step. parentFolderID is the shared
// drive folder all client folders live under.
func NewDriveFolderStep(driveClient DriveAPI, hubspotClient CompanyUpdater, parentFolderID string) *DriveFolderStep {
	return &DriveFolderStep{
		drive:          driveClient,
		hubspot:        hubspotClient,
		parentFolderID: parentFolderID,
	}
}

func (s *DriveFolderStep) Name() model.StepName {
	return model.StepCreateDriveFolder
}

// CheckAlreadyDone reports true when the client folder exists and either no
// subfolder is needed or it exists too.
func (s *DriveFolderStep) CheckAlreadyDone(ctx context.Context, pc *Context) (bool, error) {
	if pc.Company == nil || pc.Company.DriveFolderID == "" {
		return false, nil
	}

	if subfolderName, ok := model.DepartmentDriveSubfolder[pc.Department]; ok {
		existing, err := s.drive.FindFolder(ctx, subfolderName, pc.Company.DriveFolderID)
		if err != nil {
			return false, err
		}
		if existing == "" {
			// Client folder exists but the subfolder is missing.
			return false, nil
		}
		pc.DriveFolderID = pc.Company.DriveFolderID
		pc.DriveFolderURL = pc.Company.DriveFolderURL
		pc.DriveSubfolderID = existing
		return true, nil
	}

	pc.DriveFolderID = pc.Company.DriveFolderID
	pc.DriveFolderURL = pc.Company.DriveFolderURL
	return true, nil
}

func (s *DriveFolderStep) Execute(ctx context.Context, pc *Context) Result {
	loggerCtx := logger.FromContext(ctx).With(
		zap.Int64("deal_id", pc.DealID),
		zap.String("company", pc.CompanyName),
	)

	// Create or reuse the client folder.
	var clientFolderID string
	if pc.Company != nil && pc.Company.DriveFolderID != "" {
		clientFolderID = pc.Company.DriveFolderID
		loggerCtx.Info("Client Drive folder already exists", zap.String("folder_id", clientFolderID))
	} else {
		var err error
		clientFolderID, err = s.drive.FindOrCreateFolder(ctx, pc.CompanyName, s.parentFolderID)
		if err != nil {
			return failure("failed to create client folder: %v", err)
		}
		loggerCtx.Info("Client Drive folder ready", zap.String("folder_id", clientFolderID))
	}

	pc.DriveFolderID = clientFolderID
	pc.DriveFolderURL = drive.FolderURL(clientFolderID)

	// Write the folder ids back to the CRM company.
	if pc.Company != nil && pc.Company.DriveFolderID == "" {
		err := s.hubspot.UpdateCompany(ctx, pc.Company.CompanyID, map[string]string{
			"drive_folder_id":  clientFolderID,
			"drive_folder_url": pc.DriveFolderURL,
		})
		if err != nil {
			return failure("failed to write folder ids to company: %v", err)
		}
		pc.Company.DriveFolderID = clientFolderID
		pc.Company.DriveFolderURL = pc.DriveFolderURL
		loggerCtx.Info("Drive folder ids written to company", zap.String("company_id", pc.Company.CompanyID))
	}

	// Department subfolder, if this department uses one.
	var subfolderID string
	if subfolderName, ok := model.DepartmentDriveSubfolder[pc.Department]; ok {
		var err error
		subfolderID, err = s.drive.FindOrCreateFolder(ctx, subfolderName, clientFolderID)
		if err != nil {
			return failure("failed to create department subfolder: %v", err)
		}
		pc.DriveSubfolderID = subfolderID
		loggerCtx.Info("Department subfolder ready",
			zap.String("subfolder_name", subfolderName),
			zap.String("subfolder_id", subfolderID))
	}

	return Result{
		Success: true,
		Data: map[string]interface{}{
			"drive_folder_id":    clientFolderID,
			"drive_folder_url":   pc.DriveFolderURL,
			"drive_subfolder_id": subfolderID,
		},
	}
}
