package services

import (
	"context"
	"errors"

	"github.com/clepfinder/backend/internal/models"
)

var (
	ErrCollegeNotFound = errors.New("college not found")
	ErrCollegeExists   = errors.New("college already exists")
	ErrExamNotFound    = errors.New("exam not found")
	ErrExamExists      = errors.New("exam already exists")
	ErrFlagNotFound    = errors.New("flag not found")
)

// Flag listings are clamped server-side so a single exam with thousands of
// reports cannot blow up response payloads.
const (
	DefaultFlagListLimit = 20
	MaxFlagListLimit     = 200
)

// CollegeService is the storage-facing surface of the gateway. Two
// implementations exist: MongoCollegeService for deployments and
// MemoryCollegeService for development and tests.
type CollegeService interface {
	ListColleges(ctx context.Context, ownerID string) ([]models.College, error)
	CreateCollege(ctx context.Context, req *models.CreateCollegeRequest) (*models.College, error)
	GetCollege(ctx context.Context, id string) (*models.College, error)
	UpdateCollege(ctx context.Context, id string, req *models.UpdateCollegeRequest) (*models.College, error)
	DeleteCollege(ctx context.Context, id string) error

	ListExams(ctx context.Context, collegeID string) ([]models.Exam, error)
	CreateExam(ctx context.Context, collegeID string, req *models.CreateExamRequest) (*models.Exam, error)
	UpdateExam(ctx context.Context, collegeID, examID string, req *models.UpdateExamRequest) (*models.Exam, error)
	DeleteExam(ctx context.Context, collegeID, examID string) error

	SubmitFlag(ctx context.Context, collegeID, examID, flaggedBy string, req *models.CreateFlagRequest) (*models.FlagResult, error)
	ListFlags(ctx context.Context, collegeID, examID string, limit int) ([]models.Flag, error)
	DeleteFlag(ctx context.Context, collegeID, examID, flagID string) error
}

// ClampFlagLimit normalizes a caller-supplied flag list limit.
func ClampFlagLimit(limit int) int {
	if limit <= 0 {
		return DefaultFlagListLimit
	}
	if limit > MaxFlagListLimit {
		return MaxFlagListLimit
	}
	return limit
}
