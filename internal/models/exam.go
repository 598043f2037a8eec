package models

import (
	"strings"
	"time"
)

// Default acceptance values applied when an institution leaves them blank.
const (
	DefaultMinScore = 50
	DefaultCredits  = 3.0
)

// Exam is a standardized-test acceptance record belonging to one college.
// Exam ids are scoped to their college, so the id is stored as a plain
// field and uniqueness is enforced on (college_id, exam_id).
type Exam struct {
	ID                    string     `json:"id" bson:"exam_id"`
	CollegeID             string     `json:"collegeId" bson:"college_id"`
	ExamName              string     `json:"examName" bson:"exam_name"`
	MinScore              int        `json:"minScore" bson:"min_score"`
	Credits               float64    `json:"credits" bson:"credits"`
	TranscriptChargeCents int64      `json:"transcriptChargeCents" bson:"transcript_charge_cents"`
	ClepURL               string     `json:"clepUrl,omitempty" bson:"clep_url,omitempty"`
	Flagged               int        `json:"flagged" bson:"flagged"`
	LastFlagReason        *string    `json:"lastFlagReason" bson:"last_flag_reason,omitempty"`
	LastFlaggedAt         *time.Time `json:"lastFlaggedAt" bson:"last_flagged_at,omitempty"`
	LastModified          time.Time  `json:"lastModified" bson:"last_modified"`
}

type CreateExamRequest struct {
	ID                    string   `json:"id"`
	ExamName              string   `json:"examName"`
	MinScore              *int     `json:"minScore"`
	Credits               *float64 `json:"credits"`
	TranscriptChargeCents *int64   `json:"transcriptChargeCents"`
	ClepURL               string   `json:"clepUrl"`
}

// UpdateExamRequest carries a partial update; nil fields are left untouched.
type UpdateExamRequest struct {
	ExamName              *string  `json:"examName"`
	MinScore              *int     `json:"minScore"`
	Credits               *float64 `json:"credits"`
	TranscriptChargeCents *int64   `json:"transcriptChargeCents"`
	ClepURL               *string  `json:"clepUrl"`
}

func (r *CreateExamRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.ExamName) == "" {
		errors["examName"] = "Exam name is required"
	}
	if r.MinScore != nil && *r.MinScore < 0 {
		errors["minScore"] = "Minimum score cannot be negative"
	}
	if r.Credits != nil && *r.Credits < 0 {
		errors["credits"] = "Credits cannot be negative"
	}
	if r.TranscriptChargeCents != nil && *r.TranscriptChargeCents < 0 {
		errors["transcriptChargeCents"] = "Transcript charge cannot be negative"
	}

	return errors
}

func (r *UpdateExamRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.ExamName != nil && strings.TrimSpace(*r.ExamName) == "" {
		errors["examName"] = "Exam name cannot be blank"
	}
	if r.MinScore != nil && *r.MinScore < 0 {
		errors["minScore"] = "Minimum score cannot be negative"
	}
	if r.Credits != nil && *r.Credits < 0 {
		errors["credits"] = "Credits cannot be negative"
	}
	if r.TranscriptChargeCents != nil && *r.TranscriptChargeCents < 0 {
		errors["transcriptChargeCents"] = "Transcript charge cannot be negative"
	}

	return errors
}
