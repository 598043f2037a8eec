package models

import (
	"strings"
	"time"
)

// Flag is a learner-submitted report that an exam record is inaccurate.
// Flags are immutable once created; admins resolve them by deletion.
type Flag struct {
	ID        string    `json:"id" bson:"_id"`
	CollegeID string    `json:"collegeId" bson:"college_id"`
	ExamID    string    `json:"examId" bson:"exam_id"`
	Reason    string    `json:"reason" bson:"reason"`
	Contact   string    `json:"contact,omitempty" bson:"contact,omitempty"`
	FlaggedBy string    `json:"flaggedBy,omitempty" bson:"flagged_by,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

type CreateFlagRequest struct {
	Reason  string `json:"reason"`
	Contact string `json:"contact"`
}

// FlagResult is returned after a flag submission: the new record plus the
// exam's updated flagged total.
type FlagResult struct {
	Flag    Flag `json:"flag"`
	Flagged int  `json:"flagged"`
}

func (r *CreateFlagRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Reason) == "" {
		errors["reason"] = "Flag reason is required"
	}

	return errors
}
