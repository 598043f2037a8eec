package models

import (
	"strings"
	"time"
)

// College is an institution entity owning a set of exam acceptance records.
// The id is caller-assigned (e.g. "osu") so institutions can share stable links.
type College struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	State        string    `json:"state" bson:"state"`
	ZipCode      string    `json:"zipCode" bson:"zip_code"`
	OwnerID      string    `json:"ownerId,omitempty" bson:"owner_id,omitempty"`
	AcceptsExams bool      `json:"acceptsExams" bson:"accepts_exams"`
	ExamsCount   *int      `json:"examsCount,omitempty" bson:"-"`
	LastUpdated  time.Time `json:"lastUpdated" bson:"last_updated"`
	Exams        []Exam    `json:"exams,omitempty" bson:"-"`
}

type CreateCollegeRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
	OwnerID      string `json:"ownerId"`
	AcceptsExams bool   `json:"acceptsExams"`
}

// UpdateCollegeRequest carries a partial update; nil fields are left untouched.
type UpdateCollegeRequest struct {
	Name         *string `json:"name"`
	State        *string `json:"state"`
	ZipCode      *string `json:"zipCode"`
	AcceptsExams *bool   `json:"acceptsExams"`
}

func (r *CreateCollegeRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.ID) == "" {
		errors["id"] = "College id is required"
	}
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "College name is required"
	}

	return errors
}

func (r *UpdateCollegeRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errors["name"] = "College name cannot be blank"
	}

	return errors
}
