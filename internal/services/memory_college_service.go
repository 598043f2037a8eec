package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clepfinder/backend/internal/models"
)

// MemoryCollegeService keeps everything in process memory. It backs local
// development when MONGO_URI is unset and the handler tests. Semantics match
// MongoCollegeService, including the flagged-counter invariant.
type MemoryCollegeService struct {
	mu       sync.RWMutex
	colleges map[string]*models.College
	exams    map[string]*models.Exam // collegeID/examID -> exam
	flags    map[string]*models.Flag // flagID -> flag
}

// examKey scopes exam ids to their college: two colleges may both have an
// exam id "biology".
func examKey(collegeID, examID string) string {
	return collegeID + "/" + examID
}

func NewMemoryCollegeService() *MemoryCollegeService {
	return &MemoryCollegeService{
		colleges: make(map[string]*models.College),
		exams:    make(map[string]*models.Exam),
		flags:    make(map[string]*models.Flag),
	}
}

func (s *MemoryCollegeService) ListColleges(_ context.Context, ownerID string) ([]models.College, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.College, 0, len(s.colleges))
	for _, c := range s.colleges {
		if ownerID != "" && c.OwnerID != ownerID {
			continue
		}
		results = append(results, *c)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, nil
}

func (s *MemoryCollegeService) CreateCollege(_ context.Context, req *models.CreateCollegeRequest) (*models.College, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.colleges[req.ID]; exists {
		return nil, ErrCollegeExists
	}

	college := &models.College{
		ID:           req.ID,
		Name:         req.Name,
		State:        req.State,
		ZipCode:      req.ZipCode,
		OwnerID:      req.OwnerID,
		AcceptsExams: req.AcceptsExams,
		LastUpdated:  time.Now().UTC(),
	}
	s.colleges[college.ID] = college

	out := *college
	return &out, nil
}

func (s *MemoryCollegeService) GetCollege(_ context.Context, id string) (*models.College, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	college, exists := s.colleges[id]
	if !exists {
		return nil, ErrCollegeNotFound
	}

	out := *college
	out.Exams = s.examsForCollege(id)
	n := len(out.Exams)
	out.ExamsCount = &n
	return &out, nil
}

func (s *MemoryCollegeService) UpdateCollege(_ context.Context, id string, req *models.UpdateCollegeRequest) (*models.College, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	college, exists := s.colleges[id]
	if !exists {
		return nil, ErrCollegeNotFound
	}

	if req.Name != nil {
		college.Name = *req.Name
	}
	if req.State != nil {
		college.State = *req.State
	}
	if req.ZipCode != nil {
		college.ZipCode = *req.ZipCode
	}
	if req.AcceptsExams != nil {
		college.AcceptsExams = *req.AcceptsExams
	}
	college.LastUpdated = time.Now().UTC()

	out := *college
	return &out, nil
}

func (s *MemoryCollegeService) DeleteCollege(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Cascade: flags first, then exams, then the parent. Idempotent.
	for flagID, flag := range s.flags {
		if flag.CollegeID == id {
			delete(s.flags, flagID)
		}
	}
	for key, exam := range s.exams {
		if exam.CollegeID == id {
			delete(s.exams, key)
		}
	}
	delete(s.colleges, id)
	return nil
}

func (s *MemoryCollegeService) ListExams(_ context.Context, collegeID string) ([]models.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.colleges[collegeID]; !exists {
		return nil, ErrCollegeNotFound
	}
	return s.examsForCollege(collegeID), nil
}

func (s *MemoryCollegeService) CreateExam(_ context.Context, collegeID string, req *models.CreateExamRequest) (*models.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.colleges[collegeID]; !exists {
		return nil, ErrCollegeNotFound
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = uuid.New().String()
	} else if _, exists := s.exams[examKey(collegeID, id)]; exists {
		return nil, ErrExamExists
	}

	exam := &models.Exam{
		ID:                    id,
		CollegeID:             collegeID,
		ExamName:              req.ExamName,
		MinScore:              models.DefaultMinScore,
		Credits:               models.DefaultCredits,
		TranscriptChargeCents: 0,
		ClepURL:               req.ClepURL,
		Flagged:               0,
		LastModified:          time.Now().UTC(),
	}
	if req.MinScore != nil {
		exam.MinScore = *req.MinScore
	}
	if req.Credits != nil {
		exam.Credits = *req.Credits
	}
	if req.TranscriptChargeCents != nil {
		exam.TranscriptChargeCents = *req.TranscriptChargeCents
	}

	s.exams[examKey(collegeID, exam.ID)] = exam

	out := *exam
	return &out, nil
}

func (s *MemoryCollegeService) UpdateExam(_ context.Context, collegeID, examID string, req *models.UpdateExamRequest) (*models.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exam, exists := s.exams[examKey(collegeID, examID)]
	if !exists {
		return nil, ErrExamNotFound
	}

	if req.ExamName != nil {
		exam.ExamName = *req.ExamName
	}
	if req.MinScore != nil {
		exam.MinScore = *req.MinScore
	}
	if req.Credits != nil {
		exam.Credits = *req.Credits
	}
	if req.TranscriptChargeCents != nil {
		exam.TranscriptChargeCents = *req.TranscriptChargeCents
	}
	if req.ClepURL != nil {
		exam.ClepURL = *req.ClepURL
	}
	exam.LastModified = time.Now().UTC()

	out := *exam
	return &out, nil
}

func (s *MemoryCollegeService) DeleteExam(_ context.Context, collegeID, examID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.exams[examKey(collegeID, examID)]; !exists {
		return ErrExamNotFound
	}

	// Cascade the exam's flags so no orphans remain.
	for flagID, flag := range s.flags {
		if flag.CollegeID == collegeID && flag.ExamID == examID {
			delete(s.flags, flagID)
		}
	}
	delete(s.exams, examKey(collegeID, examID))
	return nil
}

func (s *MemoryCollegeService) SubmitFlag(_ context.Context, collegeID, examID, flaggedBy string, req *models.CreateFlagRequest) (*models.FlagResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exam, exists := s.exams[examKey(collegeID, examID)]
	if !exists {
		return nil, ErrExamNotFound
	}

	now := time.Now().UTC()
	reason := strings.TrimSpace(req.Reason)
	flag := &models.Flag{
		ID:        uuid.New().String(),
		CollegeID: collegeID,
		ExamID:    examID,
		Reason:    reason,
		Contact:   strings.TrimSpace(req.Contact),
		FlaggedBy: flaggedBy,
		CreatedAt: now,
	}
	s.flags[flag.ID] = flag

	exam.Flagged++
	exam.LastFlagReason = &reason
	exam.LastFlaggedAt = &now

	return &models.FlagResult{Flag: *flag, Flagged: exam.Flagged}, nil
}

func (s *MemoryCollegeService) ListFlags(_ context.Context, collegeID, examID string, limit int) ([]models.Flag, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.exams[examKey(collegeID, examID)]; !exists {
		return nil, ErrExamNotFound
	}

	results := make([]models.Flag, 0)
	for _, flag := range s.flags {
		if flag.CollegeID == collegeID && flag.ExamID == examID {
			results = append(results, *flag)
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID > results[j].ID
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	limit = ClampFlagLimit(limit)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryCollegeService) DeleteFlag(_ context.Context, collegeID, examID, flagID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flag, exists := s.flags[flagID]
	if !exists || flag.ExamID != examID || flag.CollegeID != collegeID {
		return ErrFlagNotFound
	}
	delete(s.flags, flagID)

	// Keep the counter in step with the remaining flag records.
	if exam, ok := s.exams[examKey(collegeID, examID)]; ok && exam.Flagged > 0 {
		exam.Flagged--
	}
	return nil
}

func (s *MemoryCollegeService) examsForCollege(collegeID string) []models.Exam {
	exams := make([]models.Exam, 0)
	for _, exam := range s.exams {
		if exam.CollegeID == collegeID {
			exams = append(exams, *exam)
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].ExamName < exams[j].ExamName })
	return exams
}
