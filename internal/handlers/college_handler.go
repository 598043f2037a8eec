package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clepfinder/backend/internal/middleware"
	"github.com/clepfinder/backend/internal/models"
	"github.com/clepfinder/backend/internal/services"
)

type CollegeHandler struct {
	collegeService services.CollegeService
}

func NewCollegeHandler(collegeService services.CollegeService) *CollegeHandler {
	return &CollegeHandler{
		collegeService: collegeService,
	}
}

func (h *CollegeHandler) ListColleges(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner")

	colleges, err := h.collegeService.ListColleges(r.Context(), ownerID)
	if err != nil {
		log.Printf("[ListColleges] Service error: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, models.NewErrorResponse("Data store unavailable"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(colleges))
}

func (h *CollegeHandler) CreateCollege(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	role := middleware.GetUserRole(r.Context())

	var req models.CreateCollegeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	// Institutions always own the colleges they create; only admins may
	// assign ownership to someone else.
	if role == middleware.RoleInstitution {
		req.OwnerID = userID
	}

	if errors := req.Validate(); len(errors) > 0 {
		log.Printf("[CreateCollege] Validation errors: %v", errors)
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	college, err := h.collegeService.CreateCollege(r.Context(), &req)
	if err != nil {
		if err == services.ErrCollegeExists {
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("College id already exists"))
			return
		}
		log.Printf("[CreateCollege] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create college"))
		return
	}

	log.Printf("[CreateCollege] College created: %s", college.ID)
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(college))
}

func (h *CollegeHandler) GetCollege(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeId")

	college, err := h.collegeService.GetCollege(r.Context(), collegeID)
	if err != nil {
		if err == services.ErrCollegeNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("College not found"))
			return
		}
		log.Printf("[GetCollege] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to get college"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(college))
}

func (h *CollegeHandler) UpdateCollege(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeId")

	var req models.UpdateCollegeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	if !h.canManageCollege(w, r, collegeID) {
		return
	}

	college, err := h.collegeService.UpdateCollege(r.Context(), collegeID, &req)
	if err != nil {
		if err == services.ErrCollegeNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("College not found"))
			return
		}
		log.Printf("[UpdateCollege] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update college"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(college))
}

func (h *CollegeHandler) DeleteCollege(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeId")

	if err := h.collegeService.DeleteCollege(r.Context(), collegeID); err != nil {
		log.Printf("[DeleteCollege] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete college"))
		return
	}

	log.Printf("[DeleteCollege] College deleted: %s", collegeID)
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "College deleted successfully"}))
}

func (h *CollegeHandler) ListExams(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeId")

	exams, err := h.collegeService.ListExams(r.Context(), collegeID)
	if err != nil {
		if err == services.ErrCollegeNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("College not found"))
			return
		}
		log.Printf("[ListExams] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to list exams"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(exams))
}

func (h *CollegeHandler) CreateExam(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeId")

	var req models.CreateExamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		log.Printf("[CreateExam] Validation errors: %v", errors)
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	if !h.canManageCollege(w, r, collegeID) {
		return
	}

	exam, err := h.collegeService.CreateExam(r.Context(), collegeID, &req)
	if err != nil {
		if err == services.ErrCollegeNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("College not found"))
			return
		}
		if err == services.ErrExamExists {
			writeJSON(w, http.StatusConflict, models.NewErrorResponse("Exam id already exists"))
			return
		}
		log.Printf("[CreateExam] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to create exam"))
		return
	}

	log.Printf("[CreateExam] Exam created: %s/%s", collegeID, exam.ID)
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(exam))
}

func (h *CollegeHandler) UpdateExam(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeId")
	examID := chi.URLParam(r, "examId")

	var req models.UpdateExamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	if !h.canManageCollege(w, r, collegeID) {
		return
	}

	exam, err := h.collegeService.UpdateExam(r.Context(), collegeID, examID, &req)
	if err != nil {
		if err == services.ErrExamNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Exam not found"))
			return
		}
		log.Printf("[UpdateExam] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to update exam"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(exam))
}

func (h *CollegeHandler) DeleteExam(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeId")
	examID := chi.URLParam(r, "examId")

	if !h.canManageCollege(w, r, collegeID) {
		return
	}

	if err := h.collegeService.DeleteExam(r.Context(), collegeID, examID); err != nil {
		if err == services.ErrExamNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Exam not found"))
			return
		}
		log.Printf("[DeleteExam] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete exam"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Exam deleted successfully"}))
}

// canManageCollege enforces ownership for institution users. Admins may
// manage any college. Writes an error response and returns false on denial.
func (h *CollegeHandler) canManageCollege(w http.ResponseWriter, r *http.Request, collegeID string) bool {
	role := middleware.GetUserRole(r.Context())
	if role == middleware.RoleAdmin {
		return true
	}

	college, err := h.collegeService.GetCollege(r.Context(), collegeID)
	if err != nil {
		if err == services.ErrCollegeNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("College not found"))
			return false
		}
		log.Printf("[canManageCollege] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to check college ownership"))
		return false
	}

	if college.OwnerID == "" || college.OwnerID != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not authorized to manage this college"))
		return false
	}
	return true
}
