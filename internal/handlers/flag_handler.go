package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clepfinder/backend/internal/middleware"
	"github.com/clepfinder/backend/internal/models"
	"github.com/clepfinder/backend/internal/services"
)

type FlagHandler struct {
	collegeService services.CollegeService
	mailer         *services.FlagMailer
}

func NewFlagHandler(collegeService services.CollegeService, mailer *services.FlagMailer) *FlagHandler {
	return &FlagHandler{
		collegeService: collegeService,
		mailer:         mailer,
	}
}

func (h *FlagHandler) SubmitFlag(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	collegeID := chi.URLParam(r, "collegeId")
	examID := chi.URLParam(r, "examId")

	var req models.CreateFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		log.Printf("[SubmitFlag] Validation errors: %v", errors)
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	result, err := h.collegeService.SubmitFlag(r.Context(), collegeID, examID, userID, &req)
	if err != nil {
		if err == services.ErrExamNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Exam not found"))
			return
		}
		log.Printf("[SubmitFlag] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to submit flag"))
		return
	}

	log.Printf("[SubmitFlag] Flag %s on %s/%s, total=%d", result.Flag.ID, collegeID, examID, result.Flagged)

	// Best-effort review notification; never blocks the response.
	if h.mailer.Configured() {
		flag := result.Flag
		total := result.Flagged
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := h.mailer.SendFlagNotification(ctx, flag, total); err != nil {
				log.Printf("[SubmitFlag] mail notification error: %v", err)
			}
		}()
	}

	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(result))
}

func (h *FlagHandler) ListFlags(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeId")
	examID := chi.URLParam(r, "examId")

	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		if v, err := strconv.Atoi(rawLimit); err == nil {
			limit = v
		}
	}

	flags, err := h.collegeService.ListFlags(r.Context(), collegeID, examID, limit)
	if err != nil {
		if err == services.ErrExamNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Exam not found"))
			return
		}
		log.Printf("[ListFlags] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to list flags"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(flags))
}

func (h *FlagHandler) DeleteFlag(w http.ResponseWriter, r *http.Request) {
	collegeID := chi.URLParam(r, "collegeId")
	examID := chi.URLParam(r, "examId")
	flagID := chi.URLParam(r, "flagId")

	if err := h.collegeService.DeleteFlag(r.Context(), collegeID, examID, flagID); err != nil {
		if err == services.ErrFlagNotFound {
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Flag not found"))
			return
		}
		log.Printf("[DeleteFlag] Service error: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to delete flag"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]string{"message": "Flag deleted successfully"}))
}
