package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appMiddleware "github.com/clepfinder/backend/internal/middleware"
	"github.com/clepfinder/backend/internal/models"
	"github.com/clepfinder/backend/internal/services"
)

const testSecret = "test-secret"

// newTestRouter wires the handlers the same way cmd/server does, backed by
// the in-memory store and the HS256 dev-token auth path.
func newTestRouter() *chi.Mux {
	store := services.NewMemoryCollegeService()
	collegeHandler := NewCollegeHandler(store)
	flagHandler := NewFlagHandler(store, services.NewFlagMailer("", "", ""))

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/colleges", collegeHandler.ListColleges)
		r.Get("/colleges/{collegeId}", collegeHandler.GetCollege)
		r.Get("/colleges/{collegeId}/exams", collegeHandler.ListExams)
		r.Get("/colleges/{collegeId}/exams/{examId}/flags", flagHandler.ListFlags)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.Auth(nil, testSecret))

			manage := appMiddleware.RequireRole(appMiddleware.RoleInstitution, appMiddleware.RoleAdmin)
			adminOnly := appMiddleware.RequireRole(appMiddleware.RoleAdmin)

			r.With(manage).Post("/colleges", collegeHandler.CreateCollege)
			r.With(manage).Patch("/colleges/{collegeId}", collegeHandler.UpdateCollege)
			r.With(adminOnly).Delete("/colleges/{collegeId}", collegeHandler.DeleteCollege)

			r.With(manage).Post("/colleges/{collegeId}/exams", collegeHandler.CreateExam)
			r.With(manage).Patch("/colleges/{collegeId}/exams/{examId}", collegeHandler.UpdateExam)
			r.With(manage).Delete("/colleges/{collegeId}/exams/{examId}", collegeHandler.DeleteExam)

			r.Post("/colleges/{collegeId}/exams/{examId}/flags", flagHandler.SubmitFlag)
			r.With(adminOnly).Delete("/colleges/{collegeId}/exams/{examId}/flags/{flagId}", flagHandler.DeleteFlag)
		})
	})
	return r
}

func devToken(t *testing.T, userID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"email":   userID + "@demo.com",
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type testEnvelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

func doRequest(t *testing.T, router http.Handler, method, path, token string, body interface{}) (int, testEnvelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return rec.Code, env
}

func decodeData(t *testing.T, env testEnvelope, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func TestCollegeLifecycle(t *testing.T) {
	router := newTestRouter()
	institution := devToken(t, "inst-1", appMiddleware.RoleInstitution)
	learner := devToken(t, "learner-1", appMiddleware.RoleLearner)
	admin := devToken(t, "admin-1", appMiddleware.RoleAdmin)

	// Institution creates its college.
	status, env := doRequest(t, router, http.MethodPost, "/api/colleges", institution, models.CreateCollegeRequest{
		ID: "osu", Name: "Ohio State University", State: "OH", ZipCode: "43210", AcceptsExams: true,
	})
	require.Equal(t, http.StatusCreated, status)
	var college models.College
	decodeData(t, env, &college)
	assert.Equal(t, "osu", college.ID)
	// Institutions own what they create regardless of the request body.
	assert.Equal(t, "inst-1", college.OwnerID)

	// Institution adds an exam with explicit values.
	minScore := 50
	credits := 6.0
	charge := int64(2500)
	status, env = doRequest(t, router, http.MethodPost, "/api/colleges/osu/exams", institution, models.CreateExamRequest{
		ExamName: "Biology", MinScore: &minScore, Credits: &credits, TranscriptChargeCents: &charge,
	})
	require.Equal(t, http.StatusCreated, status)
	var exam models.Exam
	decodeData(t, env, &exam)
	require.NotEmpty(t, exam.ID)
	assert.Equal(t, "osu", exam.CollegeID)
	assert.Equal(t, 0, exam.Flagged)

	// Public read shows the exam and the derived count.
	status, env = doRequest(t, router, http.MethodGet, "/api/colleges/osu", "", nil)
	require.Equal(t, http.StatusOK, status)
	var got models.College
	decodeData(t, env, &got)
	require.NotNil(t, got.ExamsCount)
	assert.Equal(t, 1, *got.ExamsCount)
	require.Len(t, got.Exams, 1)

	// Learner flags the exam.
	status, env = doRequest(t, router, http.MethodPost, "/api/colleges/osu/exams/"+exam.ID+"/flags", learner, models.CreateFlagRequest{
		Reason: "Score requirement is out of date",
	})
	require.Equal(t, http.StatusCreated, status)
	var flagResult models.FlagResult
	decodeData(t, env, &flagResult)
	assert.Equal(t, 1, flagResult.Flagged)
	assert.Equal(t, "learner-1", flagResult.Flag.FlaggedBy)

	// The flag is publicly listable.
	status, env = doRequest(t, router, http.MethodGet, "/api/colleges/osu/exams/"+exam.ID+"/flags", "", nil)
	require.Equal(t, http.StatusOK, status)
	var flags []models.Flag
	decodeData(t, env, &flags)
	require.Len(t, flags, 1)
	assert.Equal(t, "Score requirement is out of date", flags[0].Reason)

	// Admin resolves the flag; the counter drops back.
	status, _ = doRequest(t, router, http.MethodDelete, "/api/colleges/osu/exams/"+exam.ID+"/flags/"+flags[0].ID, admin, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = doRequest(t, router, http.MethodGet, "/api/colleges/osu/exams", "", nil)
	require.Equal(t, http.StatusOK, status)
	var exams []models.Exam
	decodeData(t, env, &exams)
	require.Len(t, exams, 1)
	assert.Equal(t, 0, exams[0].Flagged)

	// Admin removes the college; the read surface goes 404.
	status, _ = doRequest(t, router, http.MethodDelete, "/api/colleges/osu", admin, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = doRequest(t, router, http.MethodGet, "/api/colleges/osu", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = doRequest(t, router, http.MethodGet, "/api/colleges/osu/exams/"+exam.ID+"/flags", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	// Delete is idempotent.
	status, _ = doRequest(t, router, http.MethodDelete, "/api/colleges/osu", admin, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestCreateCollegeValidationAndConflicts(t *testing.T) {
	router := newTestRouter()
	admin := devToken(t, "admin-1", appMiddleware.RoleAdmin)

	status, env := doRequest(t, router, http.MethodPost, "/api/colleges", admin, models.CreateCollegeRequest{ID: "osu"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Errors, "name")

	status, _ = doRequest(t, router, http.MethodPost, "/api/colleges", admin, models.CreateCollegeRequest{
		ID: "osu", Name: "Ohio State University",
	})
	require.Equal(t, http.StatusCreated, status)

	// Re-creating the same id is a conflict, not an overwrite.
	status, env = doRequest(t, router, http.MethodPost, "/api/colleges", admin, models.CreateCollegeRequest{
		ID: "osu", Name: "Some Other Name",
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)

	status, env = doRequest(t, router, http.MethodGet, "/api/colleges/osu", "", nil)
	require.Equal(t, http.StatusOK, status)
	var college models.College
	decodeData(t, env, &college)
	assert.Equal(t, "Ohio State University", college.Name)
}

func TestUpdateCollegeNotFound(t *testing.T) {
	router := newTestRouter()
	admin := devToken(t, "admin-1", appMiddleware.RoleAdmin)

	name := "Renamed"
	status, _ := doRequest(t, router, http.MethodPatch, "/api/colleges/missing", admin, models.UpdateCollegeRequest{Name: &name})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSubmitFlagRequiresReason(t *testing.T) {
	router := newTestRouter()
	admin := devToken(t, "admin-1", appMiddleware.RoleAdmin)
	learner := devToken(t, "learner-1", appMiddleware.RoleLearner)

	status, _ := doRequest(t, router, http.MethodPost, "/api/colleges", admin, models.CreateCollegeRequest{ID: "osu", Name: "Ohio State University"})
	require.Equal(t, http.StatusCreated, status)
	status, env := doRequest(t, router, http.MethodPost, "/api/colleges/osu/exams", admin, models.CreateExamRequest{ExamName: "Biology"})
	require.Equal(t, http.StatusCreated, status)
	var exam models.Exam
	decodeData(t, env, &exam)

	status, env = doRequest(t, router, http.MethodPost, "/api/colleges/osu/exams/"+exam.ID+"/flags", learner, models.CreateFlagRequest{Reason: "   "})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, env.Errors, "reason")

	status, _ = doRequest(t, router, http.MethodPost, "/api/colleges/osu/exams/no-such-exam/flags", learner, models.CreateFlagRequest{Reason: "wrong score"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRoleAndAuthGates(t *testing.T) {
	router := newTestRouter()
	learner := devToken(t, "learner-1", appMiddleware.RoleLearner)
	institution := devToken(t, "inst-1", appMiddleware.RoleInstitution)

	body := models.CreateCollegeRequest{ID: "osu", Name: "Ohio State University"}

	status, env := doRequest(t, router, http.MethodPost, "/api/colleges", "", body)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.False(t, env.Success)

	status, _ = doRequest(t, router, http.MethodPost, "/api/colleges", learner, body)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doRequest(t, router, http.MethodDelete, "/api/colleges/osu", institution, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestInstitutionCannotManageForeignCollege(t *testing.T) {
	router := newTestRouter()
	owner := devToken(t, "inst-1", appMiddleware.RoleInstitution)
	other := devToken(t, "inst-2", appMiddleware.RoleInstitution)
	admin := devToken(t, "admin-1", appMiddleware.RoleAdmin)

	status, _ := doRequest(t, router, http.MethodPost, "/api/colleges", owner, models.CreateCollegeRequest{
		ID: "osu", Name: "Ohio State University",
	})
	require.Equal(t, http.StatusCreated, status)

	name := "Hijacked"
	status, _ = doRequest(t, router, http.MethodPatch, "/api/colleges/osu", other, models.UpdateCollegeRequest{Name: &name})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doRequest(t, router, http.MethodPost, "/api/colleges/osu/exams", other, models.CreateExamRequest{ExamName: "Biology"})
	assert.Equal(t, http.StatusForbidden, status)

	// The owner and admins may.
	name = "Ohio State"
	status, _ = doRequest(t, router, http.MethodPatch, "/api/colleges/osu", owner, models.UpdateCollegeRequest{Name: &name})
	assert.Equal(t, http.StatusOK, status)
	name = "The Ohio State University"
	status, _ = doRequest(t, router, http.MethodPatch, "/api/colleges/osu", admin, models.UpdateCollegeRequest{Name: &name})
	assert.Equal(t, http.StatusOK, status)
}

func TestCreateExamDefaultsAndConflict(t *testing.T) {
	router := newTestRouter()
	admin := devToken(t, "admin-1", appMiddleware.RoleAdmin)

	status, _ := doRequest(t, router, http.MethodPost, "/api/colleges", admin, models.CreateCollegeRequest{ID: "osu", Name: "Ohio State University"})
	require.Equal(t, http.StatusCreated, status)

	status, env := doRequest(t, router, http.MethodPost, "/api/colleges/osu/exams", admin, models.CreateExamRequest{
		ID: "biology", ExamName: "Biology",
	})
	require.Equal(t, http.StatusCreated, status)
	var exam models.Exam
	decodeData(t, env, &exam)
	assert.Equal(t, models.DefaultMinScore, exam.MinScore)
	assert.Equal(t, models.DefaultCredits, exam.Credits)
	assert.EqualValues(t, 0, exam.TranscriptChargeCents)

	status, _ = doRequest(t, router, http.MethodPost, "/api/colleges/osu/exams", admin, models.CreateExamRequest{
		ID: "biology", ExamName: "Biology Again",
	})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = doRequest(t, router, http.MethodPost, "/api/colleges/missing/exams", admin, models.CreateExamRequest{ExamName: "Biology"})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestFlagListLimitClamp(t *testing.T) {
	router := newTestRouter()
	admin := devToken(t, "admin-1", appMiddleware.RoleAdmin)
	learner := devToken(t, "learner-1", appMiddleware.RoleLearner)

	status, _ := doRequest(t, router, http.MethodPost, "/api/colleges", admin, models.CreateCollegeRequest{ID: "osu", Name: "Ohio State University"})
	require.Equal(t, http.StatusCreated, status)
	status, env := doRequest(t, router, http.MethodPost, "/api/colleges/osu/exams", admin, models.CreateExamRequest{ExamName: "Biology"})
	require.Equal(t, http.StatusCreated, status)
	var exam models.Exam
	decodeData(t, env, &exam)

	for i := 0; i < services.DefaultFlagListLimit+5; i++ {
		status, _ = doRequest(t, router, http.MethodPost, "/api/colleges/osu/exams/"+exam.ID+"/flags", learner, models.CreateFlagRequest{Reason: "stale record"})
		require.Equal(t, http.StatusCreated, status)
	}

	// No limit requested: the default applies.
	status, env = doRequest(t, router, http.MethodGet, "/api/colleges/osu/exams/"+exam.ID+"/flags", "", nil)
	require.Equal(t, http.StatusOK, status)
	var flags []models.Flag
	decodeData(t, env, &flags)
	assert.Len(t, flags, services.DefaultFlagListLimit)

	status, env = doRequest(t, router, http.MethodGet, "/api/colleges/osu/exams/"+exam.ID+"/flags?limit=3", "", nil)
	require.Equal(t, http.StatusOK, status)
	flags = nil
	decodeData(t, env, &flags)
	assert.Len(t, flags, 3)
}
