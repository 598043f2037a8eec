package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clepfinder/backend/internal/config"
	"github.com/clepfinder/backend/internal/handlers"
	appMiddleware "github.com/clepfinder/backend/internal/middleware"
	"github.com/clepfinder/backend/internal/services"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Firebase Auth (server-side verification of ID tokens). Without
	// credentials the auth middleware accepts HS256 dev tokens instead.
	authClient, err := appMiddleware.NewFirebaseAuthClient(ctx, appMiddleware.FirebaseAuthConfig{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsJSON: cfg.FirebaseCredentialsJSON,
	})
	if err != nil {
		log.Printf("Warning: failed to initialize Firebase Auth client: %v", err)
	}
	if authClient == nil {
		log.Printf("Firebase Auth not configured; accepting HS256 dev tokens")
	}

	var collegeService services.CollegeService
	if cfg.MongoURI != "" {
		mongoService, err := services.NewMongoCollegeService(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer mongoService.Close(context.Background())
		collegeService = mongoService
	} else {
		log.Printf("MONGO_URI not set; using in-memory store (development only)")
		collegeService = services.NewMemoryCollegeService()
	}

	flagMailer := services.NewFlagMailer(cfg.FlagMailAPIKey, cfg.FlagMailFrom, cfg.FlagMailTo)

	collegeHandler := handlers.NewCollegeHandler(collegeService)
	flagHandler := handlers.NewFlagHandler(collegeService, flagMailer)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		// Public catalog reads: learners browse without an account.
		r.Get("/colleges", collegeHandler.ListColleges)
		r.Get("/colleges/{collegeId}", collegeHandler.GetCollege)
		r.Get("/colleges/{collegeId}/exams", collegeHandler.ListExams)
		r.Get("/colleges/{collegeId}/exams/{examId}/flags", flagHandler.ListFlags)

		// Authenticated writes, role-gated in-process.
		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.Auth(authClient, cfg.JWTSecret))

			manage := appMiddleware.RequireRole(appMiddleware.RoleInstitution, appMiddleware.RoleAdmin)
			adminOnly := appMiddleware.RequireRole(appMiddleware.RoleAdmin)

			r.With(manage).Post("/colleges", collegeHandler.CreateCollege)
			r.With(manage).Patch("/colleges/{collegeId}", collegeHandler.UpdateCollege)
			r.With(adminOnly).Delete("/colleges/{collegeId}", collegeHandler.DeleteCollege)

			r.With(manage).Post("/colleges/{collegeId}/exams", collegeHandler.CreateExam)
			r.With(manage).Patch("/colleges/{collegeId}/exams/{examId}", collegeHandler.UpdateExam)
			r.With(manage).Delete("/colleges/{collegeId}/exams/{examId}", collegeHandler.DeleteExam)

			// Any signed-in user may report an inaccurate record.
			r.Post("/colleges/{collegeId}/exams/{examId}/flags", flagHandler.SubmitFlag)
			r.With(adminOnly).Delete("/colleges/{collegeId}/exams/{examId}/flags/{flagId}", flagHandler.DeleteFlag)
		})
	})

	log.Printf("CLEP Finder API server starting on %s", cfg.ServerAddress)
	if err := http.ListenAndServe(cfg.ServerAddress, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
