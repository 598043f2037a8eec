// Command seed provisions the two demo accounts (admin and institution) in
// Firebase Auth with their role claims, and optionally pushes a sample
// college through the gateway so a fresh environment has data to look at.
//
// Usage: put FIREBASE_PROJECT_ID / FIREBASE_CREDENTIALS_JSON in .env (or the
// environment) and run the binary. Set SEED_API_URL and SEED_API_TOKEN to
// also seed the sample college.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"

	"github.com/clepfinder/backend/internal/client"
	"github.com/clepfinder/backend/internal/models"
)

type presetAccount struct {
	Email    string
	Password string
	Role     string
}

var presetAccounts = []presetAccount{
	{Email: "admin@demo.com", Password: "admin123456", Role: "admin"},
	{Email: "institution@demo.com", Password: "institution123456", Role: "institution"},
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	ctx := context.Background()

	credentials := os.Getenv("FIREBASE_CREDENTIALS_JSON")
	if strings.TrimSpace(credentials) == "" {
		log.Fatal("FIREBASE_CREDENTIALS_JSON is required")
	}

	app, err := firebase.NewApp(ctx,
		&firebase.Config{ProjectID: os.Getenv("FIREBASE_PROJECT_ID")},
		option.WithCredentialsJSON([]byte(credentials)),
	)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase app: %v", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	type result struct {
		account presetAccount
		status  string
	}
	results := make([]result, 0, len(presetAccounts))

	for _, account := range presetAccounts {
		status, err := createPresetAccount(ctx, authClient, account)
		if err != nil {
			log.Printf("Failed to create %s account %s: %v", account.Role, account.Email, err)
			status = "failed"
		}
		results = append(results, result{account: account, status: status})
	}

	if apiURL := os.Getenv("SEED_API_URL"); apiURL != "" {
		if err := seedSampleCollege(ctx, apiURL, os.Getenv("SEED_API_TOKEN")); err != nil {
			log.Printf("Failed to seed sample college: %v", err)
		}
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Println(strings.Repeat("=", 50))
	for _, r := range results {
		fmt.Printf("%-12s %-24s %s\n", strings.ToUpper(r.account.Role), r.account.Email, r.status)
	}
	fmt.Println(strings.Repeat("=", 50))
}

func createPresetAccount(ctx context.Context, authClient *fbauth.Client, account presetAccount) (string, error) {
	params := (&fbauth.UserToCreate{}).
		Email(account.Email).
		Password(account.Password).
		EmailVerified(true)

	user, err := authClient.CreateUser(ctx, params)
	if err != nil {
		if fbauth.IsEmailAlreadyExists(err) {
			return "already exists", nil
		}
		return "", err
	}

	// Role claims drive both the declarative rules and the gateway checks.
	claims := map[string]interface{}{"role": account.Role}
	if err := authClient.SetCustomUserClaims(ctx, user.UID, claims); err != nil {
		return "", err
	}

	log.Printf("Created %s account %s (uid=%s)", account.Role, account.Email, user.UID)
	return "created", nil
}

func seedSampleCollege(ctx context.Context, apiURL, token string) error {
	api := client.New(apiURL, token)

	college, err := api.CreateCollege(ctx, &models.CreateCollegeRequest{
		ID:           "osu",
		Name:         "Ohio State University",
		State:        "OH",
		ZipCode:      "43210",
		AcceptsExams: true,
	})
	if err != nil {
		if apiErr, ok := err.(*client.APIError); ok && apiErr.Status == 409 {
			log.Printf("Sample college already seeded")
			return nil
		}
		return err
	}

	minScore := 50
	credits := 6.0
	charge := int64(2500)
	_, err = api.CreateExam(ctx, college.ID, &models.CreateExamRequest{
		ExamName:              "Biology",
		MinScore:              &minScore,
		Credits:               &credits,
		TranscriptChargeCents: &charge,
	})
	if err != nil {
		return err
	}

	log.Printf("Seeded sample college %s with one exam", college.ID)
	return nil
}
