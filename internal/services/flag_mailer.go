package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/clepfinder/backend/internal/models"
)

// FlagMailer notifies the review inbox when a learner flags an exam record.
// Delivery goes through the SendGrid v3 REST API. Notification is best
// effort; flag submission never fails because mail did not send.
type FlagMailer struct {
	APIKey     string
	FromEmail  string
	ToEmail    string
	HTTPClient *http.Client
	Endpoint   string
}

func NewFlagMailer(apiKey string, fromEmail string, toEmail string) *FlagMailer {
	return &FlagMailer{
		APIKey:    strings.TrimSpace(apiKey),
		FromEmail: strings.TrimSpace(fromEmail),
		ToEmail:   strings.TrimSpace(toEmail),
		Endpoint:  "https://api.sendgrid.com/v3/mail/send",
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Configured reports whether the mailer has everything it needs to send.
func (m *FlagMailer) Configured() bool {
	return m != nil && m.APIKey != "" && m.FromEmail != "" && m.ToEmail != ""
}

type mailEmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type mailContent struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type mailPersonalization struct {
	To         []mailEmailAddress `json:"to"`
	Subject    string             `json:"subject"`
	CustomArgs map[string]string  `json:"custom_args,omitempty"`
}

type mailSendRequest struct {
	Personalizations []mailPersonalization `json:"personalizations"`
	From             mailEmailAddress      `json:"from"`
	Content          []mailContent         `json:"content"`
}

// SendFlagNotification emails the review inbox about a newly submitted flag.
func (m *FlagMailer) SendFlagNotification(ctx context.Context, flag models.Flag, flaggedTotal int) error {
	if !m.Configured() {
		return fmt.Errorf("flag mailer not configured")
	}

	subject := fmt.Sprintf("Exam flagged: %s/%s", flag.CollegeID, flag.ExamID)
	plain := fmt.Sprintf(
		"College: %s\nExam: %s\nReason: %s\nContact: %s\nTotal open flags on this exam: %d\nSubmitted: %s\n",
		flag.CollegeID,
		flag.ExamID,
		flag.Reason,
		flag.Contact,
		flaggedTotal,
		flag.CreatedAt.Format(time.RFC3339),
	)

	reqBody := mailSendRequest{
		Personalizations: []mailPersonalization{
			{
				To:      []mailEmailAddress{{Email: m.ToEmail}},
				Subject: subject,
				CustomArgs: map[string]string{
					"flag_id": flag.ID,
				},
			},
		},
		From: mailEmailAddress{
			Email: m.FromEmail,
			Name:  "CLEP Finder Flag Review",
		},
		Content: []mailContent{
			{Type: "text/plain", Value: plain},
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.APIKey)
	req.Header.Set("Content-Type", "application/json")

	client := m.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// SendGrid returns 202 Accepted on success.
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("flag mail send http %d", resp.StatusCode)
	}
	return nil
}
