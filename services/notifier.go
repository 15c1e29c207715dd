package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendEmailRequest represents the request payload for Resend API
type ResendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Html    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// ResendEmailResponse represents the response from Resend API
type ResendEmailResponse struct {
	ID string `json:"id"`
}

// ResendErrorResponse represents an error response from Resend API
type ResendErrorResponse struct {
	Message string `json:"message"`
}

// ResendNotifier emails the "new report submitted" notification to the event
// instructor and the configured webmasters via the Resend API.
type ResendNotifier struct {
	apiKey    string
	fromEmail string
	client    *http.Client
	logger    zerolog.Logger
}

func NewResendNotifier(apiKey, fromEmail string) *ResendNotifier {
	return &ResendNotifier{
		apiKey:    apiKey,
		fromEmail: fromEmail,
		client:    &http.Client{},
		logger:    log.With().Str("service", "notifier").Logger(),
	}
}

func (n *ResendNotifier) NotifyNewSubmission(ctx context.Context, sub NewSubmission) error {
	if n.apiKey == "" {
		return fmt.Errorf("RESEND_API_KEY is not configured")
	}
	if n.fromEmail == "" {
		return fmt.Errorf("RESEND_FROM_EMAIL is not configured")
	}

	recipients := make([]string, 0, len(sub.WebmasterEmails)+1)
	if sub.InstructorEmail != "" {
		recipients = append(recipients, sub.InstructorEmail)
	}
	recipients = append(recipients, sub.WebmasterEmails...)
	if len(recipients) == 0 {
		n.logger.Warn().
			Str("reportId", sub.ReportID.String()).
			Msg("no recipients for new-submission notification, skipping")
		return nil
	}

	payload := ResendEmailRequest{
		From:    n.fromEmail,
		To:      recipients,
		Subject: fmt.Sprintf("New tour report submitted: %s", sub.ReportTitle),
		Text:    submissionBody(sub),
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal notification payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewBuffer(jsonPayload))
	if err != nil {
		return fmt.Errorf("failed to create Resend API request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request to Resend API: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Resend API response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ResendErrorResponse
		if err := json.Unmarshal(bodyBytes, &errorResp); err == nil {
			return fmt.Errorf("resend API error (status %d): %s", resp.StatusCode, errorResp.Message)
		}
		return fmt.Errorf("resend API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var emailResponse ResendEmailResponse
	if err := json.Unmarshal(bodyBytes, &emailResponse); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to parse Resend email response, but email was sent")
	} else {
		n.logger.Info().
			Str("emailId", emailResponse.ID).
			Str("reportId", sub.ReportID.String()).
			Msg("Successfully dispatched new-submission notification")
	}

	return nil
}

func submissionBody(sub NewSubmission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s has submitted a tour report for review.\n\n", sub.AuthorName)
	fmt.Fprintf(&b, "Event: %s (%s)\n", sub.EventTitle, sub.EventID)
	fmt.Fprintf(&b, "Title: %s\n", sub.ReportTitle)
	if sub.InstructorName != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", sub.InstructorName)
	}
	if sub.PreviewLink != "" {
		fmt.Fprintf(&b, "\nPreview: %s\n", sub.PreviewLink)
	}
	if sub.ReportText != "" {
		fmt.Fprintf(&b, "\n%s\n", sub.ReportText)
	}
	return b.String()
}
