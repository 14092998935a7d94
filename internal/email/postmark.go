// Package email sends transactional notifications through Postmark's HTTP
// API.
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultAPIURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithAPIURL overrides the Postmark endpoint. Tests point it at a local
// server.
func WithAPIURL(url string) Option {
	return func(cl *Client) {
		cl.apiURL = url
	}
}

func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     baseURL,
		apiURL:      defaultAPIURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token is set.
func (c *Client) Configured() bool {
	return c.serverToken != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// SendAssignmentOffer tells a musician they have been placed in a slot.
func (c *Client) SendAssignmentOffer(toEmail, musicianName, roleName, eventName string, startsAt time.Time) error {
	when := startsAt.Format("Monday, January 2 at 3:04 PM")
	subject := fmt.Sprintf("You're scheduled: %s on %s", eventName, startsAt.Format("Jan 2"))
	link := fmt.Sprintf("%s/schedule", c.baseURL)

	textBody := fmt.Sprintf(
		"Hi %s,\n\nYou've been scheduled to play %s at %s on %s.\n\nPlease accept or decline here:\n%s\n",
		musicianName, roleName, eventName, when, link,
	)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p>You've been scheduled to play <strong>%s</strong> at <strong>%s</strong> on %s.</p><p><a href="%s">Accept or decline</a></p>`,
		musicianName, roleName, eventName, when, link,
	)
	return c.send(toEmail, subject, textBody, htmlBody)
}

// SendEventCancelled notifies a rostered musician that an event was called
// off.
func (c *Client) SendEventCancelled(toEmail, musicianName, eventName string, startsAt time.Time) error {
	when := startsAt.Format("Monday, January 2 at 3:04 PM")
	subject := fmt.Sprintf("Cancelled: %s on %s", eventName, startsAt.Format("Jan 2"))

	textBody := fmt.Sprintf(
		"Hi %s,\n\n%s on %s has been cancelled. You do not need to attend.\n",
		musicianName, eventName, when,
	)
	htmlBody := fmt.Sprintf(
		`<p>Hi %s,</p><p><strong>%s</strong> on %s has been cancelled. You do not need to attend.</p>`,
		musicianName, eventName, when,
	)
	return c.send(toEmail, subject, textBody, htmlBody)
}

func (c *Client) send(toEmail, subject, textBody, htmlBody string) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	payload := postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlBody,
		TextBody: textBody,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return nil
}
