package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/gymops/internal/clock"
	"github.com/dukerupert/gymops/internal/model"
)

const postmarkURL = "https://api.postmarkapp.com/email"

type Client struct {
	serverToken string
	fromEmail   string
	baseURL     string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// NewClient returns a Postmark client. baseURL is the dashboard address
// linked from emails.
func NewClient(serverToken, fromEmail, baseURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		baseURL:     strings.TrimRight(baseURL, "/"),
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

// DigestItem is one line of the daily maintenance digest.
type DigestItem struct {
	Equipment   string
	Type        model.MaintenanceType
	DueDate     time.Time
	DaysOverdue int
	Priority    model.Priority
}

type Digest struct {
	Date     time.Time
	Overdue  []DigestItem
	DueToday []DigestItem
}

// Empty reports whether there is nothing to send.
func (d Digest) Empty() bool {
	return len(d.Overdue) == 0 && len(d.DueToday) == 0
}

// BuildDigest turns overdue and due-today schedules into a digest.
func BuildDigest(today time.Time, overdue, dueToday []model.DueSchedule) Digest {
	d := Digest{Date: today}
	for _, s := range overdue {
		d.Overdue = append(d.Overdue, DigestItem{
			Equipment:   s.EquipmentName,
			Type:        s.MaintenanceType,
			DueDate:     s.NextDueDate,
			DaysOverdue: clock.DaysBetween(s.NextDueDate, today),
			Priority:    s.EquipmentPriority,
		})
	}
	for _, s := range dueToday {
		d.DueToday = append(d.DueToday, DigestItem{
			Equipment: s.EquipmentName,
			Type:      s.MaintenanceType,
			DueDate:   s.NextDueDate,
			Priority:  s.EquipmentPriority,
		})
	}
	return d
}

// SendMaintenanceDigest emails the daily overdue and due-today list.
func (c *Client) SendMaintenanceDigest(toEmail string, d Digest) error {
	if !c.Configured() {
		return fmt.Errorf("email client not configured: missing server token")
	}

	subject := fmt.Sprintf("Maintenance digest %s: %d overdue, %d due today",
		clock.Format(d.Date), len(d.Overdue), len(d.DueToday))

	var text, body strings.Builder
	writeSection := func(title string, items []DigestItem, overdue bool) {
		if len(items) == 0 {
			return
		}
		fmt.Fprintf(&text, "%s:\n", title)
		fmt.Fprintf(&body, "<h3>%s</h3><ul>", html.EscapeString(title))
		for _, it := range items {
			line := fmt.Sprintf("%s: %s (%s priority)", it.Equipment, it.Type, it.Priority)
			if overdue {
				line += fmt.Sprintf(", due %s, %d days overdue", clock.Format(it.DueDate), it.DaysOverdue)
			}
			fmt.Fprintf(&text, "- %s\n", line)
			fmt.Fprintf(&body, "<li>%s</li>", html.EscapeString(line))
		}
		text.WriteString("\n")
		body.WriteString("</ul>")
	}
	writeSection("Overdue", d.Overdue, true)
	writeSection("Due today", d.DueToday, false)

	if c.baseURL != "" {
		fmt.Fprintf(&text, "Open the dashboard: %s\n", c.baseURL)
		fmt.Fprintf(&body, `<p><a href="%s">Open the dashboard</a></p>`, html.EscapeString(c.baseURL))
	}

	return c.send(postmarkEmail{
		From:     c.fromEmail,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: body.String(),
		TextBody: text.String(),
	})
}

func (c *Client) send(payload postmarkEmail) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequest("POST", postmarkURL, bytes.NewReader(body))
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
