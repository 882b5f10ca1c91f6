package email

import (
	"fmt"
	"html/template"
	"log"
	"strings"
	"sync"
	"time"
)

// SheetAlert describes a submission for an activity whose ledger tab is
// missing.
type SheetAlert struct {
	Activity    string
	PersonName  string
	SessionDate string
	At          time.Time
}

// Alerter mails operators when the catalog and the ledger disagree. At most
// one alert per activity is sent within the quiet period.
type Alerter struct {
	svc        *Service
	recipients []string
	quiet      time.Duration
	now        func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewAlerter(svc *Service, recipients []string, quiet time.Duration) *Alerter {
	if quiet <= 0 {
		quiet = time.Hour
	}
	return &Alerter{
		svc:        svc,
		recipients: recipients,
		quiet:      quiet,
		now:        time.Now,
		last:       make(map[string]time.Time),
	}
}

func (a *Alerter) Enabled() bool {
	return a != nil && a.svc != nil && a.svc.IsConfigured() && len(a.recipients) > 0
}

// SheetMissing sends the alert unless one for the same activity went out
// recently. It reports whether a mail was sent.
func (a *Alerter) SheetMissing(alert SheetAlert) (bool, error) {
	if !a.Enabled() {
		return false, nil
	}
	if alert.At.IsZero() {
		alert.At = a.now()
	}

	a.mu.Lock()
	if prev, ok := a.last[alert.Activity]; ok && alert.At.Sub(prev) < a.quiet {
		a.mu.Unlock()
		return false, nil
	}
	a.last[alert.Activity] = alert.At
	a.mu.Unlock()

	html, err := renderTemplate(sheetMissingTemplate, alert)
	if err != nil {
		return false, fmt.Errorf("render sheet alert: %w", err)
	}
	subject := fmt.Sprintf("[출석부] '%s' 시트를 찾을 수 없습니다", alert.Activity)
	text := fmt.Sprintf("Activity %q is offered to members but has no ledger tab. Submission from %s for %s was rejected at %s.",
		alert.Activity, alert.PersonName, alert.SessionDate, alert.At.Format(time.RFC3339))
	if err := a.svc.SendHTMLEmail(a.recipients, subject, text, html); err != nil {
		a.mu.Lock()
		delete(a.last, alert.Activity)
		a.mu.Unlock()
		return false, fmt.Errorf("send sheet alert: %w", err)
	}
	log.Printf("email: sheet alert sent for %q to %s", alert.Activity, strings.Join(a.recipients, ","))
	return true, nil
}

var sheetMissingTemplate = template.Must(template.New("sheet-missing").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Missing ledger tab</title>
</head>
<body>
    <h2>Ledger tab missing: {{.Activity}}</h2>
    <p>A submission was rejected because the ledger has no tab named <strong>{{.Activity}}</strong>.</p>
    <ul>
        <li>Member: {{.PersonName}}</li>
        <li>Session date: {{.SessionDate}}</li>
        <li>Time: {{.At.Format "2006-01-02 15:04:05 MST"}}</li>
    </ul>
    <p>Add the tab or remove the activity from the CONFIG list.</p>
</body>
</html>`))
