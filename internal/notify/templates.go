package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"

	"github.com/gosuda/orkestra/internal/domain"
)

// audience selects the wording of a message for one recipient.
type audience int

const (
	audienceSubject audience = iota // the user the alert is about
	audienceAdmin
	audienceManager
	audienceLeader
	audienceAssignee
)

func (a audience) String() string {
	switch a {
	case audienceSubject:
		return "subject"
	case audienceAdmin:
		return "admin"
	case audienceManager:
		return "manager"
	case audienceLeader:
		return "leader"
	case audienceAssignee:
		return "assignee"
	default:
		return "unknown"
	}
}

const (
	deadlineLayout = "02/01/2006"
	eventLayout    = "2006-01-02 15:04 MST"
)

var (
	markdown = goldmark.New() //nolint:gochecknoglobals // stateless renderer

	layout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;font-family:Arial,sans-serif;background-color:#f4f4f4;">
<div style="max-width:600px;margin:20px auto;border:1px solid #e0e0e0;border-radius:8px;overflow:hidden;background-color:#ffffff;">
<div style="background-color:#9074f4;color:#ffffff;padding:20px;text-align:center;">
<h1 style="margin:0;font-size:24px;line-height:1.2;">{{.Banner}}</h1>
</div>
<div style="padding:25px;color:#555555;font-size:16px;line-height:1.6;">
<h2 style="color:#333333;font-size:20px;margin:0 0 20px 0;">{{.Heading}}</h2>
{{.Body}}
</div>
<div style="background-color:#f8f9fa;padding:15px;text-align:center;font-size:12px;color:#777777;">
<p style="margin:0;">Orkestra project management</p>
</div>
</div>
</body>
</html>
`)) //nolint:gochecknoglobals // parsed once
)

// newMessage renders text, written in Markdown, into the HTML layout.
func newMessage(banner, subject, heading, text, sms string) Message {
	return Message{
		Subject: subject,
		Text:    text,
		HTML:    renderHTML(banner, subject, heading, text),
		SMS:     sms,
	}
}

func renderHTML(banner, subject, heading, text string) string {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(text), &body); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("notify: markdown render failed")
		body.Reset()
		body.WriteString("<pre>" + template.HTMLEscapeString(text) + "</pre>")
	}

	var out bytes.Buffer
	err := layout.Execute(&out, struct {
		Banner, Subject, Heading string
		Body                     template.HTML
	}{
		Banner:  banner,
		Subject: subject,
		Heading: heading,
		Body:    template.HTML(body.String()), //nolint:gosec // goldmark output with raw HTML disabled
	})
	if err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("notify: html layout failed")
		return ""
	}
	return out.String()
}

// --- anomalies ---

func anomalyMessage(a domain.AnomalyRecord, project *domain.Project, to *domain.User, aud audience) Message {
	who := a.Subject
	var b strings.Builder

	switch {
	case aud == audienceSubject && a.Metric == domain.MetricTaskUpdateCount:
		fmt.Fprintf(&b, "Dear %s,\n\n", to.FullName())
		fmt.Fprintf(&b, "You have made a lot of updates (%d) to tasks in project %q within the last hour.\n\n", a.Count, projectName(project))
		writeAnomalyFacts(&b, a, project)
		b.WriteString("**Recommended action**: please ensure your updates are necessary and authorized. " +
			"Contact your Project Manager or Team Leader if needed.\n")
		return newMessage("Orkestra Activity Warning",
			"Warning: Excessive Task Updates Detected", "Excessive task updates", b.String(),
			fmt.Sprintf("Orkestra: %d task updates in the last hour on %q. Please check your activity.", a.Count, projectName(project)))

	case aud == audienceSubject:
		fmt.Fprintf(&b, "Dear %s (%s),\n\n", to.FullName(), to.Role)
		fmt.Fprintf(&b, "You have performed an abnormal number of actions (%d) in the last hour.\n\n", a.Count)
		writeAnomalyFacts(&b, a, project)
		b.WriteString("**Recommended action**: please review your activity to ensure it is necessary and authorized.\n")
		return newMessage("Orkestra Anomaly Alert",
			"Anomaly Alert - Excessive Activity Detected", "Excessive activity", b.String(),
			fmt.Sprintf("Orkestra: %d actions in the last hour on your account. Please review your activity.", a.Count))
	}

	kind := "Excessive Activity"
	if a.Metric == domain.MetricTaskUpdateCount {
		kind = "Excessive Task Updates"
	}

	fmt.Fprintf(&b, "Dear %s (%s),\n\n", to.FullName(), to.Role)
	fmt.Fprintf(&b, "A %s has performed an abnormal number of actions in the last hour.\n\n", a.Role)
	writeAnomalyFacts(&b, a, project)
	fmt.Fprintf(&b, "**Recommended action**: please review the activity to ensure it is authorized. Contact the %s if necessary.\n", a.Role)

	return newMessage("Orkestra Anomaly Alert",
		fmt.Sprintf("Anomaly Alert - %s by %s", kind, a.Role), kind, b.String(),
		fmt.Sprintf("Orkestra: %s by %s (%s), %d in the last hour. Review required.", strings.ToLower(kind), who.FullName(), a.Role, a.Count))
}

func writeAnomalyFacts(b *strings.Builder, a domain.AnomalyRecord, project *domain.Project) {
	fmt.Fprintf(b, "- **User**: %s (%s)\n", a.Subject.FullName(), a.Role)
	if project != nil {
		fmt.Fprintf(b, "- **Project**: %s\n", project.Name)
	}
	fmt.Fprintf(b, "- **Number of actions**: %d between %s and %s\n\n",
		a.Count, a.WindowStart.UTC().Format(eventLayout), a.WindowEnd.UTC().Format(eventLayout))

	if len(a.Events) == 0 {
		return
	}
	b.WriteString("**Recent logs**:\n\n")
	for _, e := range a.Events {
		fmt.Fprintf(b, "- %s at %s\n", e.Message, e.CreatedAt.UTC().Format(eventLayout))
	}
	b.WriteString("\n")
}

func projectName(p *domain.Project) string {
	if p == nil {
		return "Unknown"
	}
	return p.Name
}

// --- delays ---

func delayMessage(alert DelayAlert, managerName, assigneeNames string, to *domain.User, aud audience) Message {
	days := alert.Prediction.DelayDays

	if alert.Task == nil {
		p := alert.Project
		deadline := formatDeadline(p.EndDate)
		subject := "Project Alert: " + p.Name
		heading := "Project: " + p.Name

		var text, sms string
		switch aud {
		case audienceManager:
			text = fmt.Sprintf("Important alert for project **%s**:\n\n- **Delay**: %d days\n- **Deadline**: %s\n\n"+
				"As the project manager, please adjust the schedule promptly and coordinate with your team to minimize "+
				"impact on deliverables. If needed, consider allocating more resources to speed up progress.\n",
				p.Name, days, deadline)
			sms = fmt.Sprintf("Urgent: Project '%s' delayed by %d days! Adjust the schedule now.", p.Name, days)
		default:
			text = fmt.Sprintf("Delay alert for project **%s**:\n\n- **Delay**: %d days\n- **Deadline**: %s\n- **Manager**: %s\n\n"+
				"Please supervise the progress and coordinate with the team.\n",
				p.Name, days, deadline, managerName)
			sms = fmt.Sprintf("Delay: Project '%s' - %d days. Supervise.", p.Name, days)
		}
		return newMessage("Orkestra Delay Notification", subject, heading, greet(to)+text, sms)
	}

	t := alert.Task
	project := projectName(alert.Project)
	deadline := formatDeadline(t.DueDate)
	subject := "Task Alert: " + t.Title
	heading := "Task: " + t.Title

	var text, sms string
	switch aud {
	case audienceAssignee:
		text = fmt.Sprintf("Urgent alert for task **%s**:\n\n- **Project**: %s\n- **Delay**: %d days\n- **Deadline**: %s\n\n"+
			"You are assigned to this task. Please update its status immediately and inform your project manager of any obstacles.\n",
			t.Title, project, days, deadline)
		sms = fmt.Sprintf("Urgent: Task '%s' (%s) delayed by %d days. Update now!", t.Title, project, days)
	case audienceManager:
		text = fmt.Sprintf("Delay alert for task **%s**:\n\n- **Project**: %s\n- **Delay**: %d days\n- **Deadline**: %s\n\n"+
			"As the project manager, please closely monitor this task's progress with your team so that later stages are not affected.\n",
			t.Title, project, days, deadline)
		sms = fmt.Sprintf("Alert: Task '%s' (%s) delayed by %d days.", t.Title, project, days)
	default:
		text = fmt.Sprintf("Delay alert for task **%s**:\n\n- **Project**: %s\n- **Delay**: %d days\n- **Deadline**: %s\n- **Assigned**: %s\n\n"+
			"Please supervise the progress of this task.\n",
			t.Title, project, days, deadline, assigneeNames)
		sms = fmt.Sprintf("Delay: Task '%s' (%s) - %d days. Supervise.", t.Title, project, days)
	}
	return newMessage("Orkestra Delay Notification", subject, heading, greet(to)+text, sms)
}

func formatDeadline(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.UTC().Format(deadlineLayout)
}

func greet(u *domain.User) string {
	return fmt.Sprintf("Dear %s,\n\n", u.FullName())
}

// --- role assignment ---

func roleAssignmentMessage(u *domain.User, role domain.Role) Message {
	text := fmt.Sprintf("%sYour role in Orkestra is now **%s**.\n\n"+
		"Your permissions have been updated accordingly. Contact an administrator if you did not expect this change.\n",
		greet(u), role)
	return newMessage("Orkestra Account Update",
		"Your role has been updated", "New role: "+string(role), text,
		fmt.Sprintf("Orkestra: your role is now %s.", role))
}
