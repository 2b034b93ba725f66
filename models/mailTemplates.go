package models

import (
	"fmt"
	"html"

	"github.com/mmdatafocus/hrcrm_backend/config"
)

func companyName() string {
	if s, err := config.LoadSettings(); err == nil && s.App.CompanyName != "" {
		return s.App.CompanyName
	}
	return "HR CRM"
}

func welcomeMail(firstName, email string) (string, string) {
	company := html.EscapeString(companyName())
	subject := fmt.Sprintf("Welcome to %s!", companyName())
	body := fmt.Sprintf(`<h3>Hi %s,</h3>
<p>Welcome to %s!</p>
<p>Your account has been successfully created. You can now login with your email: <strong>%s</strong></p>
<br>
<p>Best Regards,<br>%s Team</p>`,
		html.EscapeString(firstName), company, html.EscapeString(email), company)
	return subject, body
}

func jdMail(coordinatorName, collegeName string) string {
	company := html.EscapeString(companyName())
	name := coordinatorName
	if name == "" {
		name = "Sir/Madam"
	}
	return fmt.Sprintf(`<p>Dear %s,</p>
<p>Please find attached the job description for the internship opportunities at %s for the students of %s.</p>
<p>We look forward to receiving resumes of interested students.</p>
<br>
<p>Best Regards,<br>%s Team</p>`,
		html.EscapeString(name), company, html.EscapeString(collegeName), company)
}

func studentMail(studentName, interviewDate string) (string, string) {
	company := html.EscapeString(companyName())
	subject := fmt.Sprintf("Your application at %s", companyName())
	var schedule string
	if interviewDate != "" {
		schedule = fmt.Sprintf("<p>Your interview is scheduled on <strong>%s</strong>.</p>\n", html.EscapeString(interviewDate))
	}
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Thank you for your interest in %s. We have received your resume.</p>
%s<br>
<p>Best Regards,<br>%s Team</p>`,
		html.EscapeString(studentName), company, schedule, company)
	return subject, body
}
