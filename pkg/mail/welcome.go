package mail

import (
	"bytes"
	"fmt"
	"text/template"
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`Hello {{.Name}},

Your account "{{.Username}}" has been created.
{{if .AppName}}
Thanks for joining {{.AppName}}.
{{end}}`))

// WelcomeData feeds the registration welcome email.
type WelcomeData struct {
	AppName  string
	Name     string
	Username string
	Email    string
}

// WelcomeMessage renders the message sent after a successful registration.
func WelcomeMessage(data WelcomeData) (Message, error) {
	if data.Name == "" {
		data.Name = data.Username
	}

	var body bytes.Buffer
	if err := welcomeTemplate.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render welcome email: %w", err)
	}

	subject := "Welcome"
	if data.AppName != "" {
		subject = "Welcome to " + data.AppName
	}
	return Message{
		To:      []string{data.Email},
		Subject: subject,
		Body:    body.String(),
	}, nil
}
