package strategy

import (
	"bytes"
	"strings"
	"text/template"

	"routine/internal/domain"
)

const systemPrompt = `You are a professional {{.Industry}} advisor. You write short, practical instructions for one step of a customer's routine. Only mention the products you are given.`

const stepPrompt = `Customer profile:
{{- if .Profile.PrimaryAttribute}}
- {{.AttributeLabel}}: {{.Profile.PrimaryAttribute}}
{{- end}}
{{- if .Profile.Concerns}}
- Concerns: {{join .Profile.Concerns}}
{{- end}}
{{- if .Profile.Services}}
- Recent services: {{join .Profile.Services}}
{{- end}}
{{- if .Profile.CurrentRoutine}}
- Current routine: {{join .Profile.CurrentRoutine}}
{{- end}}
{{- if .Profile.UsagePatterns}}
- Usage patterns: {{join .Profile.UsagePatterns}}
{{- end}}
{{- if .Profile.Restrictions}}
- Avoid: {{join .Profile.Restrictions}}
{{- end}}
{{- range $k, $v := .Profile.CustomAttributes}}
- {{$k}}: {{$v}}
{{- end}}
{{- if .Profile.AdditionalInfo}}
- Notes: {{.Profile.AdditionalInfo}}
{{- end}}

Routine step: {{.Step}}
Recommended products:
{{- range .Products}}
- {{.Title}}{{if .Category}} ({{.Category}}){{end}}
{{- end}}

In 2-3 sentences, explain how this customer should complete the "{{.Step}}" step with these products.`

var (
	funcs = template.FuncMap{
		"join": func(items []string) string { return strings.Join(items, ", ") },
	}
	systemTmpl = template.Must(template.New("system").Parse(systemPrompt))
	stepTmpl   = template.Must(template.New("step").Funcs(funcs).Parse(stepPrompt))
)

type promptData struct {
	Industry       string
	AttributeLabel string
	Step           string
	Profile        domain.CustomerProfile
	Products       []domain.Product
}

// buildPrompt renders the system and user messages for one routine step.
func buildPrompt(data promptData) []domain.Message {
	var system, user bytes.Buffer
	if err := systemTmpl.Execute(&system, data); err != nil {
		system.Reset()
		system.WriteString("You are a professional advisor.")
	}
	if err := stepTmpl.Execute(&user, data); err != nil {
		user.Reset()
		user.WriteString("Describe the " + data.Step + " step of the customer's routine.")
	}
	return []domain.Message{
		{Role: "system", Content: system.String()},
		{Role: "user", Content: user.String()},
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
