package codegen

const systemPrompt = `You are a senior full-stack engineer generating production code for a todo application.
You answer with a single JSON object and nothing else: no markdown, no commentary.
Every file path is relative to the project root and uses forward slashes.`

const componentPromptTemplate = `Generate a {{.Options.Framework}} component in {{.Options.Language}}.

COMPONENT: {{.ComponentName}}
SPECIFICATION:
{{.Spec}}

CONVENTIONS:
- Main file: {{.SourcePath}}
{{- if .IncludeTests}}
- Test file: {{.TestPath}} using {{.Options.TestFramework}} and Testing Library
{{- end}}
- Export the component as a named export and as default
- Props are typed{{if eq .Options.Language "typescript"}} with an exported interface{{end}}
{{if .ValidationErrors}}
{{.ValidationErrors}}
{{end}}
Respond with JSON in this schema:
{
  "files": [{"path": "string", "content": "string", "type": "component|style|types|hook"}],
  "tests": [{"path": "string", "content": "string", "type": "test"}]
}
{{- if not .IncludeTests}}
Leave "tests" empty.
{{- end}}`

const apiPromptTemplate = `Generate a {{.Options.Framework}} HTTP handler in {{.Options.Language}}.

ENDPOINT: {{.Method}} {{.Path}}
SPECIFICATION:
{{.Spec}}

CONVENTIONS:
- Handler file: {{.SourcePath}}
{{- if .IncludeTests}}
- Test file: {{.TestPath}} using {{.Options.TestFramework}}
{{- end}}
- Validate the request body and answer errors as {"success": false, "error": "..."} with 400, 404 or 500
- Answer success as {"success": true, "data": ...}
{{- if .RequiresAuth}}
- Reject unauthenticated requests with 401
{{- end}}
{{if .ValidationErrors}}
{{.ValidationErrors}}
{{end}}
Respond with JSON in this schema:
{
  "files": [{"path": "string", "content": "string", "type": "api|types"}],
  "tests": [{"path": "string", "content": "string", "type": "test"}]
}
{{- if not .IncludeTests}}
Leave "tests" empty.
{{- end}}`

const migrationPromptTemplate = `Write a {{.Options.SQLDialect}} schema migration.

CHANGE:
{{.Description}}

RULES:
- "up" applies the change and is safe to run once
- "down" reverts it exactly
- "id" is a short snake_case name for the change
{{if .ValidationErrors}}
{{.ValidationErrors}}
{{end}}
Respond with JSON in this schema:
{"id": "string", "up": "string", "down": "string"}`
