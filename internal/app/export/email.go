package export

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
)

// Email is a rendered notification.
type Email struct {
	Subject string
	HTML    string
}

var emailTemplate = template.Must(template.New("project-created").Parse(`<div style="font-family: sans-serif; line-height: 1.6;">
  <h2>新規プロジェクトが登録されました</h2>
  <p>以下の内容で新しいプロジェクトが登録されましたので、ご確認ください。</p>
  <table style="width: 100%; border-collapse: collapse; margin-top: 20px;">
{{- range .}}
    <tr><td style="padding: 8px; border: 1px solid #ddd; background-color: #f2f2f2;"><strong>{{.Label}}</strong></td><td style="padding: 8px; border: 1px solid #ddd;">{{.Value}}</td></tr>
{{- end}}
  </table>
  <p style="margin-top: 20px; font-size: 12px; color: #777;">これはPJ管理システムからの自動通知メールです。</p>
</div>`))

// ProjectCreatedEmail renders the new-project notification. Fields with no
// value get no row.
func ProjectCreatedEmail(p project.Project) (Email, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, Populated(p)); err != nil {
		return Email{}, fmt.Errorf("render email: %w", err)
	}
	site := p.SiteName
	if site == "" {
		site = "現場名未設定"
	}
	return Email{
		Subject: fmt.Sprintf("【新規プロジェクト登録通知】%s / %s", p.Number, site),
		HTML:    buf.String(),
	}, nil
}
