package model

import (
	"time"

	"github.com/google/uuid"
)

// NotificationTemplate holds per-channel message bodies in Go text/template
// syntax. Templates receive the context documented in the template package;
// the `je` function escapes a value for embedding inside a JSON string.
type NotificationTemplate struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`

	// IsBuiltin templates are managed at startup and cannot be deleted.
	IsBuiltin bool `json:"is_builtin" db:"is_builtin"`

	FeishuCard   string `json:"feishu_card" db:"feishu_card"`
	EmailSubject string `json:"email_subject" db:"email_subject"`
	EmailBody    string `json:"email_body" db:"email_body"`
	SMSMessage   string `json:"sms_message" db:"sms_message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultTemplateName is the name of the built-in fallback template used
// when a project has no template configured.
const DefaultTemplateName = "default"

const defaultFeishuCard = `{
  "schema": "2.0",
  "config": {"update_multi": true},
  "header": {
    "title": {
      "tag": "plain_text",
      "content": "[{{if .IsAckNotification}}已确认{{else if .IsEscalated}}已升级{{else if .IsRepeated}}第{{.NotificationCount}}次{{else}}待处理{{end}}] {{je (or .Ticket.Title "新通知")}}"
    },
    "subtitle": {
      "tag": "plain_text",
      "content": "{{if and .IsAckNotification .AcknowledgedByName}}确认人: {{je .AcknowledgedByName}}{{else}}来源: {{je .Source}}{{end}}"
    },
    "template": "{{if .IsAckNotification}}green{{else if .IsEscalated}}orange{{else if eq .Ticket.Severity "critical"}}carmine{{else if eq .Ticket.Severity "warning"}}yellow{{else if eq .Ticket.Severity "info"}}blue{{else}}red{{end}}",
    "icon": {
      "tag": "standard_icon",
      "token": "{{if .IsAckNotification}}done_filled{{else if eq .Ticket.Severity "critical"}}warning-hollow_filled{{else if eq .Ticket.Severity "warning"}}info-circle_filled{{else}}bell_filled{{end}}"
    },
    "padding": "12px 12px 12px 12px"
  },
  "body": {
    "direction": "vertical",
    "padding": "12px 12px 12px 12px",
    "elements": [
      {
        "tag": "markdown",
        "content": "{{if .IsAckNotification}}<font color='grey'>确认人</font>\n**{{je (or .AcknowledgedByName "未知")}}**{{else}}<font color='grey'>通知内容</font>\n{{je (or .Ticket.Description "无描述")}}{{end}}",
        "text_align": "left"
      },
      {
        "tag": "markdown",
        "content": "<font color='grey'>级别</font> {{je (or .Ticket.Severity "info")}}  <font color='grey'>通知状态</font> 第 {{.NotificationCount}} 次{{if .IsEscalated}} · 已升级至 L{{.Ticket.EscalationLevel}}{{end}}{{if .IsRepeated}} · 重复通知{{end}}"
      },
      {"tag": "hr"},
      {
        "tag": "column_set",
        "horizontal_spacing": "8px",
        "horizontal_align": "left",
        "columns": [
          {{if not .IsAckNotification}}{
            "tag": "column",
            "width": "auto",
            "elements": [{
              "tag": "button",
              "text": {"tag": "plain_text", "content": "确认"},
              "type": "primary",
              "url": "{{.AckURL}}"
            }]
          },{{end}}
          {
            "tag": "column",
            "width": "auto",
            "elements": [{
              "tag": "button",
              "text": {"tag": "plain_text", "content": "查看详情"},
              "type": "default",
              "url": "{{.DetailURL}}"
            }]
          }
        ]
      },
      {
        "tag": "markdown",
        "content": "<font color='grey'>工单ID: {{.Ticket.ID}}</font>",
        "text_size": "notation"
      }
    ]
  }
}`

const defaultEmailSubject = `[{{.Source}}]{{if .NotificationLabel}} [{{.NotificationLabel}}]{{end}} {{or .Ticket.Title "新通知"}}`

const defaultEmailBody = `<h2>{{or .Ticket.Title "新通知"}}</h2>
{{if .NotificationLabel}}<p><strong>{{.NotificationLabel}}</strong></p>{{end}}
{{if and .IsAckNotification .AcknowledgedByName}}<p><strong>确认人:</strong> {{.AcknowledgedByName}}</p>{{end}}
<p>{{or .Ticket.Description "无描述"}}</p>
<hr>
<p><strong>来源:</strong> {{.Source}}</p>
<p><strong>级别:</strong> {{or .Ticket.Severity "unknown"}}</p>
<p><strong>工单ID:</strong> {{.Ticket.ID}}</p>
{{if not .IsAckNotification}}<p><strong>通知次数:</strong> {{.NotificationCount}}</p>{{end}}
<p>
  {{if not .IsAckNotification}}<a href="{{.AckURL}}">确认</a> | {{end}}
  <a href="{{.DetailURL}}">查看详情</a>
</p>`

const defaultSMSMessage = `[{{.Source}}]{{if .NotificationLabel}}[{{.NotificationLabel}}]{{end}} {{or .Ticket.Title "新通知"}}`

// BuiltinTemplates are seeded at startup and refreshed on every boot so code
// upgrades propagate into existing deployments.
func BuiltinTemplates() []NotificationTemplate {
	return []NotificationTemplate{
		{
			Name:         DefaultTemplateName,
			Description:  "默认通知模板",
			IsBuiltin:    true,
			FeishuCard:   defaultFeishuCard,
			EmailSubject: defaultEmailSubject,
			EmailBody:    defaultEmailBody,
			SMSMessage:   defaultSMSMessage,
		},
	}
}
