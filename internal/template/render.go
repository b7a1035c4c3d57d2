package template

import (
	"bytes"
	"encoding/json"
	texttemplate "text/template"

	"github.com/bulletops/bullet/internal/model"
	"github.com/bulletops/bullet/internal/telemetry"
)

// funcs are available inside every notification template. `je` escapes a
// value for embedding inside a JSON string literal, which card templates
// need because they are JSON documents with interpolated text.
var funcs = texttemplate.FuncMap{
	"je": jsonEscape,
}

func jsonEscape(v interface{}) string {
	if v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		s = string(b)
	}
	escaped, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(escaped[1 : len(escaped)-1])
}

// RenderString executes a template body against a context. An empty body or
// a failing render yields "" so a broken template degrades to a skipped
// message instead of an error mid-dispatch.
func RenderString(body string, ctx Context) string {
	if body == "" {
		return ""
	}
	tpl, err := texttemplate.New("notification").Funcs(funcs).Parse(body)
	if err != nil {
		telemetry.GetGlobalLogger().WithField("error", err.Error()).Error("Template parse error")
		return ""
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, ctx); err != nil {
		telemetry.GetGlobalLogger().WithField("error", err.Error()).Error("Template rendering error")
		return ""
	}
	return buf.String()
}

// RenderFeishuCard renders the card body and parses it as JSON. Returns nil
// when the body is empty or the rendered document is not valid JSON.
func RenderFeishuCard(tpl *model.NotificationTemplate, ctx Context) map[string]interface{} {
	rendered := RenderString(tpl.FeishuCard, ctx)
	if rendered == "" {
		return nil
	}
	var card map[string]interface{}
	if err := json.Unmarshal([]byte(rendered), &card); err != nil {
		telemetry.GetGlobalLogger().WithField("error", err.Error()).Error("Rendered card is not valid JSON")
		return nil
	}
	return card
}

// RenderEmail renders the subject and body. Either may be "".
func RenderEmail(tpl *model.NotificationTemplate, ctx Context) (subject, body string) {
	return RenderString(tpl.EmailSubject, ctx), RenderString(tpl.EmailBody, ctx)
}

// RenderSMS renders the short message body.
func RenderSMS(tpl *model.NotificationTemplate, ctx Context) string {
	return RenderString(tpl.SMSMessage, ctx)
}
