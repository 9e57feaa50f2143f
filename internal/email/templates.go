package email

import (
	"bytes"
	"fmt"
	htmltpl "html/template"
	texttpl "text/template"

	"github.com/dropDatabas3/trustedlogin/internal/events"
)

// Vars son las variables comunes a todas las plantillas.
type Vars struct {
	Vendor  string
	SiteURL string
	Action  string
	Trigger string
	UserIP  string
	When    string
	Until   string
}

type template struct {
	subject *texttpl.Template
	html    *htmltpl.Template
	text    *texttpl.Template
}

const layoutHTML = `<!doctype html><html><body style="font-family:sans-serif">{{template "body" .}}<p style="color:#888;font-size:12px">{{.SiteURL}}</p></body></html>`

func mustTemplate(name, subject, html, text string) template {
	h := htmltpl.Must(htmltpl.New(name).Parse(layoutHTML))
	htmltpl.Must(h.New("body").Parse(html))
	return template{
		subject: texttpl.Must(texttpl.New(name + "_subject").Parse(subject)),
		html:    h,
		text:    texttpl.Must(texttpl.New(name).Parse(text)),
	}
}

// templates por sufijo de evento.
var templates = map[string]template{
	events.AccessCreated: mustTemplate("access_created",
		"[{{.Vendor}}] Support access granted",
		`<p>{{.Vendor}} support was granted access to <a href="{{.SiteURL}}">{{.SiteURL}}</a> at {{.When}}.</p>`,
		"{{.Vendor}} support was granted access to {{.SiteURL}} at {{.When}}.\n",
	),
	events.AccessRevoked: mustTemplate("access_revoked",
		"[{{.Vendor}}] Support access revoked",
		`<p>{{.Vendor}} support access to <a href="{{.SiteURL}}">{{.SiteURL}}</a> was revoked at {{.When}}{{if .Trigger}} ({{.Trigger}}){{end}}.</p>`,
		"{{.Vendor}} support access to {{.SiteURL}} was revoked at {{.When}}{{if .Trigger}} ({{.Trigger}}){{end}}.\n",
	),
	events.LockdownAfter: mustTemplate("lockdown",
		"[{{.Vendor}}] Support access locked down",
		`<p>Too many invalid support logins on <a href="{{.SiteURL}}">{{.SiteURL}}</a>{{if .UserIP}} from {{.UserIP}}{{end}}. Support logins are disabled until {{.Until}}.</p>`,
		"Too many invalid support logins on {{.SiteURL}}{{if .UserIP}} from {{.UserIP}}{{end}}. Support logins are disabled until {{.Until}}.\n",
	),
}

// render arma el Message para el sufijo dado. ok=false si el evento no notifica.
func render(suffix string, v Vars) (m Message, ok bool, err error) {
	t, ok := templates[suffix]
	if !ok {
		return Message{}, false, nil
	}
	var subj, html, text bytes.Buffer
	if err := t.subject.Execute(&subj, v); err != nil {
		return Message{}, true, fmt.Errorf("render subject: %w", err)
	}
	if err := t.html.Execute(&html, v); err != nil {
		return Message{}, true, fmt.Errorf("render html: %w", err)
	}
	if err := t.text.Execute(&text, v); err != nil {
		return Message{}, true, fmt.Errorf("render text: %w", err)
	}
	return Message{Subject: subj.String(), HTML: html.String(), Text: text.String()}, true, nil
}
