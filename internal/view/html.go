package view

import (
	"bytes"
	"embed"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// HTML renders fragments with html/template. All user-supplied text is
// escaped.
type HTML struct {
	t *template.Template
}

func NewHTML() (*HTML, error) {
	funcs := template.FuncMap{
		"slot": func() template.HTML { return template.HTML(PostsSlot) },
		"body": func(s string) template.HTML { return template.HTML(s) },
	}
	t, err := template.New("feedline").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &HTML{t: t}, nil
}

func (h *HTML) exec(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := h.t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (h *HTML) AuthPrompt(mode AuthMode) (string, error) {
	return h.exec("auth", map[string]any{"Register": mode == RegisterMode})
}

func (h *HTML) HomeFeed() (string, error) {
	return h.exec("home", nil)
}

func (h *HTML) Profile(p ProfileData) (string, error) {
	return h.exec("profile", p)
}

func (h *HTML) Posts(posts []PostData) (string, error) {
	return h.exec("posts", posts)
}

func (h *HTML) Message(text string) (string, error) {
	return h.exec("message", text)
}

func (h *HTML) Document(d DocumentData) (string, error) {
	return h.exec("document", d)
}
