package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var cheatSheetTemplate = template.Must(template.New("cheatsheet.html").Funcs(template.FuncMap{
	"join": strings.Join,
	"formatDate": func(t time.Time, layout string) string {
		return t.Format(layout)
	},
}).ParseFS(templateFS, "templates/cheatsheet.html"))

// TemplateData holds data for cheat sheet rendering
type TemplateData struct {
	Title       string
	Author      string
	GeneratedAt time.Time
	ItemCount   int
	Sections    []TemplateSection
}

// TemplateSection is one category, or the favorites group.
type TemplateSection struct {
	Name  string
	Icon  string
	Items []TemplateItem
}

type TemplateItem struct {
	Label     string
	Kind      string
	Favorite  bool
	Body      string
	BodyHTML  template.HTML
	Steps     []string
	Variables []string
}

// RenderCheatSheetHTML renders the cheat sheet template with provided data
func RenderCheatSheetHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := cheatSheetTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
