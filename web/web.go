package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/url"
	"path"
	"time"

	"yatube/internal/utils"

	"github.com/gin-contrib/multitemplate"
	"github.com/mdobak/go-xerrors"
)

//go:embed templates
var templatesFS embed.FS

// Views lists every page the handlers render, keyed by the name passed to Render.
var Views = []string{
	"index.html",
	"group.html",
	"profile.html",
	"post.html",
	"new_post.html",
	"follow.html",
	"auth/login.html",
	"auth/signup.html",
	"misc/404.html",
	"misc/500.html",
}

var months = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// FuncMap holds the helpers shared by all templates.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"add": func(a, b int) int {
			return a + b
		},
		"markdown": utils.RenderMarkdown,
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return fmt.Sprintf("%d %s %d г.", t.Day(), months[t.Month()-1], t.Year())
		},
		"daysSince": utils.DaysSince,
		"media": func(name string) string {
			return "/media/" + path.Clean(name)
		},
		"urlquery": url.QueryEscape,
		"selected": func(groupID *uint, id uint) bool {
			return groupID != nil && *groupID == id
		},
	}
}

// LoadTemplates builds one template set per view: layout, includes and
// components first, then the view that fills in the blocks.
func LoadTemplates() (multitemplate.Renderer, error) {
	return loadTemplates(templatesFS)
}

func loadTemplates(fsys fs.FS) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	var shared []string
	for _, pattern := range []string{"templates/layouts/*.html", "templates/includes/*.html", "templates/components/*.html"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, xerrors.New(err)
		}
		shared = append(shared, matches...)
	}

	funcs := FuncMap()
	for _, view := range Views {
		files := append(append([]string{}, shared...), "templates/views/"+view)
		tmpl, err := template.New(path.Base(files[0])).Funcs(funcs).ParseFS(fsys, files...)
		if err != nil {
			return nil, xerrors.Newf("parse %s: %w", view, err)
		}
		r.Add(view, tmpl)
	}
	return r, nil
}
