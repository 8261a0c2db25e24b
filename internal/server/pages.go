package server

import (
	"embed"
	"fmt"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages holds the compiled templates. Each page renders its body, which is then
// wrapped in the layout.
type pages struct {
	layout *pongo2.Template
	byName map[string]*pongo2.Template
}

func loadPages() (*pages, error) {
	compile := func(name string) (*pongo2.Template, error) {
		src, err := templateFS.ReadFile("templates/" + name + ".html")
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", name, err)
		}
		tpl, err := pongo2.FromBytes(src)
		if err != nil {
			return nil, fmt.Errorf("compile template %s: %w", name, err)
		}
		return tpl, nil
	}

	layout, err := compile("layout")
	if err != nil {
		return nil, err
	}
	p := &pages{layout: layout, byName: map[string]*pongo2.Template{}}
	for _, name := range []string{"home", "upload", "account"} {
		tpl, err := compile(name)
		if err != nil {
			return nil, err
		}
		p.byName[name] = tpl
	}
	return p, nil
}

func (p *pages) render(name, title string, data pongo2.Context) (string, error) {
	tpl, ok := p.byName[name]
	if !ok {
		return "", fmt.Errorf("unknown page %q", name)
	}
	body, err := tpl.Execute(data)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return p.layout.Execute(pongo2.Context{"title": title, "content": body})
}
