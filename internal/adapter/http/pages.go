package http

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/couchcryptid/safesea/internal/domain"
	"github.com/couchcryptid/safesea/internal/flow"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var pageFiles = map[domain.Page]string{
	domain.PageHome:               "home.html",
	domain.PageSailorCheckin:      "sailor_checkin.html",
	domain.PageDiverCheckin:       "diver_checkin.html",
	domain.PageSailorConfirmation: "confirmation.html",
	domain.PageDiverConfirmation:  "confirmation.html",
	domain.PageMap:                "map.html",
}

var pageTitles = map[domain.Page]string{
	domain.PageHome:               "Welcome",
	domain.PageSailorCheckin:      "Sailor Check-in",
	domain.PageDiverCheckin:       "Diver Check-in",
	domain.PageSailorConfirmation: "Checked in",
	domain.PageDiverConfirmation:  "Checked in",
	domain.PageMap:                "Coral Map",
}

type pages struct {
	byPage map[domain.Page]*template.Template
}

// pageData is the template input shared by every page.
type pageData struct {
	Page      domain.Page
	Title     string
	Error     string
	CSRFField template.HTML
	Checkin   *domain.Checkin
	Advisory  bool
	MapJSON   template.JS
}

func mustParsePages() *pages {
	p := &pages{byPage: make(map[domain.Page]*template.Template, len(pageFiles))}
	for page, file := range pageFiles {
		p.byPage[page] = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/"+file))
	}
	return p
}

// data converts a flow view into template input.
func (p *pages) data(v *flow.View, csrfField template.HTML) (pageData, error) {
	sess := v.Session
	d := pageData{
		Page:      sess.Page,
		Title:     pageTitles[sess.Page],
		Error:     v.Error,
		CSRFField: csrfField,
		Checkin:   sess.LastCheckin,
		Advisory:  sess.Page == domain.PageSailorConfirmation,
	}
	if v.Map != nil {
		b, err := json.Marshal(v.Map)
		if err != nil {
			return d, fmt.Errorf("encode map: %w", err)
		}
		d.MapJSON = template.JS(b)
	}
	return d, nil
}

// render executes the page template into a buffer so a failed render never
// leaves a partial response behind.
func (p *pages) render(w http.ResponseWriter, status int, d pageData) error {
	t, ok := p.byPage[d.Page]
	if !ok {
		return fmt.Errorf("no template for page %q", d.Page)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", d); err != nil {
		return fmt.Errorf("render %s: %w", d.Page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServerFS(sub))
}
