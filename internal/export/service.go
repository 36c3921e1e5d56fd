package export

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/yuin/goldmark"

	"launchpad/internal/store"
	"launchpad/internal/view"
)

// Service provides cheat sheet export functionality
type Service struct {
	author   string
	markdown goldmark.Markdown
	now      func() time.Time
}

// NewService creates a new export service
func NewService(author string) *Service {
	return &Service{author: author, markdown: goldmark.New(), now: time.Now}
}

// Export generates an export in the requested format
func (s *Service) Export(ctx context.Context, doc store.AppDocument, format Format) (*Result, error) {
	data, err := s.templateData(doc)
	if err != nil {
		return nil, err
	}

	html, err := RenderCheatSheetHTML(data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	switch format {
	case FormatHTML:
		return &Result{
			Data:     []byte(html),
			Filename: sanitizeFilename(data.Title) + ".html",
			MimeType: "text/html; charset=utf-8",
		}, nil
	case FormatPDF:
		return exportPDF(ctx, html, data.Title)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func (s *Service) templateData(doc store.AppDocument) (TemplateData, error) {
	data := TemplateData{
		Title:       "Launchpad",
		Author:      s.author,
		GeneratedAt: s.now(),
	}

	for _, c := range view.Categories(doc) {
		items, err := view.Select(doc, c.ID)
		if err != nil {
			return TemplateData{}, err
		}
		if c.ID == view.FavoritesID && len(items) == 0 {
			continue
		}
		section := TemplateSection{Name: c.Name, Icon: c.Icon, Items: make([]TemplateItem, 0, len(items))}
		for _, item := range items {
			entry, err := s.templateItem(item)
			if err != nil {
				return TemplateData{}, err
			}
			section.Items = append(section.Items, entry)
		}
		if c.ID != view.FavoritesID {
			data.ItemCount += len(items)
		}
		data.Sections = append(data.Sections, section)
	}
	return data, nil
}

func (s *Service) templateItem(item store.Item) (TemplateItem, error) {
	entry := TemplateItem{
		Label:    item.Label,
		Kind:     string(item.Kind),
		Favorite: item.IsFavorite,
		Steps:    item.Steps,
	}
	for _, v := range item.Variables {
		entry.Variables = append(entry.Variables, "{"+v.Name+"}")
	}

	if item.Kind == store.KindPrompt {
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(item.Body), &buf); err != nil {
			return TemplateItem{}, fmt.Errorf("render prompt %s: %w", item.ID, err)
		}
		// goldmark escapes raw HTML in the source unless WithUnsafe is set.
		entry.BodyHTML = template.HTML(buf.String())
		return entry, nil
	}
	entry.Body = item.Body
	return entry, nil
}
