package sources

import (
	"context"
	"fmt"
	"net/url"

	"github.com/kerbaras/mangago/pkg/data"
	"github.com/kerbaras/mangago/pkg/utils"
)

const mangadexURL = "https://api.mangadex.org"

type mdManga struct {
	ID         string `json:"id"`
	Attributes struct {
		Title       map[string]string `json:"title"`
		Description map[string]string `json:"description"`
		Tags        []struct {
			Attributes struct {
				Name map[string]string `json:"name"`
			} `json:"attributes"`
		} `json:"tags"`
	} `json:"attributes"`
	Relationships []struct {
		Type       string `json:"type"`
		Attributes struct {
			Name string `json:"name"`
		} `json:"attributes"`
	} `json:"relationships"`
}

func (m *mdManga) toTitle() data.Title {
	t := data.Title{
		ID:     m.ID,
		Name:   m.Attributes.Title["en"],
		Source: "mangadex",
	}
	for _, tag := range m.Attributes.Tags {
		if name := tag.Attributes.Name["en"]; name != "" {
			t.Genres = append(t.Genres, name)
		}
	}
	for _, rel := range m.Relationships {
		if rel.Type == "author" && rel.Attributes.Name != "" {
			t.Author = rel.Attributes.Name
			break
		}
	}
	return t
}

type mdChapter struct {
	ID         string `json:"id"`
	Attributes struct {
		Title    string `json:"title"`
		Language string `json:"translatedLanguage"`
		Volume   string `json:"volume"`
		Number   string `json:"chapter"`
		Pages    int    `json:"pages"`
	} `json:"attributes"`
}

// MangaDex resolves title metadata from the MangaDex JSON API.
type MangaDex struct {
	api      *utils.API
	language string
}

// NewMangaDex creates a MangaDex source for English chapters.
func NewMangaDex() *MangaDex {
	return NewMangaDexWithURL(mangadexURL)
}

// NewMangaDexWithURL creates a source rooted at a custom base URL.
// Used by tests to point at a fake server.
func NewMangaDexWithURL(baseURL string) *MangaDex {
	return &MangaDex{api: utils.NewAPI(baseURL), language: "en"}
}

// Search looks up titles matching the query.
func (m *MangaDex) Search(ctx context.Context, query string) ([]data.Title, error) {
	var out struct {
		Data []mdManga `json:"data"`
	}
	params := url.Values{"title": {query}, "includes[]": {"author"}}
	if err := m.api.Get(ctx, "/manga", params, &out); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	titles := make([]data.Title, 0, len(out.Data))
	for _, manga := range out.Data {
		if manga.ID == "" {
			continue
		}
		titles = append(titles, manga.toTitle())
	}
	return titles, nil
}

// GetTitle resolves one title by id.
func (m *MangaDex) GetTitle(ctx context.Context, id string) (*data.Title, error) {
	var out struct {
		Data mdManga `json:"data"`
	}
	params := url.Values{"includes[]": {"author"}}
	if err := m.api.Get(ctx, fmt.Sprintf("/manga/%s", id), params, &out); err != nil {
		return nil, fmt.Errorf("failed to get title %s: %w", id, err)
	}
	if out.Data.ID == "" {
		return nil, fmt.Errorf("title %s not found", id)
	}
	t := out.Data.toTitle()
	return &t, nil
}

// GetChapters returns the ordered chapter list of a title. Chapters come
// back with their index assigned by feed order; page counts may be zero
// when the source does not report them.
func (m *MangaDex) GetChapters(ctx context.Context, title *data.Title) ([]*data.Chapter, error) {
	if title == nil {
		return nil, fmt.Errorf("title cannot be nil")
	}
	var out struct {
		Data []mdChapter `json:"data"`
	}
	params := url.Values{
		"translatedLanguage[]": {m.language},
		"order[chapter]":       {"asc"},
		"limit":                {"500"},
	}
	if err := m.api.Get(ctx, fmt.Sprintf("/manga/%s/feed", title.ID), params, &out); err != nil {
		return nil, fmt.Errorf("failed to get chapters for %s: %w", title.ID, err)
	}

	chapters := make([]*data.Chapter, 0, len(out.Data))
	for _, ch := range out.Data {
		if ch.ID == "" {
			continue
		}
		name := ch.Attributes.Title
		if name == "" {
			name = fmt.Sprintf("Chapter %s", ch.Attributes.Number)
		}
		chapters = append(chapters, &data.Chapter{
			ID:        ch.ID,
			TitleID:   title.ID,
			Index:     len(chapters) + 1,
			Name:      name,
			PageCount: ch.Attributes.Pages,
			Status:    data.StatusPending,
		})
	}
	return chapters, nil
}

// GetPages resolves the page image URLs of a chapter from the at-home
// server endpoint.
func (m *MangaDex) GetPages(ctx context.Context, _ *data.Title, chapter *data.Chapter) ([]string, error) {
	if chapter == nil {
		return nil, fmt.Errorf("chapter cannot be nil")
	}
	var out struct {
		BaseURL string `json:"baseUrl"`
		Chapter struct {
			Hash string   `json:"hash"`
			Data []string `json:"data"`
		} `json:"chapter"`
	}
	if err := m.api.Get(ctx, fmt.Sprintf("/at-home/server/%s", chapter.ID), nil, &out); err != nil {
		return nil, fmt.Errorf("failed to get pages for %s: %w", chapter.ID, err)
	}
	pages := make([]string, len(out.Chapter.Data))
	for i, name := range out.Chapter.Data {
		pages[i] = fmt.Sprintf("%s/data/%s/%s", out.BaseURL, out.Chapter.Hash, name)
	}
	return pages, nil
}
