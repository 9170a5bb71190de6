package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kerbaras/mangago/pkg/data"
)

// fakeMangaDex serves canned JSON for the endpoints the source hits.
func fakeMangaDex(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/manga/6b1eb93e", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {
			"id": "6b1eb93e",
			"attributes": {
				"title": {"en": "Naruto"},
				"tags": [{"attributes": {"name": {"en": "Action"}}}, {"attributes": {"name": {"en": "Adventure"}}}]
			},
			"relationships": [{"type": "author", "attributes": {"name": "Kishimoto Masashi"}}]
		}}`))
	})

	mux.HandleFunc("/manga", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "naruto", r.URL.Query().Get("title"))
		w.Write([]byte(`{"data": [
			{"id": "6b1eb93e", "attributes": {"title": {"en": "Naruto"}}, "relationships": [{"type": "author", "attributes": {"name": "Kishimoto Masashi"}}]},
			{"id": "", "attributes": {"title": {"en": "Broken Entry"}}}
		]}`))
	})

	mux.HandleFunc("/manga/6b1eb93e/feed", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en", r.URL.Query().Get("translatedLanguage[]"))
		assert.Equal(t, "asc", r.URL.Query().Get("order[chapter]"))
		w.Write([]byte(`{"data": [
			{"id": "cd5635a9", "attributes": {"title": "Uzumaki Naruto!", "translatedLanguage": "en", "chapter": "1", "pages": 44}},
			{"id": "d83c5f8b", "attributes": {"title": "", "translatedLanguage": "en", "chapter": "2", "pages": 20}}
		]}`))
	})

	mux.HandleFunc("/at-home/server/cd5635a9", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"baseUrl": "https://uploads.example.org",
			"chapter": {"hash": "abc123", "data": ["p1.jpg", "p2.jpg", "p3.jpg"]}
		}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestMangaDex_Search(t *testing.T) {
	server := fakeMangaDex(t)
	md := NewMangaDexWithURL(server.URL)

	titles, err := md.Search(context.Background(), "naruto")
	assert.NoError(t, err)
	// Entries without an id are dropped.
	assert.Len(t, titles, 1)
	assert.Equal(t, "6b1eb93e", titles[0].ID)
	assert.Equal(t, "Naruto", titles[0].Name)
	assert.Equal(t, "Kishimoto Masashi", titles[0].Author)
	assert.Equal(t, "mangadex", titles[0].Source)
}

func TestMangaDex_GetTitle(t *testing.T) {
	server := fakeMangaDex(t)
	md := NewMangaDexWithURL(server.URL)

	title, err := md.GetTitle(context.Background(), "6b1eb93e")
	assert.NoError(t, err)
	assert.Equal(t, "Naruto", title.Name)
	assert.Equal(t, "Kishimoto Masashi", title.Author)
	assert.Equal(t, []string{"Action", "Adventure"}, title.Genres)
}

func TestMangaDex_GetTitleNotFound(t *testing.T) {
	server := fakeMangaDex(t)
	md := NewMangaDexWithURL(server.URL)

	_, err := md.GetTitle(context.Background(), "missing")
	assert.Error(t, err)
}

func TestMangaDex_GetChapters(t *testing.T) {
	server := fakeMangaDex(t)
	md := NewMangaDexWithURL(server.URL)

	chapters, err := md.GetChapters(context.Background(), &data.Title{ID: "6b1eb93e", Name: "Naruto"})
	assert.NoError(t, err)
	assert.Len(t, chapters, 2)
	assert.Equal(t, "cd5635a9", chapters[0].ID)
	assert.Equal(t, "Uzumaki Naruto!", chapters[0].Name)
	assert.Equal(t, 1, chapters[0].Index)
	assert.Equal(t, 44, chapters[0].PageCount)
	// Untitled chapters get a generated name, indices follow feed order.
	assert.Equal(t, "Chapter 2", chapters[1].Name)
	assert.Equal(t, 2, chapters[1].Index)
	assert.Equal(t, data.StatusPending, chapters[0].Status)
}

func TestMangaDex_GetPages(t *testing.T) {
	server := fakeMangaDex(t)
	md := NewMangaDexWithURL(server.URL)

	pages, err := md.GetPages(context.Background(), nil, &data.Chapter{ID: "cd5635a9"})
	assert.NoError(t, err)
	assert.Len(t, pages, 3)
	assert.Equal(t, "https://uploads.example.org/data/abc123/p1.jpg", pages[0])
	assert.Equal(t, "https://uploads.example.org/data/abc123/p3.jpg", pages[2])
}

func TestMangaDex_GetPagesNilChapter(t *testing.T) {
	server := fakeMangaDex(t)
	md := NewMangaDexWithURL(server.URL)

	_, err := md.GetPages(context.Background(), nil, nil)
	assert.Error(t, err)
}
