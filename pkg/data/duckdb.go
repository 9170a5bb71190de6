package data

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/marcboeker/go-duckdb/v2"
)

const schema = `
CREATE TABLE IF NOT EXISTS titles (
	id        VARCHAR PRIMARY KEY,
	name      VARCHAR NOT NULL,
	author    VARCHAR,
	genres    VARCHAR,
	cover_url VARCHAR,
	source    VARCHAR
);
CREATE TABLE IF NOT EXISTS chapters (
	id         VARCHAR PRIMARY KEY,
	title_id   VARCHAR NOT NULL,
	idx        INTEGER NOT NULL,
	name       VARCHAR,
	page_count INTEGER,
	downloaded BOOLEAN DEFAULT FALSE,
	file_path  VARCHAR
);
`

// InitDuckDB opens (and if necessary creates) the library database.
func InitDuckDB(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

// Repository is the persistent library of titles and downloaded chapters.
type Repository struct {
	db *sql.DB
}

// NewRepository opens a repository backed by the DuckDB file at path.
func NewRepository(path string) (*Repository, error) {
	db, err := InitDuckDB(path)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Close releases the underlying database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// SaveTitle inserts or replaces a title record.
func (r *Repository) SaveTitle(title *Title) error {
	if title == nil {
		return fmt.Errorf("title cannot be nil")
	}
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO titles (id, name, author, genres, cover_url, source) VALUES (?, ?, ?, ?, ?, ?)`,
		title.ID, title.Name, title.Author, strings.Join(title.Genres, ","), title.CoverURL, title.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to save title: %w", err)
	}
	return nil
}

// GetTitle returns the title with the given id, or nil if unknown.
func (r *Repository) GetTitle(id string) (*Title, error) {
	row := r.db.QueryRow(`SELECT id, name, author, genres, cover_url, source FROM titles WHERE id = ?`, id)
	var t Title
	var genres string
	if err := row.Scan(&t.ID, &t.Name, &t.Author, &genres, &t.CoverURL, &t.Source); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get title: %w", err)
	}
	if genres != "" {
		t.Genres = strings.Split(genres, ",")
	}
	return &t, nil
}

// ListTitles returns every title in the library ordered by name.
func (r *Repository) ListTitles() ([]*Title, error) {
	rows, err := r.db.Query(`SELECT id, name, author, genres, cover_url, source FROM titles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list titles: %w", err)
	}
	defer rows.Close()

	var titles []*Title
	for rows.Next() {
		var t Title
		var genres string
		if err := rows.Scan(&t.ID, &t.Name, &t.Author, &genres, &t.CoverURL, &t.Source); err != nil {
			return nil, fmt.Errorf("failed to scan title: %w", err)
		}
		if genres != "" {
			t.Genres = strings.Split(genres, ",")
		}
		titles = append(titles, &t)
	}
	return titles, rows.Err()
}

// SaveChapter inserts or replaces a chapter record.
func (r *Repository) SaveChapter(chapter *Chapter) error {
	if chapter == nil {
		return fmt.Errorf("chapter cannot be nil")
	}
	_, err := r.db.Exec(
		`INSERT OR REPLACE INTO chapters (id, title_id, idx, name, page_count, downloaded, file_path) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chapter.ID, chapter.TitleID, chapter.Index, chapter.Name, chapter.PageCount, chapter.Downloaded, chapter.FilePath,
	)
	if err != nil {
		return fmt.Errorf("failed to save chapter: %w", err)
	}
	return nil
}

// GetChapters returns the chapters of a title in index order.
func (r *Repository) GetChapters(titleID string) ([]*Chapter, error) {
	rows, err := r.db.Query(
		`SELECT id, title_id, idx, name, page_count, downloaded, file_path FROM chapters WHERE title_id = ? ORDER BY idx`,
		titleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*Chapter
	for rows.Next() {
		var c Chapter
		if err := rows.Scan(&c.ID, &c.TitleID, &c.Index, &c.Name, &c.PageCount, &c.Downloaded, &c.FilePath); err != nil {
			return nil, fmt.Errorf("failed to scan chapter: %w", err)
		}
		chapters = append(chapters, &c)
	}
	return chapters, rows.Err()
}

// UpdateChapterStatus records whether a chapter was downloaded and where
// its artifact lives.
func (r *Repository) UpdateChapterStatus(chapterID string, downloaded bool, filePath string) error {
	res, err := r.db.Exec(
		`UPDATE chapters SET downloaded = ?, file_path = ? WHERE id = ?`,
		downloaded, filePath, chapterID,
	)
	if err != nil {
		return fmt.Errorf("failed to update chapter status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("chapter %s not found", chapterID)
	}
	return nil
}

// ChapterCounts returns the total and downloaded chapter counts for a title.
func (r *Repository) ChapterCounts(titleID string) (total, downloaded int, err error) {
	row := r.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(CASE WHEN downloaded THEN 1 ELSE 0 END), 0) FROM chapters WHERE title_id = ?`,
		titleID,
	)
	if err := row.Scan(&total, &downloaded); err != nil {
		return 0, 0, fmt.Errorf("failed to count chapters: %w", err)
	}
	return total, downloaded, nil
}

// DeleteTitle removes a title and its chapters from the library.
func (r *Repository) DeleteTitle(titleID string) error {
	if _, err := r.db.Exec(`DELETE FROM chapters WHERE title_id = ?`, titleID); err != nil {
		return fmt.Errorf("failed to delete chapters: %w", err)
	}
	if _, err := r.db.Exec(`DELETE FROM titles WHERE id = ?`, titleID); err != nil {
		return fmt.Errorf("failed to delete title: %w", err)
	}
	return nil
}
