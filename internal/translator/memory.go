package translator

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"
)

// Memory is a Translator decorator backed by sqlite: repeated translations of
// the same text to the same target language are served from the cache instead
// of the model. Keys are NFC-normalized so visually identical inputs hit the
// same row.
type Memory struct {
	db    *sql.DB
	inner Translator
}

// NewMemory opens (creating if needed) the database at dbPath and wraps inner.
func NewMemory(dbPath string, inner Translator) (*Memory, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	m := &Memory{db: db, inner: inner}
	if err := m.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return m, nil
}

func (m *Memory) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		source_text TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		code TEXT NOT NULL,
		model TEXT,
		usage_count INTEGER DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(source_text, target_lang)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(source_text, target_lang);
	`
	_, err := m.db.Exec(schema)
	return err
}

func (m *Memory) Name() string {
	return m.inner.Name() + "+memory"
}

func (m *Memory) IsAvailable(ctx context.Context) error {
	return m.inner.IsAvailable(ctx)
}

func (m *Memory) Translate(ctx context.Context, req Request) (*Result, error) {
	key := normalizeKey(req.Text)
	lang := req.TargetLanguage
	if lang == "" {
		lang = "python"
	}

	var code, model string
	err := m.db.QueryRowContext(ctx,
		`SELECT code, COALESCE(model, '') FROM translation_memory WHERE source_text = ? AND target_lang = ?`,
		key, lang).Scan(&code, &model)
	if err == nil {
		_, _ = m.db.ExecContext(ctx,
			`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE source_text = ? AND target_lang = ?`,
			time.Now().UTC(), key, lang)
		return &Result{
			Success:  true,
			Code:     code,
			Metadata: map[string]string{"memory": "hit", "model": model},
		}, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("memory lookup: %w", err)
	}

	res, terr := m.inner.Translate(ctx, req)
	if terr != nil || res == nil || !res.Success {
		return res, terr
	}

	_, err = m.db.ExecContext(ctx,
		`INSERT INTO translation_memory (id, source_text, target_lang, code, model) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source_text, target_lang) DO UPDATE SET code = excluded.code, last_used = CURRENT_TIMESTAMP`,
		uuid.New().String(), key, lang, res.Code, res.Metadata["model"])
	if err != nil {
		// A failed cache write never fails the translation.
		res.Warnings = append(res.Warnings, fmt.Sprintf("memory write failed: %v", err))
	}
	return res, nil
}

// Entry is one cached translation, as listed by List.
type Entry struct {
	ID         string
	SourceText string
	TargetLang string
	Model      string
	UsageCount int
	LastUsed   time.Time
}

// List returns all cached translations, most recently used first.
func (m *Memory) List(ctx context.Context) ([]Entry, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, source_text, target_lang, COALESCE(model, ''), usage_count, last_used
		 FROM translation_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SourceText, &e.TargetLang, &e.Model, &e.UsageCount, &e.LastUsed); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Entries reports how many translations the memory currently holds.
func (m *Memory) Entries(ctx context.Context) (int, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translation_memory`).Scan(&n)
	return n, err
}

// Delete removes one cached translation by id.
func (m *Memory) Delete(ctx context.Context, id string) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM translation_memory WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no entry with id %s", id)
	}
	return nil
}

// Clear removes all cached translations.
func (m *Memory) Clear(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	return err
}

// Close releases the underlying database.
func (m *Memory) Close() error {
	return m.db.Close()
}

func normalizeKey(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
