package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

// Backend is the relational/metadata retrieval modality: Postgres
// full-text search over document passages with exact metadata filters.
type Backend struct {
	db *sql.DB
}

func NewBackend(db *sql.DB) *Backend {
	return &Backend{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (b *Backend) Method() domain.RetrievalMethod { return domain.MethodRelational }

// filterColumns is the allow-list of metadata columns callers may
// constrain. Unknown filter keys are ignored rather than interpolated.
var filterColumns = map[string]string{
	"source_type":  "source_type",
	"jurisdiction": "jurisdiction",
	"author":       "author",
	"category":     "category",
}

func (b *Backend) Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) ([]domain.RankedEntry, error) {
	if topK <= 0 {
		topK = 10
	}

	var sb strings.Builder
	sb.WriteString(`
SELECT doc_id, section, title, source_type, author, left(body, 500),
       ts_rank_cd(search_vector, websearch_to_tsquery('german', $1)) AS rank_score
FROM passages
WHERE search_vector @@ websearch_to_tsquery('german', $1)`)

	args := []any{query}
	for key, value := range filters {
		column, ok := filterColumns[key]
		if !ok {
			continue
		}
		args = append(args, value)
		fmt.Fprintf(&sb, " AND %s = $%d", column, len(args))
	}
	args = append(args, topK)
	fmt.Fprintf(&sb, " ORDER BY rank_score DESC, doc_id ASC LIMIT $%d", len(args))

	rows, err := b.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("relational search query: %w", err)
	}
	defer rows.Close()

	var (
		out      []domain.RankedEntry
		maxScore float64
	)
	for rows.Next() {
		var (
			entry      domain.RankedEntry
			section    sql.NullString
			title      sql.NullString
			sourceType sql.NullString
			author     sql.NullString
			body       sql.NullString
		)
		if err := rows.Scan(&entry.DocID, &section, &title, &sourceType, &author, &body, &entry.Score); err != nil {
			return nil, fmt.Errorf("scan relational row: %w", err)
		}
		entry.Section = section.String
		entry.Content = body.String
		entry.SourceType = sourceType.String
		if entry.SourceType == "" {
			entry.SourceType = "relational"
		}
		metadata := make(map[string]string, 2)
		if title.Valid && title.String != "" {
			metadata["title"] = title.String
		}
		if author.Valid && author.String != "" {
			metadata["author"] = author.String
		}
		if len(metadata) > 0 {
			entry.Metadata = metadata
		}
		entry.Rank = len(out) + 1
		if entry.Score > maxScore {
			maxScore = entry.Score
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate relational rows: %w", err)
	}

	// ts_rank_cd is unbounded; scale into [0,1] against the best row so
	// fusion's weighted-average strategy gets normalized scores.
	if maxScore > 0 {
		for i := range out {
			out[i].Score /= maxScore
		}
	}
	return out, nil
}
