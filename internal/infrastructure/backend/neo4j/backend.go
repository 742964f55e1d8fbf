package neo4j

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/makr-code/VCC-Veritas-sub003/internal/core/domain"
)

// Backend is the graph retrieval modality: a full-text seed lookup over
// passage nodes, widened by citation edges so well-connected statutes
// rank above isolated hits.
type Backend struct {
	driver   neo4j.DriverWithContext
	database string
	index    string
}

func Connect(uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	return driver, nil
}

func NewBackend(driver neo4j.DriverWithContext, database, index string) *Backend {
	if index == "" {
		index = "passage_text"
	}
	return &Backend{driver: driver, database: database, index: index}
}

func (b *Backend) Method() domain.RetrievalMethod { return domain.MethodGraph }

// filterProperties is the allow-list of node properties callers may
// constrain; anything else is dropped before query assembly.
var filterProperties = map[string]string{
	"source_type":  "source_type",
	"jurisdiction": "jurisdiction",
	"category":     "category",
}

func (b *Backend) Search(ctx context.Context, query string, topK int, filters domain.SearchFilters) ([]domain.RankedEntry, error) {
	if topK <= 0 {
		topK = 10
	}

	cypher, params := buildTraversalQuery(b.index, query, topK, filters)

	result, err := neo4j.ExecuteQuery(ctx, b.driver, cypher, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(b.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, fmt.Errorf("graph search query: %w", err)
	}

	records := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		records = append(records, record.AsMap())
	}
	return entriesFromRecords(records), nil
}

func buildTraversalQuery(index, query string, topK int, filters domain.SearchFilters) (string, map[string]any) {
	params := map[string]any{
		"index": index,
		"query": query,
		"limit": topK,
	}

	var where strings.Builder
	i := 0
	for key, value := range filters {
		property, ok := filterProperties[key]
		if !ok {
			continue
		}
		name := "filter_" + strconv.Itoa(i)
		params[name] = value
		if where.Len() == 0 {
			where.WriteString("WHERE ")
		} else {
			where.WriteString(" AND ")
		}
		fmt.Fprintf(&where, "node.%s = $%s", property, name)
		i++
	}

	cypher := `
CALL db.index.fulltext.queryNodes($index, $query) YIELD node, score
` + where.String() + `
WITH node, score, COUNT { (node)-[:CITES|CITED_BY]-() } AS degree
RETURN node.doc_id AS doc_id,
       node.section AS section,
       node.title AS title,
       node.source_type AS source_type,
       left(node.body, 500) AS excerpt,
       score * (1.0 + 0.1 * degree) AS graph_score,
       degree
ORDER BY graph_score DESC, doc_id ASC
LIMIT $limit`
	return cypher, params
}

// entriesFromRecords maps raw query records onto ranked entries with
// scores scaled into [0,1] against the best hit.
func entriesFromRecords(records []map[string]any) []domain.RankedEntry {
	out := make([]domain.RankedEntry, 0, len(records))
	maxScore := 0.0
	for _, record := range records {
		entry := domain.RankedEntry{
			DocID:      recordString(record, "doc_id"),
			Section:    recordString(record, "section"),
			Content:    recordString(record, "excerpt"),
			SourceType: recordString(record, "source_type"),
			Score:      recordFloat(record, "graph_score"),
			Rank:       len(out) + 1,
		}
		if entry.DocID == "" {
			continue
		}
		if entry.SourceType == "" {
			entry.SourceType = "graph"
		}
		metadata := make(map[string]string, 2)
		if title := recordString(record, "title"); title != "" {
			metadata["title"] = title
		}
		if degree := recordFloat(record, "degree"); degree > 0 {
			metadata["citation_degree"] = strconv.FormatFloat(degree, 'f', -1, 64)
		}
		if len(metadata) > 0 {
			entry.Metadata = metadata
		}
		if entry.Score > maxScore {
			maxScore = entry.Score
		}
		out = append(out, entry)
	}

	if maxScore > 0 {
		for i := range out {
			out[i].Score /= maxScore
		}
	}
	return out
}

func recordString(record map[string]any, key string) string {
	v, ok := record[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func recordFloat(record map[string]any, key string) float64 {
	switch v := record[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}
