package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"checklist/apierr"
	"checklist/models"
)

// SearchQueryParser turns free text typed into the audit log search box into
// a tsquery. Every term must match; with prefix set, each term also matches
// longer words so that "seri" finds "serial".
type SearchQueryParser struct {
	minLength int
	maxLength int
	prefix    bool
}

func NewSearchQueryParser() *SearchQueryParser {
	return &SearchQueryParser{
		minLength: 3,
		maxLength: 500,
		prefix:    true,
	}
}

// Parse returns e.g. "answer:* & updat:*" for "Answer updat". Terms shorter
// than two characters are dropped.
func (p *SearchQueryParser) Parse(query string) (string, error) {
	query = strings.TrimSpace(query)

	if len(query) < p.minLength {
		return "", fmt.Errorf("search query must be at least %d characters", p.minLength)
	}
	if len(query) > p.maxLength {
		return "", fmt.Errorf("search query too long (max %d characters)", p.maxLength)
	}

	words := strings.Fields(p.sanitize(query))
	if len(words) == 0 {
		return "", fmt.Errorf("search query is empty")
	}

	terms := p.filterValidWords(words)
	if len(terms) == 0 {
		return "", fmt.Errorf("no valid search terms")
	}
	if p.prefix {
		for i := range terms {
			terms[i] += ":*"
		}
	}
	return strings.Join(terms, " & "), nil
}

// sanitize drops every character with a meaning in tsquery syntax. Hyphens
// split serial values like "P1-3-2" into separate terms.
func (p *SearchQueryParser) sanitize(query string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '"', '\'', '(', ')', '*':
			return -1
		case '&', '|', '!', ':', '<', '>', '-', '\\':
			return ' '
		}
		return r
	}, query)
}

func (p *SearchQueryParser) filterValidWords(words []string) []string {
	valid := []string{}
	seen := map[string]bool{}
	for _, word := range words {
		word = strings.ToLower(word)
		if len(word) < 2 || seen[word] {
			continue
		}
		seen[word] = true
		valid = append(valid, word)
	}
	return valid
}

// SearchAuditLog performs full-text search over change descriptions using the
// GIN index on audit_log. Results are ranked by relevance (ts_rank) then
// timestamp (DESC). The other AuditQueryParams filters still apply.
//
// Returns entries with Rank populated, the total match count, and an error
// if the query is invalid or the database fails.
func (db *DB) SearchAuditLog(ctx context.Context, params models.AuditQueryParams) ([]models.AuditEntry, int64, error) {
	start := time.Now()
	defer func() {
		db.log.Debug("SearchAuditLog", "query", params.Search, "duration_ms", time.Since(start).Milliseconds())
	}()

	parser := NewSearchQueryParser()
	tsQuery, err := parser.Parse(params.Search)
	if err != nil {
		return nil, 0, apierr.Invalidf("invalid search query: %v", err)
	}

	limit := validateLimit(params.Limit, defaultLimit, maxLimit)
	offset := validateOffset(params.Offset)

	qb := NewQueryBuilder()
	searchArg := qb.NextArgNum()
	qb.AddFullTextSearch(columnAuditDescription, tsQuery)
	if err := applyAuditFilters(qb, params); err != nil {
		return nil, 0, err
	}

	// SAFETY: All user input is parameterized. whereClause only contains safe SQL.
	query := fmt.Sprintf(`
		SELECT %s,
			ts_rank(to_tsvector('english', %s), to_tsquery('english', $%d)) AS rank,
			COUNT(*) OVER() AS total_count
		FROM %s
		%s
		ORDER BY rank DESC, %s DESC
		LIMIT $%d OFFSET $%d
	`, auditSelect, columnAuditDescription, searchArg, auditFrom,
		qb.WhereClause(), columnAuditTimestamp, qb.NextArgNum(), qb.NextArgNum()+1)

	args := append(qb.Args(), limit, offset)

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search audit log: %w", err)
	}
	defer rows.Close()

	return scanAuditEntries(rows, true)
}
