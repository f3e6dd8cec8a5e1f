package domain

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

// Scope selects which products a retrieval may return.
type Scope string

const (
	ScopeActive Scope = "active"
	ScopeAll    Scope = "all"
)

// LikeEscape is the escape character used in Search.Pattern.
const LikeEscape = "!"

// ParseScope maps a query parameter to a Scope. Empty means active.
func ParseScope(raw string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ScopeActive:
		return ScopeActive, nil
	case ScopeAll:
		return ScopeAll, nil
	default:
		return "", ErrInvalidScope
	}
}

// Search is the predicate of a product listing. An empty Term matches every
// product in Scope; otherwise a product matches when its title or description
// contains Term case-insensitively, or when Price is set and equals its price.
type Search struct {
	Scope   Scope
	Term    string
	Pattern string
	Price   *decimal.Decimal

	// AfterID and Limit page the listing by id. Zero disables each.
	AfterID int64
	Limit   int
}

func (s Search) ActiveOnly() bool {
	return s.Scope != ScopeAll
}

func (s Search) HasTerm() bool {
	return s.Term != ""
}

// BuildSearch composes the listing predicate for query. A query that is not a
// decimal simply has no price clause.
func BuildSearch(query string, scope Scope) (Search, error) {
	switch scope {
	case ScopeActive, ScopeAll:
	default:
		return Search{}, ErrInvalidScope
	}

	search := Search{Scope: scope, Term: strings.TrimSpace(query)}
	if search.Term == "" {
		return search, nil
	}

	search.Pattern = "%" + escapeLike(FoldText(search.Term)) + "%"
	// Any decimal literal counts, exponent forms included: "1e1" matches 10.00.
	if price, err := decimal.NewFromString(search.Term); err == nil {
		search.Price = &price
	}
	return search, nil
}

// FoldText applies Unicode case folding ("Écharpe" and "ÉCHARPE" both fold
// to "écharpe").
func FoldText(value string) string {
	return cases.Fold().String(value)
}

var likeEscaper = strings.NewReplacer(
	LikeEscape, LikeEscape+LikeEscape,
	"%", LikeEscape+"%",
	"_", LikeEscape+"_",
)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
