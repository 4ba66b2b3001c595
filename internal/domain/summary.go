package domain

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Summary holds the grand total and per-category totals of all balances.
type Summary struct {
	GrandTotal       decimal.Decimal
	TotalsByCategory map[string]decimal.Decimal
}

// Summarize folds the account set into a Summary. Category order is irrelevant.
func Summarize(accounts []Account) Summary {
	s := Summary{
		GrandTotal:       decimal.Zero,
		TotalsByCategory: make(map[string]decimal.Decimal),
	}
	for _, a := range accounts {
		s.GrandTotal = s.GrandTotal.Add(a.Balance)
		s.TotalsByCategory[a.Category] = s.TotalsByCategory[a.Category].Add(a.Balance)
	}
	return s
}

// MarshalJSON renders amounts as plain JSON numbers using the keys of the
// public summary endpoint.
func (s Summary) MarshalJSON() ([]byte, error) {
	byCat := make(map[string]json.Number, len(s.TotalsByCategory))
	for cat, total := range s.TotalsByCategory {
		byCat[cat] = json.Number(total.StringFixed(2))
	}
	return json.Marshal(struct {
		GrandTotal json.Number            `json:"total_geral"`
		ByCategory map[string]json.Number `json:"por_categoria"`
	}{
		GrandTotal: json.Number(s.GrandTotal.StringFixed(2)),
		ByCategory: byCat,
	})
}

// CategoryGroup is one category of the dashboard.
type CategoryGroup struct {
	Category string          `json:"categoria"`
	Accounts []Account       `json:"contas"`
	Total    decimal.Decimal `json:"total"`
}

// Dashboard is the summary plus the accounts grouped by category.
type Dashboard struct {
	Summary    Summary         `json:"resumo"`
	Categories []CategoryGroup `json:"categorias"`
}

// GroupByCategory groups accounts by category, sorted by category then name.
func GroupByCategory(accounts []Account) []CategoryGroup {
	sorted := make([]Account, len(accounts))
	copy(sorted, accounts)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Category != sorted[j].Category {
			return sorted[i].Category < sorted[j].Category
		}
		return sorted[i].Name < sorted[j].Name
	})

	var groups []CategoryGroup
	for _, a := range sorted {
		if len(groups) == 0 || groups[len(groups)-1].Category != a.Category {
			groups = append(groups, CategoryGroup{Category: a.Category, Total: decimal.Zero})
		}
		g := &groups[len(groups)-1]
		g.Accounts = append(g.Accounts, a)
		g.Total = g.Total.Add(a.Balance)
	}
	return groups
}
