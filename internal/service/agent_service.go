package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gastoscan/internal/models"

	"go.uber.org/zap"
)

const (
	// contextPoolSize caps how many recent records are pulled into the
	// context candidate pool; contextRecordLimit caps how many of those are
	// rendered. The two-tier cap bounds both memory and prompt size while
	// keeping recency bias.
	contextPoolSize    = 50
	contextRecordLimit = 20

	searchResultLimit = 10

	queryMaxTokens   = 1000
	queryTemperature = 0.7
)

// LanguageModel is the completion surface the agent needs.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// HistoryStore serves the stored expense history, most recent first.
type HistoryStore interface {
	ListAll(ctx context.Context) ([]models.ExpenseRecord, error)
	Search(ctx context.Context, query string) ([]models.ExpenseRecord, error)
}

// AgentService answers free-text financial questions by compressing the
// stored history into a bounded context and handing it to the language
// model, paired with a keyword search over the same history.
type AgentService struct {
	model  LanguageModel
	store  HistoryStore
	logger *zap.Logger
}

func NewAgentService(model LanguageModel, store HistoryStore, logger *zap.Logger) *AgentService {
	return &AgentService{
		model:  model,
		store:  store,
		logger: logger,
	}
}

const agentPromptTemplate = `You are an intelligent financial assistant that helps users analyze their spending.

%s
USER QUESTION: %s

INSTRUCTIONS:
1. Analyze the user's question carefully
2. Use only the data provided above to answer
3. If the question mentions a specific year, use the data under "SPENDING BY YEAR"
4. Be specific and objective, with exact numbers
5. When the question is about values, quote exact figures with R$
6. When the question is about categories, list the relevant ones
7. Answer in the same language as the question
8. Use clear, organized formatting
9. IMPORTANT: the data covers multiple years - check which year the question refers to

ANSWER:`

// Query answers a user's question over the stored history. A language model
// failure degrades to an apology answer; store failures are returned because
// data loss must stay visible.
func (s *AgentService) Query(ctx context.Context, userQuery string) (models.QueryResponse, error) {
	records, err := s.store.ListAll(ctx)
	if err != nil {
		return models.QueryResponse{}, fmt.Errorf("load history: %w", err)
	}
	stats := CalculateStatistics(records)

	prompt := fmt.Sprintf(agentPromptTemplate, BuildContext(records, stats), userQuery)
	answer, err := s.model.Complete(ctx, prompt, queryMaxTokens, queryTemperature)
	if err != nil {
		s.logger.Error("agent completion failed", zap.Error(err))
		answer = fmt.Sprintf("Sorry, I could not process your question. Error: %v", err)
	}

	results, err := s.store.Search(ctx, userQuery)
	if err != nil {
		return models.QueryResponse{}, fmt.Errorf("search history: %w", err)
	}
	if len(results) > searchResultLimit {
		results = results[:searchResultLimit]
	}

	return models.QueryResponse{
		Answer:        answer,
		SearchResults: results,
		Statistics:    stats,
		Query:         userQuery,
	}, nil
}

// BuildContext compresses the full history plus its statistics into a
// bounded textual context: grand totals, a yearly breakdown with years
// descending, global categories by descending amount, and at most
// contextRecordLimit recent records drawn from a pool capped at
// contextPoolSize. Records are expected pre-sorted by creation time
// descending, as the store returns them.
func BuildContext(records []models.ExpenseRecord, stats models.Statistics) string {
	pool := records
	if len(pool) > contextPoolSize {
		pool = pool[:contextPoolSize]
	}

	var b strings.Builder
	b.WriteString("AVAILABLE DATA:\n")
	fmt.Fprintf(&b, "- Total spent (all periods): R$ %.2f\n", stats.TotalSpent)
	fmt.Fprintf(&b, "- Total files: %d\n", stats.TotalFiles)
	fmt.Fprintf(&b, "- Categories: %s\n", strings.Join(categoryNames(stats.Categories), ", "))

	b.WriteString("\nSPENDING BY YEAR:\n")
	years := GroupByYear(records)
	for _, year := range sortedYearsDesc(years) {
		ys := years[year]
		fmt.Fprintf(&b, "\nYear %s:\n", year)
		fmt.Fprintf(&b, "  Total: R$ %.2f\n", ys.Total)
		fmt.Fprintf(&b, "  Documents: %d\n", ys.Count)
		if len(ys.Categories) > 0 {
			b.WriteString("  Categories:\n")
			for _, ca := range sortedByAmountDesc(ys.Categories) {
				fmt.Fprintf(&b, "    - %s: R$ %.2f\n", ca.Category, ca.Amount)
			}
		}
	}

	b.WriteString("\nSPENDING BY CATEGORY (ALL TIME):\n")
	for _, cat := range sortedCategoryStats(stats.Categories) {
		cs := stats.Categories[cat]
		fmt.Fprintf(&b, "- %s: R$ %.2f (%.1f%%) - %d records\n", cat, cs.Amount, cs.Percentage, cs.Count)
	}

	b.WriteString("\nMOST RECENT RECORDS:\n")
	n := len(pool)
	if n > contextRecordLimit {
		n = contextRecordLimit
	}
	for i, rec := range pool[:n] {
		fmt.Fprintf(&b, "%d. %s - %s - %s - R$ %.2f\n",
			i+1, rec.DocumentDate, rec.Institution, rec.Category, rec.Amount)
	}
	return b.String()
}

type categoryAmount struct {
	Category models.Category
	Amount   float64
}

// sortedByAmountDesc orders category amounts by descending value, ties
// broken by category name, so the rendered context is deterministic.
func sortedByAmountDesc(m map[models.Category]float64) []categoryAmount {
	out := make([]categoryAmount, 0, len(m))
	for cat, amount := range m {
		out = append(out, categoryAmount{Category: cat, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Amount != out[j].Amount {
			return out[i].Amount > out[j].Amount
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func sortedCategoryStats(m map[models.Category]models.CategoryStats) []models.Category {
	cats := make([]models.Category, 0, len(m))
	for cat := range m {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		a, b := m[cats[i]], m[cats[j]]
		if a.Amount != b.Amount {
			return a.Amount > b.Amount
		}
		return cats[i] < cats[j]
	})
	return cats
}

func sortedYearsDesc(m map[string]models.YearlyStats) []string {
	years := make([]string, 0, len(m))
	for y := range m {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years
}

func categoryNames(m map[models.Category]models.CategoryStats) []string {
	names := make([]string, 0, len(m))
	for cat := range m {
		names = append(names, string(cat))
	}
	sort.Strings(names)
	return names
}
