package service

import (
	"math"
	"strings"
	"unicode/utf8"

	"gastoscan/internal/models"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// truncate caps a string at n characters, not bytes, so a cut never lands
// inside a multi-byte rune.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// CalculateStatistics reduces a record set into a grand total and
// per-category breakdowns. Pure and deterministic: calling it twice on the
// same set yields identical output, and values never depend on iteration
// order. Percentages are zero when the total is zero.
func CalculateStatistics(records []models.ExpenseRecord) models.Statistics {
	totals := make(map[models.Category]float64)
	counts := make(map[models.Category]int)
	var total float64
	for _, rec := range records {
		total += rec.Amount
		totals[rec.Category] += rec.Amount
		counts[rec.Category]++
	}

	categories := make(map[models.Category]models.CategoryStats, len(totals))
	for cat, amount := range totals {
		var pct float64
		if total > 0 {
			pct = round2(amount / total * 100)
		}
		categories[cat] = models.CategoryStats{
			Amount:     round2(amount),
			Percentage: pct,
			Count:      counts[cat],
		}
	}

	return models.Statistics{
		TotalSpent:     round2(total),
		TotalFiles:     len(records),
		ProcessedFiles: len(records),
		Categories:     categories,
	}
}

// BatchStatistics computes statistics over a processing batch. Failed files
// count toward the file total but contribute no amounts.
func BatchStatistics(results []models.FileResult) models.Statistics {
	var records []models.ExpenseRecord
	for _, res := range results {
		if res.Success && res.Analysis != nil {
			records = append(records, res.Record())
		}
	}
	stats := CalculateStatistics(records)
	stats.TotalFiles = len(results)
	stats.ProcessedFiles = len(records)
	return stats
}

// GroupByYear buckets records by the year component of their document date.
// A record whose date does not split into exactly three "/" parts is
// excluded from yearly grouping only; it still counts in global statistics.
func GroupByYear(records []models.ExpenseRecord) map[string]models.YearlyStats {
	years := make(map[string]models.YearlyStats)
	for _, rec := range records {
		year, ok := documentYear(rec.DocumentDate)
		if !ok {
			continue
		}
		ys := years[year]
		if ys.Categories == nil {
			ys.Categories = make(map[models.Category]float64)
		}
		ys.Total += rec.Amount
		ys.Count++
		ys.Categories[rec.Category] += rec.Amount
		years[year] = ys
	}
	return years
}

// documentYear extracts the year from a dd/mm/yyyy date string. It reports
// false for anything that does not carry exactly three non-empty components,
// including the "N/A" sentinel.
func documentYear(date string) (string, bool) {
	parts := strings.Split(date, "/")
	if len(parts) != 3 {
		return "", false
	}
	for _, part := range parts {
		if part == "" {
			return "", false
		}
	}
	return parts[2], true
}
