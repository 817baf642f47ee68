package services

import (
	"fmt"
	"sort"
	"strings"

	"cararth-ingest/models"
	"cararth-ingest/utils"
)

// ReportService prints the run summary to the console.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Print renders per-source results, the aggregate totals, and price
// statistics over the certified listings stored this run.
func (s *ReportService) Print(report *models.RunReport, certified []*models.Listing) {
	sep := strings.Repeat("═", 58)
	thin := strings.Repeat("─", 58)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🚗 CARARTH INGESTION RUN %s\033[0m\n", report.RunID)
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Per-source results\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for _, src := range report.Sources {
		fmt.Printf("  %-24s found \033[1m%3d\033[0m | certified \033[1;32m%3d\033[0m | rejected \033[1;31m%3d\033[0m | errors %d\n",
			truncate(src.Source, 24), src.TotalFound, src.Certified, src.Rejected, len(src.Errors))
		for _, e := range src.Errors {
			fmt.Printf("    \033[31m✗\033[0m %s\n", truncate(e, 76))
		}
	}
	fmt.Println()

	fmt.Printf("\033[1;33m  Totals\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Listings found         : \033[1m%d\033[0m\n", report.TotalFound())
	fmt.Printf("  Authenticated listings : \033[1;32m%d\033[0m\n", report.TotalCertified())
	fmt.Printf("  Processing errors      : \033[1;31m%d\033[0m\n", report.TotalErrors())
	fmt.Printf("  Duration               : %v\n", report.FinishedAt.Sub(report.StartedAt).Round(1e6))
	fmt.Println()

	s.printPriceStats(certified, thin)

	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)
}

func (s *ReportService) printPriceStats(certified []*models.Listing, thin string) {
	fmt.Printf("\033[1;33m  Certified price statistics\033[0m\n")
	fmt.Printf("  %s\n", thin)

	var priced []*models.Listing
	for _, l := range certified {
		if l.Price > 0 {
			priced = append(priced, l)
		}
	}
	if len(priced) == 0 {
		fmt.Printf("  No price data available\n\n")
		return
	}

	min, max := priced[0].Price, priced[0].Price
	total := 0
	mostExpensive := priced[0]
	for _, l := range priced {
		total += l.Price
		if l.Price < min {
			min = l.Price
		}
		if l.Price > max {
			max = l.Price
			mostExpensive = l
		}
	}

	fmt.Printf("  Average price : \033[1;32m₹%d\033[0m\n", total/len(priced))
	fmt.Printf("  Minimum price : \033[1;32m₹%d\033[0m\n", min)
	fmt.Printf("  Maximum price : \033[1;32m₹%d\033[0m\n", max)
	if mostExpensive != nil {
		fmt.Printf("  Top listing   : %s (%s)\n",
			truncate(mostExpensive.Title, 40), mostExpensive.Source)
	}
	fmt.Println()

	byBrand := make(map[string]int)
	for _, l := range certified {
		byBrand[l.Brand]++
	}
	type brandCount struct {
		brand string
		count int
	}
	var brands []brandCount
	for b, c := range byBrand {
		brands = append(brands, brandCount{b, c})
	}
	sort.Slice(brands, func(i, j int) bool { return brands[i].count > brands[j].count })
	for _, bc := range brands {
		bar := strings.Repeat("█", bc.count)
		fmt.Printf("  %-24s %s (%d)\n", truncate(bc.brand, 22), bar, bc.count)
	}
	fmt.Println()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
