package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/models/reports"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

func main() {
	userID := flag.Int("user-id", 0, "Optional: export only one user. If 0, exports every active user.")
	from := flag.String("from", "", "Optional: start date (YYYY-MM-DD). Defaults to today in APP_TIMEZONE.")
	to := flag.String("to", "", "Optional: end date (YYYY-MM-DD). Defaults to from.")
	month := flag.String("month", "", "Optional: whole month (YYYY-MM); overrides from/to.")
	outDir := flag.String("out", ".", "Directory the xlsx files are written to")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}
	if _, err := config.LoadSettings(); err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(1)
	}

	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUserNameInContext(ctx, "ExportDailyAnalysis")

	var userIDs []int
	if *userID > 0 {
		userIDs = []int{*userID}
	} else {
		users, err := models.GetAllUsers(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to list users: %v\n", err)
			os.Exit(1)
		}
		for _, u := range users {
			if u.IsActive {
				userIDs = append(userIDs, u.ID)
			}
		}
	}
	if len(userIDs) == 0 {
		fmt.Fprintln(os.Stderr, "no users found to export")
		return
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *outDir, err)
		os.Exit(1)
	}

	req := analysis.RangeRequest{
		FromDate: strings.TrimSpace(*from),
		ToDate:   strings.TrimSpace(*to),
		Month:    strings.TrimSpace(*month),
	}
	failed := 0
	for _, id := range userIDs {
		resp, err := reports.GetDailyAnalysis(ctx, id, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "user %d: %v\n", id, err)
			failed++
			continue
		}
		name := filepath.Join(*outDir, fmt.Sprintf("daily-analysis-%d-%s-%s.xlsx", id, resp.FromDate, resp.ToDate))
		f, err := os.Create(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "user %d: %v\n", id, err)
			failed++
			continue
		}
		err = reports.ExportDailyAnalysisExcel(f, resp)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "user %d: %v\n", id, err)
			failed++
			continue
		}
		fmt.Printf("user %d: wrote %s (%d days)\n", id, name, len(resp.Dates))
	}
	if failed > 0 {
		os.Exit(1)
	}
}
