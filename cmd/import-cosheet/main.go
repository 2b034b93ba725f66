// import-cosheet loads an xlsx call sheet into the co_sheets table.
//
//	go run ./cmd/import-cosheet -file sheet.xlsx -user-id 3
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mmdatafocus/hrcrm_backend/config"
	"github.com/mmdatafocus/hrcrm_backend/models"
	"github.com/mmdatafocus/hrcrm_backend/utils"
)

func main() {
	path := flag.String("file", "", "xlsx file to import (first sheet, header row first)")
	userID := flag.Int("user-id", 0, "Owner for rows without a userId column")
	flag.Parse()

	if *path == "" || *userID <= 0 {
		flag.Usage()
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	f, err := os.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *path, err)
		os.Exit(1)
	}
	defer f.Close()

	ctx := utils.SetUserIdInContext(context.Background(), *userID)
	ctx = utils.SetUserNameInContext(ctx, "ImportCoSheet")

	results, err := models.ImportCoSheets(ctx, f, *userID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "import failed: %v\n", err)
		os.Exit(1)
	}

	ok := 0
	for i, r := range results {
		if r.Success {
			ok++
			continue
		}
		fmt.Fprintf(os.Stderr, "row %d: %s\n", i+2, r.Error)
	}
	fmt.Printf("imported %d of %d rows\n", ok, len(results))
	if ok < len(results) {
		os.Exit(1)
	}
}
