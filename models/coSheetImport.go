package models

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/mmdatafocus/hrcrm_backend/analysis"
	"github.com/mmdatafocus/hrcrm_backend/utils"
	"github.com/xuri/excelize/v2"
)

// importColumns maps a normalized header cell to the CoSheet field it fills.
var importColumns = map[string]string{
	"sr":               "sr",
	"srno":             "sr",
	"collegename":      "collegeName",
	"college":          "collegeName",
	"coordinatorname":  "coordinatorName",
	"coordinator":      "coordinatorName",
	"tponame":          "coordinatorName",
	"mobilenumber":     "mobileNumber",
	"mobile":           "mobileNumber",
	"phone":            "mobileNumber",
	"emailid":          "emailId",
	"email":            "emailId",
	"city":             "city",
	"state":            "state",
	"course":           "course",
	"connectedby":      "connectedBy",
	"dateofconnect":    "dateOfConnect",
	"callresponse":     "callResponse",
	"internshiptype":   "internshipType",
	"detailedresponse": "detailedResponse",
	"userid":           "userId",
}

func headerKey(cell string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(cell) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseCoSheetWorkbook reads the first sheet of an xlsx call sheet. The first row
// is the header; unknown columns and blank rows are ignored.
func ParseCoSheetWorkbook(r io.Reader) ([]*NewCoSheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, utils.NewValidationError("invalid xlsx file: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, utils.NewValidationError("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, utils.NewValidationError("No data provided")
	}

	fields := make([]string, len(rows[0]))
	known := 0
	for i, cell := range rows[0] {
		if name, ok := importColumns[headerKey(cell)]; ok {
			fields[i] = name
			known++
		}
	}
	if known == 0 {
		return nil, utils.NewValidationError("no known columns in header row")
	}

	var out []*NewCoSheet
	for _, row := range rows[1:] {
		input := &NewCoSheet{}
		filled := false
		for i, raw := range row {
			if i >= len(fields) || fields[i] == "" {
				continue
			}
			value := strings.TrimSpace(raw)
			if value == "" {
				continue
			}
			if err := setImportField(input, fields[i], value); err != nil {
				return nil, err
			}
			filled = true
		}
		if filled {
			out = append(out, input)
		}
	}
	if len(out) == 0 {
		return nil, utils.NewValidationError("No data provided")
	}
	return out, nil
}

func setImportField(input *NewCoSheet, field, value string) error {
	switch field {
	case "sr":
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return utils.NewFieldError("sr", "invalid sr %q", value)
		}
		input.CollegeDetails.Sr = utils.NilIfEmpty(int(n))
	case "userId":
		n, err := strconv.Atoi(value)
		if err != nil {
			return utils.NewFieldError("userId", "invalid userId %q", value)
		}
		input.UserId = &n
	case "collegeName":
		input.CollegeDetails.CollegeName = &value
	case "coordinatorName":
		input.CollegeDetails.CoordinatorName = &value
	case "mobileNumber":
		input.CollegeDetails.MobileNumber = &value
	case "emailId":
		input.CollegeDetails.EmailId = &value
	case "city":
		input.CollegeDetails.City = &value
	case "state":
		input.CollegeDetails.State = &value
	case "course":
		input.CollegeDetails.Course = &value
	case "connectedBy":
		input.ConnectDetails.ConnectedBy = &value
	case "dateOfConnect":
		date := importDate(value)
		input.ConnectDetails.DateOfConnect = &date
	case "callResponse":
		input.ConnectDetails.CallResponse = &value
	case "internshipType":
		input.ConnectDetails.InternshipType = &value
	case "detailedResponse":
		input.ConnectDetails.DetailedResponse = &value
	}
	return nil
}

// importDate turns an Excel serial date into YYYY-MM-DD; text passes through.
func importDate(value string) string {
	serial, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return value
	}
	return t.Format(analysis.DayLayout)
}

// ImportCoSheets parses an xlsx call sheet and creates its rows like CreateCoSheets.
func ImportCoSheets(ctx context.Context, r io.Reader, defaultUserId int) ([]RowResult[CoSheet], error) {
	inputs, err := ParseCoSheetWorkbook(r)
	if err != nil {
		return nil, err
	}
	return CreateCoSheets(ctx, inputs, defaultUserId)
}
