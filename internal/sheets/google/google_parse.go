package google

import (
	"fmt"
	"strconv"
	"strings"

	"budgetboard/internal/core"
	"budgetboard/internal/crossfilter"
)

var expenditureHeaders = []string{"Department", "Branch", "Program", "Fund Type", "Budget Year", "Budget"}

// parseExpenditures converts a values matrix (as returned by the Sheets API)
// into records. Blank rows are skipped. A row whose budget does not parse is
// reported as a *crossfilter.MalformedDataError indexed by record position.
func parseExpenditures(values [][]interface{}) ([]core.Expenditure, error) {
	if len(values) == 0 {
		return nil, nil
	}
	headers := toStrings(values[0])
	cols := make([]int, len(expenditureHeaders))
	var missing []string
	for i, h := range expenditureHeaders {
		cols[i] = indexOf(headers, h)
		if cols[i] == -1 {
			missing = append(missing, h)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("unexpected expenditure header: missing %s; got headers=%v", strings.Join(missing, ","), headers)
	}

	var out []core.Expenditure
	for _, raw := range values[1:] {
		row := toStrings(raw)
		if blank(row) {
			continue
		}
		e := core.Expenditure{
			Department: safeGet(row, cols[0]),
			Branch:     safeGet(row, cols[1]),
			Program:    safeGet(row, cols[2]),
			FundType:   safeGet(row, cols[3]),
			BudgetYear: safeGet(row, cols[4]),
		}
		budget, err := core.ParseBudget(safeGet(row, cols[5]))
		if err != nil {
			return nil, &crossfilter.MalformedDataError{Index: len(out), Err: err}
		}
		e.Budget = budget
		out = append(out, e)
	}
	return out, nil
}

// toStrings renders cells the way they read in the sheet. Unformatted
// numbers arrive as float64 and must not pick up an exponent.
func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		switch x := v.(type) {
		case string:
			out[i] = strings.TrimSpace(x)
		case float64:
			out[i] = strconv.FormatFloat(x, 'f', -1, 64)
		case nil:
		default:
			out[i] = strings.TrimSpace(fmt.Sprint(x))
		}
	}
	return out
}

func blank(row []string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(strings.TrimSpace(v), strings.TrimSpace(target)) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
