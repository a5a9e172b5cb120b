// Package intake turns lead spreadsheets into pipeline work.
package intake

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-refinery/internal/model"
	"github.com/sells-group/lead-refinery/internal/pipeline"
)

// Column positions of a headerless file.
const (
	colEmail = iota
	colFirst
	colLast
	colFirm
	colTitle
	colWebsite
	numCols
)

// headerAliases maps a normalized header to its column.
var headerAliases = map[string]int{
	"email":          colEmail,
	"emailaddress":   colEmail,
	"workemail":      colEmail,
	"firstname":      colFirst,
	"first":          colFirst,
	"givenname":      colFirst,
	"lastname":       colLast,
	"last":           colLast,
	"surname":        colLast,
	"familyname":     colLast,
	"firmname":       colFirm,
	"firm":           colFirm,
	"company":        colFirm,
	"companyname":    colFirm,
	"organization":   colFirm,
	"organisation":   colFirm,
	"accountname":    colFirm,
	"declaredtitle":  colTitle,
	"title":          colTitle,
	"jobtitle":       colTitle,
	"website":        colWebsite,
	"companywebsite": colWebsite,
	"domain":         colWebsite,
	"url":            colWebsite,
}

// Result is a parsed lead file.
type Result struct {
	Leads   []pipeline.Lead
	Rows    int
	Dropped int
}

// LoadFile reads a CSV or XLSX lead file, chosen by extension.
func LoadFile(ctx context.Context, path string) (*Result, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = ReadXLSX(path)
	case ".csv", ".txt":
		f, openErr := os.Open(path)
		if openErr != nil {
			return nil, eris.Wrapf(openErr, "intake: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err = ReadCSV(ctx, f)
	default:
		return nil, eris.Errorf("intake: unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	res := Parse(rows)
	zap.L().Info("intake: file parsed",
		zap.String("path", path),
		zap.Int("rows", res.Rows),
		zap.Int("leads", len(res.Leads)),
		zap.Int("dropped", res.Dropped),
	)
	return res, nil
}

// Parse maps rows onto leads. A first row naming an email column is taken
// as the header; otherwise columns are positional in the template order
// Email, First Name, Last Name, Firm Name, Declared Title, Website. Rows
// missing email, first name or firm are dropped.
func Parse(rows [][]string) *Result {
	res := &Result{Leads: []pipeline.Lead{}}
	if len(rows) == 0 {
		return res
	}

	cols, ok := headerColumns(rows[0])
	if ok {
		rows = rows[1:]
	} else {
		cols = [numCols]int{colEmail, colFirst, colLast, colFirm, colTitle, colWebsite}
	}

	for _, row := range rows {
		if blank(row) {
			continue
		}
		res.Rows++
		id := model.LeadIdentity{
			Email:         cell(row, cols[colEmail]),
			FirstName:     cell(row, cols[colFirst]),
			LastName:      cell(row, cols[colLast]),
			FirmName:      cell(row, cols[colFirm]),
			DeclaredTitle: cell(row, cols[colTitle]),
			Website:       cell(row, cols[colWebsite]),
		}
		if id.Email == "" || id.FirstName == "" || id.FirmName == "" {
			res.Dropped++
			continue
		}
		res.Leads = append(res.Leads, pipeline.Lead{RawLeadID: uuid.NewString(), Identity: id})
	}
	return res
}

// headerColumns resolves column indexes from a header row. Columns the
// header does not name are -1.
func headerColumns(header []string) ([numCols]int, bool) {
	var cols [numCols]int
	for i := range cols {
		cols[i] = -1
	}
	for i, h := range header {
		c, ok := headerAliases[normalizeHeader(h)]
		if ok && cols[c] == -1 {
			cols[c] = i
		}
	}
	return cols, cols[colEmail] != -1
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(h)))
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
