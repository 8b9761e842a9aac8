/*
Package importer loads policies from spreadsheets.

PURPOSE:
  Back-office staff keep policy registers in Excel. ImportXLSX reads the
  first sheet of a workbook and creates one policy per data row through the
  policy service, so every imported row gets the same resolve-or-create,
  plate and audit behaviour as a policy entered by hand.

HEADERS:
  The first non-empty row is the header. Columns are matched by name,
  ignoring case and extra spaces; unknown columns are ignored. Accepted
  names per field are listed in headerAliases.

VALUES:
  Amounts:  "1,200 + 300" sums to 1500. Unparsable amounts import as empty.
  Dates:    YYYY-MM-DD, D/M/YYYY, or an Excel serial date number.
  Insurer:  an "Insurer Company" of "AYA - Yangon Branch" keeps only the
            company part.
  Plates:   separated by commas, semicolons or line breaks.

FAILURES:
  A failed row is reported with its sheet row number and never stops the
  rows after it. Only an unreadable workbook fails the whole import.
*/
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/warp/brokerdesk/brokerage"
)

// ErrNoHeader is returned when the sheet has no recognisable header row.
var ErrNoHeader = errors.New("no policy header row found")

// PolicyCreator creates one policy. *brokerage.PolicyService satisfies it.
type PolicyCreator interface {
	Create(ctx context.Context, in brokerage.PolicyInput, actor brokerage.Actor) (brokerage.WriteResult, error)
}

// Observer receives the totals of each import. May be nil.
type Observer interface {
	ObserveImport(imported, failed int)
}

// RowError describes a row that could not be imported.
type RowError struct {
	Row int    `json:"row"`
	Err string `json:"error"`
}

// Report summarises an import.
type Report struct {
	Imported     int        `json:"imported"`
	PolicyIDs    []int64    `json:"policy_ids"`
	AuditWarning int        `json:"audit_warnings"`
	Failed       []RowError `json:"failed"`
}

// Importer creates policies from workbook rows.
type Importer struct {
	policies PolicyCreator
	logger   logrus.FieldLogger
	observer Observer
}

// New creates an importer writing through policies.
func New(policies PolicyCreator, logger logrus.FieldLogger, observer Observer) *Importer {
	return &Importer{policies: policies, logger: logger, observer: observer}
}

type field int

const (
	fieldPolicyNumber field = iota
	fieldInsuredName
	fieldInsurerName
	fieldInsurerCompany
	fieldPolicyType
	fieldExpireDate
	fieldPremium
	fieldCommission
	fieldPlates
)

var headerAliases = map[string]field{
	"POLICY NUMBER":            fieldPolicyNumber,
	"POLICY NO":                fieldPolicyNumber,
	"INSURED NAME":             fieldInsuredName,
	"INSURED PERSON (COMPANY)": fieldInsuredName,
	"INSURER NAME":             fieldInsurerName,
	"INSURER COMPANY":          fieldInsurerCompany,
	"POLICY TYPE":              fieldPolicyType,
	"INTEREST INSURED":         fieldPolicyType,
	"TYPE":                     fieldPolicyType,
	"EXPIRE DATE":              fieldExpireDate,
	"EXPIRY DATE":              fieldExpireDate,
	"PREMIUM":                  fieldPremium,
	"PREMIUM AMOUNT":           fieldPremium,
	"COMMISSION":               fieldCommission,
	"COMMISSION AMOUNT":        fieldCommission,
	"PLATES":                   fieldPlates,
	"PLATE NUMBER":             fieldPlates,
	"PLATE NUMBERS":            fieldPlates,
}

var spaces = regexp.MustCompile(`\s+`)

func normalizeHeader(h string) string {
	return spaces.ReplaceAllString(strings.ToUpper(strings.TrimSpace(h)), " ")
}

// ImportXLSX imports every data row of the first sheet of the workbook in r.
func (im *Importer) ImportXLSX(ctx context.Context, r io.Reader, actor brokerage.Actor) (*Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoHeader
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("unable to read sheet: %w", err)
	}

	headerAt, columns := findHeader(rows)
	if headerAt < 0 {
		return nil, ErrNoHeader
	}

	report := &Report{PolicyIDs: []int64{}, Failed: []RowError{}}
	for i := headerAt + 1; i < len(rows); i++ {
		if err := ctx.Err(); err != nil {
			im.finish(report)
			return report, err
		}
		if blankRow(rows[i]) {
			continue
		}
		sheetRow := i + 1

		in := rowInput(rows[i], columns)
		res, err := im.policies.Create(ctx, in, actor)
		if err != nil {
			report.Failed = append(report.Failed, RowError{Row: sheetRow, Err: err.Error()})
			im.logger.WithFields(logrus.Fields{
				"module": "importer",
				"row":    sheetRow,
			}).WithError(err).Warn("policy row rejected")
			continue
		}
		report.Imported++
		report.PolicyIDs = append(report.PolicyIDs, res.ID)
		if res.HasWarning() {
			report.AuditWarning++
		}
	}

	im.finish(report)
	return report, nil
}

func (im *Importer) finish(report *Report) {
	if im.observer != nil {
		im.observer.ObserveImport(report.Imported, len(report.Failed))
	}
	im.logger.WithFields(logrus.Fields{
		"module":   "importer",
		"imported": report.Imported,
		"failed":   len(report.Failed),
	}).Info("policy import finished")
}

// findHeader returns the index of the first row naming at least one known
// column, and the column index of each field.
func findHeader(rows [][]string) (int, map[field]int) {
	for i, row := range rows {
		columns := map[field]int{}
		for col, cell := range row {
			if f, ok := headerAliases[normalizeHeader(cell)]; ok {
				if _, seen := columns[f]; !seen {
					columns[f] = col
				}
			}
		}
		if len(columns) > 0 {
			return i, columns
		}
	}
	return -1, nil
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func rowInput(row []string, columns map[field]int) brokerage.PolicyInput {
	cell := func(f field) string {
		col, ok := columns[f]
		if !ok || col >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[col])
	}
	insurer := cell(fieldInsurerName)
	if insurer == "" {
		insurer = insurerCompany(cell(fieldInsurerCompany))
	}
	return brokerage.PolicyInput{
		PolicyNumber: cell(fieldPolicyNumber),
		InsuredName:  cell(fieldInsuredName),
		InsurerName:  insurer,
		PolicyType:   cell(fieldPolicyType),
		ExpireDate:   NormalizeDate(cell(fieldExpireDate)),
		Premium:      NormalizeAmount(cell(fieldPremium)),
		Commission:   NormalizeAmount(cell(fieldCommission)),
		Plates:       splitPlates(cell(fieldPlates)),
	}
}

// branchSeparators split a company from its branch. Only spaced forms count,
// so hyphenated names such as "Co-op Insurance" stay whole.
var branchSeparators = []string{" - ", " | ", " – "}

// insurerCompany drops a branch suffix such as "AYA - Mandalay".
func insurerCompany(s string) string {
	cut := len(s)
	for _, sep := range branchSeparators {
		if i := strings.Index(s, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	return strings.TrimSpace(s[:cut])
}

// NormalizeAmount turns a spreadsheet amount into a decimal string. Thousands
// separators are dropped and "a + b" terms are summed. Input that does not
// parse is returned unchanged, which the policy service stores as empty.
func NormalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	sum := decimal.Zero
	for _, term := range strings.Split(strings.ReplaceAll(s, ",", ""), "+") {
		d, err := decimal.NewFromString(strings.TrimSpace(term))
		if err != nil {
			return s
		}
		sum = sum.Add(d)
	}
	return sum.String()
}

var dateLayouts = []string{
	brokerage.DateLayout,
	"2/1/2006",
	"2-Jan-2006",
	"2 Jan 2006",
	time.RFC3339,
}

// NormalizeDate converts a spreadsheet date to YYYY-MM-DD. Day-first layouts
// are assumed for slash dates. Unrecognised input is returned unchanged so
// the row fails validation instead of importing a wrong date.
func NormalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return s
		}
		return t.Format(brokerage.DateLayout)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(brokerage.DateLayout)
		}
	}
	return s
}

func splitPlates(s string) []string {
	if s == "" {
		return nil
	}
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '\n' || r == '\r'
	})
}
