package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/grez-lucas/numericable-scraper/internal/logging"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider"
	"github.com/shopspring/decimal"
)

const OperationDateLayout = "2006-01-02"

// operationRow maps the bank export columns.
type operationRow struct {
	ID       string `csv:"id"`
	Date     string `csv:"date"`
	Label    string `csv:"label"`
	Amount   string `csv:"amount"`
	Currency string `csv:"currency"`
}

// LinkRecord is one row of the links file.
type LinkRecord struct {
	BillDate        string `csv:"bill_date"`
	BillAmount      string `csv:"bill_amount"`
	BillURL         string `csv:"bill_url"`
	OperationID     string `csv:"operation_id"`
	OperationDate   string `csv:"operation_date"`
	OperationLabel  string `csv:"operation_label"`
	OperationAmount string `csv:"operation_amount"`
	LinkedAt        string `csv:"linked_at"`
}

// LoadOperations reads a bank operations CSV export.
func LoadOperations(path string) ([]Operation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening operations file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var rows []operationRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("error parsing operations file: %w", err)
	}

	ops := make([]Operation, 0, len(rows))
	for i, row := range rows {
		op, err := row.toOperation()
		if err != nil {
			return nil, fmt.Errorf("operations file %s, row %d: %w", path, i+1, err)
		}
		ops = append(ops, op)
	}

	return ops, nil
}

func (r operationRow) toOperation() (Operation, error) {
	date, err := time.Parse(OperationDateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return Operation{}, fmt.Errorf("invalid date %q: %w", r.Date, err)
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.Amount))
	if err != nil {
		return Operation{}, fmt.Errorf("invalid amount %q: %w", r.Amount, err)
	}

	return Operation{
		ID:       strings.TrimSpace(r.ID),
		Date:     date,
		Label:    r.Label,
		Amount:   amount,
		Currency: strings.TrimSpace(r.Currency),
	}, nil
}

// CSVLinker matches bills against operations loaded from a CSV export and
// appends every match to a links CSV. An operation is linked at most once
// per linker.
type CSVLinker struct {
	operations []Operation
	linked     map[int]bool
	linksFile  string
	log        logging.Logger
	now        func() time.Time
}

type LinkerOption func(*CSVLinker)

func WithLinkerLogger(l logging.Logger) LinkerOption {
	return func(c *CSVLinker) { c.log = l }
}

// WithClock overrides the time source used for LinkedAt.
func WithClock(now func() time.Time) LinkerOption {
	return func(c *CSVLinker) { c.now = now }
}

// NewCSVLinker loads operationsFile. linksFile may be empty, in which case
// matches are only logged.
func NewCSVLinker(operationsFile, linksFile string, opts ...LinkerOption) (*CSVLinker, error) {
	ops, err := LoadOperations(operationsFile)
	if err != nil {
		return nil, err
	}

	l := NewMemoryLinker(ops, linksFile, opts...)
	l.log.Info("Loaded bank operations",
		logging.F(logging.FieldFile, operationsFile),
		logging.F(logging.FieldCount, len(ops)),
	)
	return l, nil
}

// NewMemoryLinker builds a linker over operations already in memory.
func NewMemoryLinker(ops []Operation, linksFile string, opts ...LinkerOption) *CSVLinker {
	l := &CSVLinker{
		operations: ops,
		linked:     make(map[int]bool),
		linksFile:  linksFile,
		log:        logging.GetLogger(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LinkBill links bill to its best matching operation. The selector is
// reserved and ignored. Finding no match is not an error.
func (c *CSVLinker) LinkBill(ctx context.Context, bill provider.Bill, _ string, policy Policy) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := c.log.WithFields(
		logging.F(logging.FieldBillDate, bill.Date.Format(OperationDateLayout)),
		logging.F(logging.FieldAmount, bill.Amount.String()),
	)

	i := FindMatch(bill, c.operations, policy, func(i int) bool {
		return c.linked[i]
	})
	if i < 0 {
		log.Info("no matching bank operation")
		return nil
	}
	op := c.operations[i]

	link := Link{Bill: bill, Operation: op, LinkedAt: c.now()}
	if err := c.appendLink(link); err != nil {
		return fmt.Errorf("record link for operation %s: %w", op.ID, err)
	}
	c.linked[i] = true

	log.Info("bill linked to bank operation", logging.F(logging.FieldOperationID, op.ID))
	return nil
}

// Linked returns the IDs of operations linked so far.
func (c *CSVLinker) Linked() []string {
	ids := make([]string, 0, len(c.linked))
	for i, op := range c.operations {
		if c.linked[i] {
			ids = append(ids, op.ID)
		}
	}
	return ids
}

func (c *CSVLinker) appendLink(link Link) error {
	if c.linksFile == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(c.linksFile), 0o750); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	writeHeader := false
	if info, err := os.Stat(c.linksFile); errors.Is(err, os.ErrNotExist) || (err == nil && info.Size() == 0) {
		writeHeader = true
	}

	file, err := os.OpenFile(c.linksFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("error opening links file: %w", err)
	}
	defer func() { _ = file.Close() }()

	rows := []LinkRecord{{
		BillDate:        link.Bill.Date.Format(OperationDateLayout),
		BillAmount:      link.Bill.Amount.StringFixed(2),
		BillURL:         link.Bill.PdfURL,
		OperationID:     link.Operation.ID,
		OperationDate:   link.Operation.Date.Format(OperationDateLayout),
		OperationLabel:  link.Operation.Label,
		OperationAmount: link.Operation.Amount.StringFixed(2),
		LinkedAt:        link.LinkedAt.UTC().Format(time.RFC3339),
	}}

	if writeHeader {
		err = gocsv.Marshal(rows, file)
	} else {
		err = gocsv.MarshalWithoutHeaders(rows, file)
	}
	if err != nil {
		return fmt.Errorf("error writing links file: %w", err)
	}
	return nil
}

// LoadLinks reads back a links file written by CSVLinker.
func LoadLinks(path string) ([]LinkRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening links file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var rows []LinkRecord
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("error parsing links file: %w", err)
	}
	return rows, nil
}

// NopLinker accepts every bill without linking anything. It stands in when
// no operations export is configured.
type NopLinker struct {
	Log logging.Logger
}

func (n NopLinker) LinkBill(_ context.Context, bill provider.Bill, _ string, _ Policy) error {
	if n.Log != nil {
		n.Log.Debug("bank linking disabled", logging.F(logging.FieldBillDate, bill.Date.Format(OperationDateLayout)))
	}
	return nil
}
