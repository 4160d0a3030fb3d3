package reconcile

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/grez-lucas/numericable-scraper/internal/logging"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var numericablePolicy = Policy{
	MinDateDelta: 1,
	MaxDateDelta: 1,
	AmountDelta:  decimal.RequireFromString("0.1"),
	Identifiers:  []string{"numericable"},
}

func day(d int) time.Time {
	return time.Date(2021, time.March, d, 0, 0, 0, 0, time.UTC)
}

func testBill() provider.Bill {
	return provider.Bill{
		Date:   day(10),
		Amount: decimal.RequireFromString("45.67"),
		PdfURL: "https://moncompte.numericable.fr/pdf/a.pdf",
	}
}

func op(id string, d int, label, amount string) Operation {
	return Operation{
		ID:       id,
		Date:     day(d),
		Label:    label,
		Amount:   decimal.RequireFromString(amount),
		Currency: "EUR",
	}
}

func TestFindMatch(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Operation
		policy *Policy
		want   int
	}{
		{
			name: "exact match",
			ops:  []Operation{op("1", 10, "PRLV NUMERICABLE", "-45.67")},
			want: 0,
		},
		{
			name: "one day before",
			ops:  []Operation{op("1", 9, "PRLV NUMERICABLE", "-45.67")},
			want: 0,
		},
		{
			name: "one day after",
			ops:  []Operation{op("1", 11, "PRLV NUMERICABLE", "-45.67")},
			want: 0,
		},
		{
			name: "two days after",
			ops:  []Operation{op("1", 12, "PRLV NUMERICABLE", "-45.67")},
			want: -1,
		},
		{
			name: "amount within tolerance",
			ops:  []Operation{op("1", 10, "PRLV NUMERICABLE", "-45.60")},
			want: 0,
		},
		{
			name: "amount on tolerance edge",
			ops:  []Operation{op("1", 10, "PRLV NUMERICABLE", "-45.77")},
			want: 0,
		},
		{
			name: "amount beyond tolerance",
			ops:  []Operation{op("1", 10, "PRLV NUMERICABLE", "-45.78")},
			want: -1,
		},
		{
			name: "credit is not a payment",
			ops:  []Operation{op("1", 10, "VIR NUMERICABLE", "45.67")},
			want: -1,
		},
		{
			name: "identifier is case insensitive",
			ops:  []Operation{op("1", 10, "prlv sepa Numericable SFR", "-45.67")},
			want: 0,
		},
		{
			name: "other provider",
			ops:  []Operation{op("1", 10, "PRLV ORANGE", "-45.67")},
			want: -1,
		},
		{
			name: "closest amount wins",
			ops: []Operation{
				op("1", 10, "PRLV NUMERICABLE", "-45.60"),
				op("2", 11, "PRLV NUMERICABLE", "-45.67"),
			},
			want: 1,
		},
		{
			name: "closest date breaks ties",
			ops: []Operation{
				op("1", 9, "PRLV NUMERICABLE", "-45.67"),
				op("2", 10, "PRLV NUMERICABLE", "-45.67"),
			},
			want: 1,
		},
		{
			name:   "no identifiers matches any label",
			ops:    []Operation{op("1", 10, "CARTE 1234", "-45.67")},
			policy: &Policy{MinDateDelta: 1, MaxDateDelta: 1, AmountDelta: decimal.RequireFromString("0.1")},
			want:   0,
		},
		{
			name: "no operations",
			ops:  nil,
			want: -1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			policy := numericablePolicy
			if tc.policy != nil {
				policy = *tc.policy
			}

			got := FindMatch(testBill(), tc.ops, policy, nil)

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFindMatch_Skip(t *testing.T) {
	ops := []Operation{
		op("1", 10, "PRLV NUMERICABLE", "-45.67"),
		op("2", 11, "PRLV NUMERICABLE", "-45.67"),
	}

	got := FindMatch(testBill(), ops, numericablePolicy, func(i int) bool { return i == 0 })

	assert.Equal(t, 1, got)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const operationsCSV = `id,date,label,amount,currency
op-1,2021-03-09,PRLV SEPA NUMERICABLE,-45.67,EUR
op-2,2021-03-10,CARTE BOULANGERIE,-4.20,EUR
op-3,2021-02-10,PRLV SEPA NUMERICABLE,-39.99,EUR
`

func TestLoadOperations(t *testing.T) {
	path := writeFile(t, t.TempDir(), "ops.csv", operationsCSV)

	ops, err := LoadOperations(path)

	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, "op-1", ops[0].ID)
	assert.Equal(t, day(9), ops[0].Date)
	assert.Equal(t, "PRLV SEPA NUMERICABLE", ops[0].Label)
	assert.True(t, decimal.RequireFromString("-45.67").Equal(ops[0].Amount))
	assert.Equal(t, "EUR", ops[0].Currency)
}

func TestLoadOperations_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "bad date",
			content: "id,date,label,amount,currency\nop-1,09/03/2021,X,-1,EUR\n",
			wantErr: "invalid date",
		},
		{
			name:    "bad amount",
			content: "id,date,label,amount,currency\nop-1,2021-03-09,X,abc,EUR\n",
			wantErr: "invalid amount",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.name+".csv", tc.content)

			_, err := LoadOperations(path)

			assert.ErrorContains(t, err, tc.wantErr)
		})
	}

	_, err := LoadOperations(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestCSVLinker_LinkBill(t *testing.T) {
	dir := t.TempDir()
	opsPath := writeFile(t, dir, "ops.csv", operationsCSV)
	linksPath := filepath.Join(dir, "out", "links.csv")
	linkedAt := time.Date(2021, time.March, 12, 8, 0, 0, 0, time.UTC)
	logger := logging.NewMockLogger()

	linker, err := NewCSVLinker(opsPath, linksPath,
		WithLinkerLogger(logger),
		WithClock(func() time.Time { return linkedAt }),
	)
	require.NoError(t, err)

	march := testBill()
	february := provider.Bill{
		Date:   time.Date(2021, time.February, 10, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("39.99"),
		PdfURL: "https://moncompte.numericable.fr/pdf/b.pdf",
	}

	require.NoError(t, linker.LinkBill(context.Background(), march, "", numericablePolicy))
	require.NoError(t, linker.LinkBill(context.Background(), february, "", numericablePolicy))

	assert.Equal(t, []string{"op-1", "op-3"}, linker.Linked())

	links, err := LoadLinks(linksPath)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, LinkRecord{
		BillDate:        "2021-03-10",
		BillAmount:      "45.67",
		BillURL:         "https://moncompte.numericable.fr/pdf/a.pdf",
		OperationID:     "op-1",
		OperationDate:   "2021-03-09",
		OperationLabel:  "PRLV SEPA NUMERICABLE",
		OperationAmount: "-45.67",
		LinkedAt:        "2021-03-12T08:00:00Z",
	}, links[0])
	assert.Equal(t, "op-3", links[1].OperationID)
	assert.True(t, logger.HasEntry("INFO", "bill linked to bank operation"))
}

func TestCSVLinker_OperationLinkedOnce(t *testing.T) {
	ops := []Operation{op("1", 10, "PRLV NUMERICABLE", "-45.67")}
	linker := NewMemoryLinker(ops, "", WithLinkerLogger(logging.NewMockLogger()))

	require.NoError(t, linker.LinkBill(context.Background(), testBill(), "", numericablePolicy))
	require.NoError(t, linker.LinkBill(context.Background(), testBill(), "", numericablePolicy))

	assert.Equal(t, []string{"1"}, linker.Linked())
}

func TestCSVLinker_NoMatchIsNotAnError(t *testing.T) {
	logger := logging.NewMockLogger()
	linker := NewMemoryLinker(nil, "", WithLinkerLogger(logger))

	err := linker.LinkBill(context.Background(), testBill(), "", numericablePolicy)

	assert.NoError(t, err)
	assert.Empty(t, linker.Linked())
	assert.True(t, logger.HasEntry("INFO", "no matching bank operation"))
}

func TestCSVLinker_CancelledContext(t *testing.T) {
	linker := NewMemoryLinker(nil, "", WithLinkerLogger(logging.NewMockLogger()))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := linker.LinkBill(ctx, testBill(), "", numericablePolicy)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCSVLinker_UnwritableLinksFile(t *testing.T) {
	dir := t.TempDir()
	// A directory where the links file should be
	linksPath := filepath.Join(dir, "links.csv")
	require.NoError(t, os.Mkdir(linksPath, 0o750))

	ops := []Operation{op("1", 10, "PRLV NUMERICABLE", "-45.67")}
	linker := NewMemoryLinker(ops, linksPath, WithLinkerLogger(logging.NewMockLogger()))

	err := linker.LinkBill(context.Background(), testBill(), "", numericablePolicy)

	assert.Error(t, err)
	assert.Empty(t, linker.Linked())
}

func TestNopLinker(t *testing.T) {
	logger := logging.NewMockLogger()

	err := NopLinker{Log: logger}.LinkBill(context.Background(), testBill(), "", numericablePolicy)

	assert.NoError(t, err)
	assert.Len(t, logger.GetEntriesByLevel("DEBUG"), 1)
}
