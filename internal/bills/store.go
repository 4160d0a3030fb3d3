// Package bills saves bill documents to a folder and keeps an index of what
// was already fetched.
package bills

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/grez-lucas/numericable-scraper/internal/konnector"
	"github.com/grez-lucas/numericable-scraper/internal/logging"
	"github.com/grez-lucas/numericable-scraper/internal/scraper/provider"
	"gopkg.in/yaml.v3"
)

const (
	IndexFileName = "bills.yaml"
	VendorSlug    = "numericable"

	fileDateLayout = "2006-01-02"
)

// Downloader fetches a bill document through the authenticated session.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// IndexEntry records one saved bill.
type IndexEntry struct {
	Date    string    `yaml:"date"`
	Amount  string    `yaml:"amount"`
	PdfURL  string    `yaml:"pdf_url"`
	File    string    `yaml:"file"`
	Pages   int       `yaml:"pages"`
	SavedAt time.Time `yaml:"saved_at"`
}

// Index is the content of the index file.
type Index struct {
	Vendor string       `yaml:"vendor"`
	Bills  []IndexEntry `yaml:"bills"`
}

func (idx *Index) has(pdfURL string) bool {
	for _, e := range idx.Bills {
		if e.PdfURL == pdfURL {
			return true
		}
	}
	return false
}

func (idx *Index) hasFile(name string) bool {
	for _, e := range idx.Bills {
		if e.File == name {
			return true
		}
	}
	return false
}

// Store is the default BillSaver: it downloads each new bill, checks that it
// is a PDF and writes it to the run folder.
type Store struct {
	downloader Downloader
	folder     string
	log        logging.Logger
	now        func() time.Time
	validate   func([]byte) (int, error)
}

var _ konnector.BillSaver = (*Store)(nil)

type StoreOption func(*Store)

// WithFolder sets the folder used when the run parameters carry none.
func WithFolder(folder string) StoreOption {
	return func(s *Store) { s.folder = folder }
}

func WithStoreLogger(l logging.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

func NewStore(downloader Downloader, opts ...StoreOption) *Store {
	s := &Store{
		downloader: downloader,
		log:        logging.GetLogger(),
		now:        time.Now,
		validate:   ValidatePDF,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FileName is the name a bill is saved under,
// e.g. 2021-03-01_numericable_45.67EUR.pdf.
func FileName(bill provider.Bill) string {
	return fmt.Sprintf("%s_%s_%sEUR.pdf", bill.Date.Format(fileDateLayout), VendorSlug, bill.Amount.StringFixed(2))
}

// uniqueFileName returns FileName(bill), suffixed with _2, _3... when another
// bill of the same date and amount already uses that name.
func uniqueFileName(folder string, idx *Index, bill provider.Bill) string {
	base := strings.TrimSuffix(FileName(bill), ".pdf")
	name := base + ".pdf"
	for n := 2; idx.hasFile(name) || fileExists(filepath.Join(folder, name)); n++ {
		name = fmt.Sprintf("%s_%d.pdf", base, n)
	}
	return name
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SaveBills implements konnector.BillSaver.
func (s *Store) SaveBills(ctx context.Context, bills []provider.Bill, params konnector.Params) error {
	_, err := s.Save(ctx, bills, params.Folder)
	return err
}

// Save writes every bill not yet in the folder index and returns the index
// after the run. Bills whose download is not a PDF are skipped with a
// warning; a failed download aborts.
func (s *Store) Save(ctx context.Context, bills []provider.Bill, folder string) (*Index, error) {
	if folder == "" {
		folder = s.folder
	}
	if folder == "" {
		return nil, errors.New("no folder to save bills to")
	}

	if err := os.MkdirAll(folder, 0o750); err != nil {
		return nil, fmt.Errorf("error creating bills folder: %w", err)
	}

	idx, err := LoadIndex(folder)
	if err != nil {
		return nil, err
	}

	log := s.log.WithField(logging.FieldFile, folder)
	saved := 0

	for _, bill := range bills {
		if err := ctx.Err(); err != nil {
			return idx, err
		}

		if idx.has(bill.PdfURL) {
			log.Debug("bill already saved", logging.F(logging.FieldBillDate, bill.Date.Format(fileDateLayout)))
			continue
		}

		data, err := s.downloader.Download(ctx, bill.PdfURL)
		if err != nil {
			return idx, fmt.Errorf("download bill of %s: %w", bill.Date.Format(fileDateLayout), err)
		}

		pages, err := s.validate(data)
		if err != nil {
			log.WithError(err).Warn("skipping bill that is not a PDF",
				logging.F(logging.FieldBillDate, bill.Date.Format(fileDateLayout)),
			)
			continue
		}

		name := uniqueFileName(folder, idx, bill)
		if err := os.WriteFile(filepath.Join(folder, name), data, 0o600); err != nil {
			return idx, fmt.Errorf("error writing bill file: %w", err)
		}

		idx.Bills = append(idx.Bills, IndexEntry{
			Date:    bill.Date.Format(fileDateLayout),
			Amount:  bill.Amount.StringFixed(2),
			PdfURL:  bill.PdfURL,
			File:    name,
			Pages:   pages,
			SavedAt: s.now().UTC(),
		})
		if err := WriteIndex(folder, idx); err != nil {
			return idx, err
		}
		saved++
	}

	log.Info(fmt.Sprintf("%d new bill(s) saved", saved), logging.F(logging.FieldCount, saved))
	return idx, nil
}

// LoadIndex reads the folder index. A missing index is an empty one.
func LoadIndex(folder string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(folder, IndexFileName))
	if errors.Is(err, os.ErrNotExist) {
		return &Index{Vendor: VendorSlug}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading bills index: %w", err)
	}

	var idx Index
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("error parsing bills index: %w", err)
	}
	if idx.Vendor == "" {
		idx.Vendor = VendorSlug
	}
	return &idx, nil
}

// WriteIndex replaces the folder index.
func WriteIndex(folder string, idx *Index) error {
	data, err := yaml.Marshal(idx)
	if err != nil {
		return fmt.Errorf("error encoding bills index: %w", err)
	}

	tmp := filepath.Join(folder, IndexFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("error writing bills index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(folder, IndexFileName)); err != nil {
		return fmt.Errorf("error writing bills index: %w", err)
	}
	return nil
}
