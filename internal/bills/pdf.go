package bills

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrNotPDF is returned when a downloaded bill is not a readable PDF, which
// usually means the portal answered with an HTML page instead.
var ErrNotPDF = errors.New("not a readable PDF document")

// ValidatePDF checks that data opens as a PDF with at least one page and
// returns the page count.
func ValidatePDF(data []byte) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("%w: PDF library crashed: %v", ErrNotPDF, r)
		}
	}()

	r, openErr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if openErr != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotPDF, openErr)
	}

	pages = r.NumPage()
	if pages == 0 {
		return 0, fmt.Errorf("%w: PDF has no pages", ErrNotPDF)
	}

	return pages, nil
}
