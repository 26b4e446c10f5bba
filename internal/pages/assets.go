package pages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
)

// Assets names page images and thumbnails. Paths are relative to the
// asset root (slash separated).
type Assets struct {
	ImagePath string
	ThumbPath string
	PadWidth  int
	Ext       string
	Total     int
}

// NewAssets builds the naming scheme from book configuration.
func NewAssets(book config.BookConfig) Assets {
	return Assets{
		ImagePath: book.ImagePath,
		ThumbPath: book.ThumbPath,
		PadWidth:  book.PadWidth,
		Ext:       book.Ext,
		Total:     book.TotalPages,
	}
}

// Valid reports whether page is within [1, Total].
func (a Assets) Valid(page int) bool {
	return page >= 1 && page <= a.Total
}

// Pad renders page zero-padded to PadWidth digits. A width of 0 leaves the
// number as is.
func (a Assets) Pad(page int) string {
	s := strconv.Itoa(page)
	if a.PadWidth > len(s) {
		s = strings.Repeat("0", a.PadWidth-len(s)) + s
	}
	return s
}

// ImageRef is the full-resolution image path for page.
func (a Assets) ImageRef(page int) string {
	return a.ImagePath + a.Pad(page) + a.Ext
}

// ThumbRef is the thumbnail path for page.
func (a Assets) ThumbRef(page int) string {
	return a.ThumbPath + a.Pad(page) + a.Ext
}

func (a Assets) check(page int) error {
	if !a.Valid(page) {
		return fmt.Errorf("page %d outside 1..%d", page, a.Total)
	}
	return nil
}
