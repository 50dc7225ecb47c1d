package textmode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Codec reads and writes documents.
type Codec interface {
	// Read loads the document stored in file.
	Read(ctx context.Context, file string) (*Document, error)

	// Write stores doc in file, replacing its previous contents.
	Write(ctx context.Context, doc *Document, file string) error
}

// DefaultBinColumns is the width assumed for .bin files without SAUCE.
const DefaultBinColumns = 160

// BinCodec reads and writes BinaryText files: two bytes per cell (character
// code, then attribute fg|bg<<4) followed by an optional SAUCE record.
type BinCodec struct {
	// DefaultColumns is the width used when a file has no SAUCE record.
	// Default: 160.
	DefaultColumns int

	// now is overrideable for tests.
	now func() time.Time
}

// NewBinCodec returns a BinCodec with defaults.
func NewBinCodec() *BinCodec {
	return &BinCodec{DefaultColumns: DefaultBinColumns, now: time.Now}
}

// Read implements Codec.
func (c *BinCodec) Read(ctx context.Context, file string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("textmode: read %s: %w", file, err)
	}
	doc, err := DecodeBin(b, c.defaultColumns())
	if err != nil {
		return nil, fmt.Errorf("textmode: decode %s: %w", file, err)
	}
	return doc, nil
}

// Write implements Codec. The file is replaced atomically.
func (c *BinCodec) Write(ctx context.Context, doc *Document, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.Date == "" {
		doc.Date = c.clock().Format("20060102")
	}
	b, err := EncodeBin(doc)
	if err != nil {
		return fmt.Errorf("textmode: encode %s: %w", file, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(file), "."+filepath.Base(file)+".*")
	if err != nil {
		return fmt.Errorf("textmode: write %s: %w", file, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("textmode: write %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("textmode: write %s: %w", file, err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return fmt.Errorf("textmode: write %s: %w", file, err)
	}
	return nil
}

func (c *BinCodec) defaultColumns() int {
	if c.DefaultColumns > 0 {
		return c.DefaultColumns
	}
	return DefaultBinColumns
}

func (c *BinCodec) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// DecodeBin parses BinaryText content. Content whose SAUCE record names
// another data type, or whose length is not a whole number of cells, fails
// with ErrUnsupportedFormat so it is never rewritten as BinaryText.
func DecodeBin(b []byte, defaultColumns int) (*Document, error) {
	rec, end := parseSauce(b)
	content := b[:end]

	columns := defaultColumns
	doc := &Document{}
	if rec != nil {
		if rec.DataType != dataTypeBinaryText {
			return nil, fmt.Errorf("%w: SAUCE data type %d", ErrUnsupportedFormat, rec.DataType)
		}
		if rec.FileType > 0 {
			columns = int(rec.FileType) * 2
		}
		doc.Title = rec.Title
		doc.Author = rec.Author
		doc.Group = rec.Group
		doc.Date = rec.Date
		doc.IceColors = rec.TFlags&flagIceColors != 0
		doc.FontName = rec.TInfoS
		if len(rec.Comments) > 0 {
			doc.Comments = strings.Join(rec.Comments, "\n")
		}
	}
	if columns <= 0 {
		return nil, fmt.Errorf("%w: %d columns", ErrBadDimensions, columns)
	}
	if len(content)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of cells", ErrUnsupportedFormat, len(content))
	}

	cells := len(content) / 2
	rows := (cells + columns - 1) / columns
	if rows == 0 {
		rows = 1
	}
	doc.Columns = columns
	doc.Rows = rows
	doc.Data = make([]Block, columns*rows)
	for i := range doc.Data {
		if i >= cells {
			doc.Data[i] = Blank
			continue
		}
		attr := content[2*i+1]
		doc.Data[i] = Block{Code: int(content[2*i]), FG: int(attr & 0x0f), BG: int(attr >> 4)}
	}
	return doc, nil
}

// EncodeBin renders doc as BinaryText with a SAUCE record.
func EncodeBin(doc *Document) ([]byte, error) {
	if doc.Columns <= 0 || doc.Columns%2 != 0 || doc.Columns > 510 {
		return nil, fmt.Errorf("%w: binary text width must be even and at most 510, got %d", ErrBadDimensions, doc.Columns)
	}
	if len(doc.Data) != doc.Columns*doc.Rows {
		return nil, fmt.Errorf("%w: %d cells for %dx%d", ErrBadDimensions, len(doc.Data), doc.Columns, doc.Rows)
	}

	out := make([]byte, 0, len(doc.Data)*2+sauceSize+1)
	for _, b := range doc.Data {
		if err := b.Validate(); err != nil {
			return nil, err
		}
		out = append(out, byte(b.Code), byte(b.FG|b.BG<<4))
	}

	rec := &sauceRecord{
		Title:    doc.Title,
		Author:   doc.Author,
		Group:    doc.Group,
		Date:     doc.Date,
		FileSize: uint32(len(out)),
		DataType: dataTypeBinaryText,
		FileType: byte(doc.Columns / 2),
		Comments: splitComments(doc.Comments),
		TInfoS:   doc.FontName,
	}
	if doc.IceColors {
		rec.TFlags |= flagIceColors
	}
	return rec.appendTo(out), nil
}
