package textmode

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Sentinel errors for document operations.
var (
	// ErrOutOfBounds is returned when a coordinate lies outside the grid.
	ErrOutOfBounds = errors.New("textmode: coordinate out of bounds")

	// ErrBadDimensions is returned for grids the format cannot represent.
	ErrBadDimensions = errors.New("textmode: bad dimensions")

	// ErrBadBlock is returned for blocks with out-of-range values.
	ErrBadBlock = errors.New("textmode: bad block")

	// ErrUnsupportedFormat is returned when file content is not BinaryText.
	ErrUnsupportedFormat = errors.New("textmode: unsupported format")
)

// Block is one character cell.
type Block struct {
	// Code is the CP437 character code (0-255).
	Code int `json:"code"`

	// FG is the foreground palette index (0-15).
	FG int `json:"fg"`

	// BG is the background palette index (0-15).
	BG int `json:"bg"`
}

// Blank is the cell new documents are filled with.
var Blank = Block{Code: ' ', FG: 7, BG: 0}

// UnmarshalJSON accepts {"code": n, ...} and, for convenience, a single
// character in place of the code: {"ch": "#", ...}.
func (b *Block) UnmarshalJSON(data []byte) error {
	var aux struct {
		Code *int   `json:"code"`
		Ch   string `json:"ch"`
		FG   int    `json:"fg"`
		BG   int    `json:"bg"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	switch {
	case aux.Code != nil:
		b.Code = *aux.Code
	case aux.Ch != "":
		r, size := utf8.DecodeRuneInString(aux.Ch)
		if size != len(aux.Ch) {
			return fmt.Errorf("%w: ch must be a single character", ErrBadBlock)
		}
		code, ok := charmap.CodePage437.EncodeRune(r)
		if !ok {
			return fmt.Errorf("%w: %q has no CP437 code", ErrBadBlock, r)
		}
		b.Code = int(code)
	default:
		return fmt.Errorf("%w: missing code", ErrBadBlock)
	}
	b.FG, b.BG = aux.FG, aux.BG
	return nil
}

// Validate checks that every field is within range.
func (b Block) Validate() error {
	if b.Code < 0 || b.Code > 255 {
		return fmt.Errorf("%w: code %d", ErrBadBlock, b.Code)
	}
	if b.FG < 0 || b.FG > 15 {
		return fmt.Errorf("%w: fg %d", ErrBadBlock, b.FG)
	}
	if b.BG < 0 || b.BG > 15 {
		return fmt.Errorf("%w: bg %d", ErrBadBlock, b.BG)
	}
	return nil
}

// Sauce is the metadata clients may edit.
type Sauce struct {
	Title    string
	Author   string
	Group    string
	Comments string
}

// Document is a text-mode art document.
type Document struct {
	Columns int
	Rows    int
	Data    []Block

	Title    string
	Author   string
	Group    string
	Date     string // CCYYMMDD
	Comments string

	IceColors bool
	FontName  string
}

// New returns a blank document of the given size.
func New(columns, rows int) (*Document, error) {
	if columns <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadDimensions, columns, rows)
	}
	data := make([]Block, columns*rows)
	for i := range data {
		data[i] = Blank
	}
	return &Document{Columns: columns, Rows: rows, Data: data}, nil
}

// Index returns the linear index of (x, y).
func (d *Document) Index(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= d.Columns || y >= d.Rows {
		return 0, false
	}
	i := y*d.Columns + x
	if i >= len(d.Data) {
		return 0, false
	}
	return i, true
}

// At returns the block at (x, y).
func (d *Document) At(x, y int) (Block, error) {
	i, ok := d.Index(x, y)
	if !ok {
		return Block{}, fmt.Errorf("%w: (%d, %d) in %dx%d", ErrOutOfBounds, x, y, d.Columns, d.Rows)
	}
	return d.Data[i], nil
}

// SetBlock replaces the block at (x, y).
func (d *Document) SetBlock(x, y int, b Block) error {
	i, ok := d.Index(x, y)
	if !ok {
		return fmt.Errorf("%w: (%d, %d) in %dx%d", ErrOutOfBounds, x, y, d.Columns, d.Rows)
	}
	if err := b.Validate(); err != nil {
		return err
	}
	d.Data[i] = b
	return nil
}

// Sauce returns the editable metadata.
func (d *Document) Sauce() Sauce {
	return Sauce{Title: d.Title, Author: d.Author, Group: d.Group, Comments: d.Comments}
}

// SetSauce replaces the editable metadata.
func (d *Document) SetSauce(s Sauce) {
	d.Title = s.Title
	d.Author = s.Author
	d.Group = s.Group
	d.Comments = s.Comments
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	c := *d
	c.Data = make([]Block, len(d.Data))
	copy(c.Data, d.Data)
	return &c
}
