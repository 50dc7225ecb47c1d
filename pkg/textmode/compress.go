package textmode

import "fmt"

// Run is a [value, count] pair.
type Run [2]int

// CompressedData holds one run-length encoded stream per block field.
type CompressedData struct {
	Code []Run `json:"code"`
	FG   []Run `json:"fg"`
	BG   []Run `json:"bg"`
}

// CompressedDocument is the transfer form of a Document.
type CompressedDocument struct {
	Columns   int            `json:"columns"`
	Rows      int            `json:"rows"`
	Title     string         `json:"title"`
	Author    string         `json:"author"`
	Group     string         `json:"group"`
	Date      string         `json:"date"`
	Comments  string         `json:"comments"`
	IceColors bool           `json:"ice_colors"`
	FontName  string         `json:"font_name"`
	Data      CompressedData `json:"compressed_data"`
}

// Compress run-length encodes d.
func Compress(d *Document) *CompressedDocument {
	c := &CompressedDocument{
		Columns:   d.Columns,
		Rows:      d.Rows,
		Title:     d.Title,
		Author:    d.Author,
		Group:     d.Group,
		Date:      d.Date,
		Comments:  d.Comments,
		IceColors: d.IceColors,
		FontName:  d.FontName,
	}
	c.Data.Code = encodeRuns(d.Data, func(b Block) int { return b.Code })
	c.Data.FG = encodeRuns(d.Data, func(b Block) int { return b.FG })
	c.Data.BG = encodeRuns(d.Data, func(b Block) int { return b.BG })
	return c
}

func encodeRuns(data []Block, field func(Block) int) []Run {
	runs := make([]Run, 0, 16)
	for _, b := range data {
		v := field(b)
		if n := len(runs); n > 0 && runs[n-1][0] == v {
			runs[n-1][1]++
			continue
		}
		runs = append(runs, Run{v, 1})
	}
	return runs
}

// Decompress rebuilds a Document from its compressed form.
func Decompress(c *CompressedDocument) (*Document, error) {
	if c.Columns <= 0 || c.Rows <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadDimensions, c.Columns, c.Rows)
	}
	size := c.Columns * c.Rows
	d := &Document{
		Columns:   c.Columns,
		Rows:      c.Rows,
		Data:      make([]Block, size),
		Title:     c.Title,
		Author:    c.Author,
		Group:     c.Group,
		Date:      c.Date,
		Comments:  c.Comments,
		IceColors: c.IceColors,
		FontName:  c.FontName,
	}
	streams := []struct {
		name string
		runs []Run
		set  func(*Block, int)
	}{
		{"code", c.Data.Code, func(b *Block, v int) { b.Code = v }},
		{"fg", c.Data.FG, func(b *Block, v int) { b.FG = v }},
		{"bg", c.Data.BG, func(b *Block, v int) { b.BG = v }},
	}
	for _, s := range streams {
		i := 0
		for _, r := range s.runs {
			if r[1] <= 0 || i+r[1] > size {
				return nil, fmt.Errorf("textmode: %s stream overruns %d cells", s.name, size)
			}
			for j := 0; j < r[1]; j++ {
				s.set(&d.Data[i], r[0])
				i++
			}
		}
		if i != size {
			return nil, fmt.Errorf("textmode: %s stream covers %d of %d cells", s.name, i, size)
		}
	}
	return d, nil
}
