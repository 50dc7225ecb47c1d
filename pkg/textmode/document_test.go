package textmode

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewFillsBlank(t *testing.T) {
	d, err := New(4, 2)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if len(d.Data) != 8 {
		t.Fatalf("len(Data)=%d, want 8", len(d.Data))
	}
	for i, b := range d.Data {
		if b != Blank {
			t.Fatalf("Data[%d]=%+v, want %+v", i, b, Blank)
		}
	}
}

func TestNewRejectsEmptyGrid(t *testing.T) {
	if _, err := New(0, 10); !errors.Is(err, ErrBadDimensions) {
		t.Fatalf("New(0, 10) error=%v, want ErrBadDimensions", err)
	}
}

func TestSetBlockUsesRowMajorIndex(t *testing.T) {
	d, _ := New(80, 25)
	b := Block{Code: '#', FG: 7, BG: 0}
	if err := d.SetBlock(1, 2, b); err != nil {
		t.Fatalf("SetBlock() error: %v", err)
	}
	if got := d.Data[2*80+1]; got != b {
		t.Fatalf("Data[161]=%+v, want %+v", got, b)
	}
	got, err := d.At(1, 2)
	if err != nil || got != b {
		t.Fatalf("At(1, 2)=%+v, %v; want %+v", got, err, b)
	}
}

func TestSetBlockOutOfBounds(t *testing.T) {
	d, _ := New(80, 25)
	tests := []struct{ x, y int }{
		{-1, 0}, {0, -1}, {80, 0}, {0, 25}, {200, 200},
	}
	for _, tt := range tests {
		if err := d.SetBlock(tt.x, tt.y, Blank); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("SetBlock(%d, %d) error=%v, want ErrOutOfBounds", tt.x, tt.y, err)
		}
	}
}

func TestSetBlockRejectsBadValues(t *testing.T) {
	d, _ := New(2, 2)
	for _, b := range []Block{{Code: 256}, {Code: 1, FG: 16}, {Code: 1, BG: -1}} {
		if err := d.SetBlock(0, 0, b); !errors.Is(err, ErrBadBlock) {
			t.Errorf("SetBlock(%+v) error=%v, want ErrBadBlock", b, err)
		}
	}
	if d.Data[0] != Blank {
		t.Fatalf("rejected block was stored: %+v", d.Data[0])
	}
}

func TestBlockUnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want Block
	}{
		{`{"code":65,"fg":7,"bg":1}`, Block{Code: 65, FG: 7, BG: 1}},
		{`{"ch":"#","fg":7,"bg":0}`, Block{Code: '#', FG: 7}},
		{`{"ch":"█","fg":4,"bg":0}`, Block{Code: 219, FG: 4}},
		{`{"code":0,"ch":"x"}`, Block{Code: 0}},
	}
	for _, tt := range tests {
		var b Block
		if err := json.Unmarshal([]byte(tt.in), &b); err != nil {
			t.Fatalf("Unmarshal(%s) error: %v", tt.in, err)
		}
		if b != tt.want {
			t.Errorf("Unmarshal(%s)=%+v, want %+v", tt.in, b, tt.want)
		}
	}
}

func TestBlockUnmarshalJSONErrors(t *testing.T) {
	for _, in := range []string{`{"fg":7}`, `{"ch":"ab"}`, `{"ch":"☃"}`, `[]`} {
		var b Block
		if err := json.Unmarshal([]byte(in), &b); err == nil {
			t.Errorf("Unmarshal(%s) error=nil, want non-nil", in)
		}
	}
}

func TestSauceRoundTrip(t *testing.T) {
	d, _ := New(2, 2)
	s := Sauce{Title: "t", Author: "a", Group: "g", Comments: "c"}
	d.SetSauce(s)
	if got := d.Sauce(); got != s {
		t.Fatalf("Sauce()=%+v, want %+v", got, s)
	}
}

func TestCloneIsDeep(t *testing.T) {
	d, _ := New(2, 2)
	c := d.Clone()
	c.Data[0] = Block{Code: 'x'}
	if d.Data[0] != Blank {
		t.Fatal("Clone shares cell storage with the original")
	}
}
