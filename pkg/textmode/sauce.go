package textmode

import (
	"bytes"
	"encoding/binary"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// SAUCE record layout, see https://www.acid.org/info/sauce/sauce.htm.
const (
	sauceSize       = 128
	commentLineSize = 64
	commentHeader   = "COMNT"
	maxCommentLines = 255
	eofChar         = 0x1a

	dataTypeBinaryText = 5
	flagIceColors      = 0x01
)

type sauceRecord struct {
	Title    string
	Author   string
	Group    string
	Date     string
	FileSize uint32
	DataType byte
	FileType byte
	TInfo    [4]uint16
	Comments []string
	TFlags   byte
	TInfoS   string
}

func decodeField(b []byte) string {
	b = bytes.TrimRight(b, " \x00")
	s, err := charmap.CodePage437.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

// encodeField writes s into dst, padding the rest with pad.
func encodeField(dst []byte, s string, pad byte) {
	b, err := encoding.ReplaceUnsupported(charmap.CodePage437.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		b = []byte(s)
	}
	n := copy(dst, b)
	for i := n; i < len(dst); i++ {
		dst[i] = pad
	}
}

// parseSauce looks for a SAUCE record at the end of b. It returns the record
// (nil if absent) and the length of the content that precedes it.
func parseSauce(b []byte) (*sauceRecord, int) {
	end := len(b)
	if len(b) < sauceSize || string(b[len(b)-sauceSize:len(b)-sauceSize+5]) != "SAUCE" {
		if end%2 == 1 && b[end-1] == eofChar {
			end--
		}
		return nil, end
	}

	raw := b[len(b)-sauceSize:]
	rec := &sauceRecord{
		Title:    decodeField(raw[7:42]),
		Author:   decodeField(raw[42:62]),
		Group:    decodeField(raw[62:82]),
		Date:     decodeField(raw[82:90]),
		FileSize: binary.LittleEndian.Uint32(raw[90:94]),
		DataType: raw[94],
		FileType: raw[95],
		TFlags:   raw[105],
		TInfoS:   decodeField(raw[106:128]),
	}
	for i := range rec.TInfo {
		rec.TInfo[i] = binary.LittleEndian.Uint16(raw[96+2*i:])
	}

	end = len(b) - sauceSize
	if n := int(raw[104]); n > 0 {
		start := end - len(commentHeader) - n*commentLineSize
		if start >= 0 && string(b[start:start+len(commentHeader)]) == commentHeader {
			lines := b[start+len(commentHeader) : end]
			for i := 0; i < n; i++ {
				rec.Comments = append(rec.Comments, decodeField(lines[i*commentLineSize:(i+1)*commentLineSize]))
			}
			end = start
		}
	}
	if end > 0 && b[end-1] == eofChar {
		end--
	}
	if rec.FileSize > 0 && int(rec.FileSize) < end {
		end = int(rec.FileSize)
	}
	return rec, end
}

// appendTo appends the EOF marker, comment block and record to dst.
func (r *sauceRecord) appendTo(dst []byte) []byte {
	dst = append(dst, eofChar)

	comments := r.Comments
	if len(comments) > maxCommentLines {
		comments = comments[:maxCommentLines]
	}
	if len(comments) > 0 {
		dst = append(dst, commentHeader...)
		for _, line := range comments {
			field := make([]byte, commentLineSize)
			encodeField(field, line, ' ')
			dst = append(dst, field...)
		}
	}

	raw := make([]byte, sauceSize)
	copy(raw[0:5], "SAUCE")
	copy(raw[5:7], "00")
	encodeField(raw[7:42], r.Title, ' ')
	encodeField(raw[42:62], r.Author, ' ')
	encodeField(raw[62:82], r.Group, ' ')
	encodeField(raw[82:90], r.Date, ' ')
	binary.LittleEndian.PutUint32(raw[90:94], r.FileSize)
	raw[94] = r.DataType
	raw[95] = r.FileType
	for i, v := range r.TInfo {
		binary.LittleEndian.PutUint16(raw[96+2*i:], v)
	}
	raw[104] = byte(len(comments))
	raw[105] = r.TFlags
	encodeField(raw[106:128], r.TInfoS, 0)
	return append(dst, raw...)
}

// splitComments breaks free text into SAUCE comment lines.
func splitComments(s string) []string {
	if s == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		runes := []rune(line)
		if len(runes) == 0 {
			lines = append(lines, "")
			continue
		}
		for len(runes) > 0 {
			n := min(len(runes), commentLineSize)
			lines = append(lines, string(runes[:n]))
			runes = runes[n:]
		}
	}
	return lines
}
