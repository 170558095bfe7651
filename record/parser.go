package record

import (
	"fmt"

	"obrc/chunk"
	"obrc/region"
	"obrc/scan"
)

const (
	SEPARATOR  = ';'
	TERMINATOR = '\n'
)

// Parser reads `name;value\n` records from one chunk of a region.
//
// The input is trusted: the checks below catch a broken chunk boundary or a
// truncated record, not general format errors. Run Validate first when the
// input cannot be trusted.
type Parser struct {
	data []byte
	pos  int
	end  int
	semi *scan.Scanner
	nl   *scan.Scanner
}

func NewParser(r *region.Region, c chunk.Chunk, w scan.Width) *Parser {
	return &Parser{
		data: r.Padded(),
		pos:  c.Begin,
		end:  c.End,
		semi: scan.New(r, c.Begin, SEPARATOR, w),
		nl:   scan.New(r, c.Begin, TERMINATOR, w),
	}
}

// More reports whether records remain in the chunk.
func (p *Parser) More() bool {
	return p.pos != p.end
}

// ReadName returns the station name of the current record and moves past
// the separator. The slice aliases the region.
func (p *Parser) ReadName() []byte {
	start := p.pos
	sep := p.semi.Next()
	if sep <= start || sep >= p.end {
		panic(fmt.Sprintf("record: no separator for record at offset %d", start))
	}
	p.pos = sep + 1
	return p.data[start:sep]
}

// ReadValue returns the temperature of the current record in tenths of a
// degree and leaves the position on the terminator.
//
// Only `-?\d{1,2}\.\d` is understood. The digits are read at fixed offsets
// back from the terminator and the width of the number is taken from the
// distance between the position and the terminator.
func (p *Parser) ReadValue() int16 {
	lb := p.nl.Next()
	d := p.data

	neg := d[p.pos] == '-'
	if neg {
		p.pos++
	}

	v := int(d[lb-1]-'0') + int(d[lb-3]-'0')*10
	switch lb - p.pos {
	case 3:
	case 4:
		v += int(d[lb-4]-'0') * 100
	default:
		panic(fmt.Sprintf("record: malformed value at offset %d", p.pos))
	}
	if neg {
		v = -v
	}

	p.pos = lb
	return int16(v)
}

// EndRecord moves past the terminator to the start of the next record.
func (p *Parser) EndRecord() {
	if p.data[p.pos] != TERMINATOR {
		panic(fmt.Sprintf("record: expected terminator at offset %d", p.pos))
	}
	p.pos++
}
