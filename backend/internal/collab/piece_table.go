package collab

import "collabRouter/backend/internal/ot/delta"

type bufferKind int

const (
	bufOriginal bufferKind = iota
	bufAdd
)

// piece references a span of either the original or the add buffer.
type piece struct {
	buf    bufferKind
	offset int
	length int
}

// PieceTable is the built-in State implementation: immutable original buffer,
// append-only add buffer, and a piece list describing the current content.
type PieceTable struct {
	original []rune
	add      []rune
	pieces   []piece
}

var _ State = (*PieceTable)(nil)

func NewPieceTable(initial string) *PieceTable {
	r := []rune(initial)
	return &PieceTable{
		original: r,
		pieces:   []piece{{buf: bufOriginal, offset: 0, length: len(r)}},
	}
}

func (pt *PieceTable) Len() int {
	n := 0
	for _, p := range pt.pieces {
		n += p.length
	}
	return n
}

func (pt *PieceTable) Snapshot() string {
	var res []rune
	for _, p := range pt.pieces {
		switch p.buf {
		case bufOriginal:
			res = append(res, pt.original[p.offset:p.offset+p.length]...)
		case bufAdd:
			res = append(res, pt.add[p.offset:p.offset+p.length]...)
		}
	}
	return string(res)
}

// Apply validates the whole delta against the current length before touching
// any buffer, so a rejected delta leaves the content unchanged.
func (pt *PieceTable) Apply(d delta.Delta) error {
	if err := pt.validate(d); err != nil {
		return err
	}
	pos := 0
	for _, op := range d {
		switch op.Kind {
		case delta.KindRetain:
			pos += op.Count
		case delta.KindInsert:
			text := []rune(op.Text)
			pt.insert(pos, text)
			pos += len(text)
		case delta.KindDelete:
			pt.delete(pos, op.Count)
		}
	}
	return nil
}

func (pt *PieceTable) validate(d delta.Delta) error {
	// Retain and delete consume base content, insert does not.
	pos := 0
	for _, op := range d {
		switch op.Kind {
		case delta.KindRetain, delta.KindDelete:
			if op.Count < 0 {
				return ErrDeltaOutOfRange
			}
			pos += op.Count
		case delta.KindInsert:
		default:
			return ErrDeltaOutOfRange
		}
	}
	if pos > pt.Len() {
		return ErrDeltaOutOfRange
	}
	return nil
}

func (pt *PieceTable) insert(pos int, text []rune) {
	if len(text) == 0 {
		return
	}
	start := len(pt.add)
	pt.add = append(pt.add, text...)
	newPiece := piece{buf: bufAdd, offset: start, length: len(text)}

	idx, offset := pt.locate(pos)
	if idx >= len(pt.pieces) {
		pt.pieces = append(pt.pieces, newPiece)
		return
	}

	cur := pt.pieces[idx]
	left := piece{buf: cur.buf, offset: cur.offset, length: offset}
	right := piece{buf: cur.buf, offset: cur.offset + offset, length: cur.length - offset}

	newPieces := make([]piece, 0, len(pt.pieces)+2)
	newPieces = append(newPieces, pt.pieces[:idx]...)
	if left.length > 0 {
		newPieces = append(newPieces, left)
	}
	newPieces = append(newPieces, newPiece)
	if right.length > 0 {
		newPieces = append(newPieces, right)
	}
	newPieces = append(newPieces, pt.pieces[idx+1:]...)
	pt.pieces = newPieces
}

func (pt *PieceTable) delete(pos, count int) {
	remain := count
	idx, offset := pt.locate(pos)

	for remain > 0 && idx < len(pt.pieces) {
		cur := &pt.pieces[idx]
		can := cur.length - offset
		if can <= 0 {
			idx++
			offset = 0
			continue
		}

		take := remain
		if take > can {
			take = can
		}

		if offset == 0 && take == cur.length {
			// Whole piece goes away; idx now points at the next piece.
			pt.pieces = append(pt.pieces[:idx], pt.pieces[idx+1:]...)
		} else {
			leftLen := offset
			rightLen := cur.length - offset - take

			newPieces := make([]piece, 0, len(pt.pieces)+1)
			newPieces = append(newPieces, pt.pieces[:idx]...)
			if leftLen > 0 {
				newPieces = append(newPieces, piece{buf: cur.buf, offset: cur.offset, length: leftLen})
			}
			if rightLen > 0 {
				newPieces = append(newPieces, piece{buf: cur.buf, offset: cur.offset + offset + take, length: rightLen})
			}
			newPieces = append(newPieces, pt.pieces[idx+1:]...)
			pt.pieces = newPieces
		}

		remain -= take
	}
}

// locate maps a logical position to a piece index and an offset inside it.
func (pt *PieceTable) locate(pos int) (idx int, offset int) {
	cur := 0
	for i, p := range pt.pieces {
		if pos < cur+p.length {
			return i, pos - cur
		}
		cur += p.length
	}
	return len(pt.pieces), 0
}
