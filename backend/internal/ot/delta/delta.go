package delta

type Kind string

const (
	KindRetain Kind = "retain"
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
)

type Op struct {
	Kind  Kind           `json:"kind"`
	Count int            `json:"count,omitempty"` // retain/delete length
	Text  string         `json:"text,omitempty"`  // insert payload
	Attrs map[string]any `json:"attrs,omitempty"` // style attributes (bold/color/...)
}

// Delta is an ordered run of retain/insert/delete ops against a document of
// known length, e.g. [{"kind":"retain","count":5},{"kind":"insert","text":"Hi"}].
type Delta []Op

// BaseLen returns the document length this delta expects to be applied
// against (sum of retain and delete spans).
func (d Delta) BaseLen() int {
	n := 0
	for _, op := range d {
		switch op.Kind {
		case KindRetain, KindDelete:
			n += op.Count
		}
	}
	return n
}
