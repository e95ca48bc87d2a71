package delta

import (
	"encoding/json"
	"testing"
)

func TestBaseLen(t *testing.T) {
	d := Delta{
		{Kind: KindRetain, Count: 5},
		{Kind: KindInsert, Text: "hello"},
		{Kind: KindDelete, Count: 3},
	}
	// Inserts add content, they do not consume it.
	if got := d.BaseLen(); got != 8 {
		t.Fatalf("BaseLen() = %d, want 8", got)
	}
}

func TestOpJSONShape(t *testing.T) {
	d := Delta{
		{Kind: KindRetain, Count: 2},
		{Kind: KindInsert, Text: "hi", Attrs: map[string]any{"bold": true}},
	}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back Delta
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(back) != 2 || back[0].Kind != KindRetain || back[0].Count != 2 || back[1].Text != "hi" {
		t.Fatalf("round trip = %+v", back)
	}
}
