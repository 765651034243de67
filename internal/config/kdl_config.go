package config

import (
	"fmt"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// unmarshalKDL fills t from a KDL document shaped like:
//
//	ladder 64 98 128 192 256 384 512 768 1024 1280 1536 1792 2048
//	max_slice_bytes 32768
//	slice_cap 64
//	overrange_unit 1024
//	auto_free_threshold 536870912
func unmarshalKDL(data []byte, t *Tunables) error {
	doc, err := kdl.Parse(strings.NewReader(string(data)))
	if err != nil {
		return fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "ladder":
			if vals := intArgs(n); len(vals) > 0 {
				t.Ladder = vals
			}
		case "max_slice_bytes":
			if v, ok := firstIntArg(n); ok {
				t.MaxSliceBytes = v
			}
		case "slice_cap":
			if v, ok := firstIntArg(n); ok {
				t.SliceCap = v
			}
		case "overrange_unit":
			if v, ok := firstIntArg(n); ok {
				t.OverrangeUnit = v
			}
		case "auto_free_threshold":
			if v, ok := firstIntArg(n); ok {
				t.AutoFreeThreshold = int64(v)
			}
		}
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func intArgs(n *document.Node) []int {
	out := make([]int, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		switch v := a.Value.(type) {
		case int64:
			out = append(out, int(v))
		case float64:
			out = append(out, int(v))
		}
	}
	return out
}
