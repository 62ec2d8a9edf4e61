package shredder

import "fmt"

// Method selects the overwrite scheme.
type Method string

const (
	// MethodSimple is a single zero pass.
	MethodSimple Method = "simple"
	// MethodDoD3 is the default: random, zeros, random.
	MethodDoD3 Method = "dod3"
	// MethodDoD7 is a seven pass variant for the more paranoid.
	MethodDoD7 Method = "dod7"
	// MethodGutmann is the classic 35 pass scheme. Overkill on anything
	// modern, kept because users ask for it.
	MethodGutmann Method = "gutmann"
)

// pass describes one full overwrite of the file.
type pass struct {
	random  bool
	pattern byte
}

var gutmannPatterns = []byte{
	0x55, 0xAA, 0x92, 0x49, 0x24, 0x00, 0x11, 0x22, 0x33,
	0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB, 0xCC,
	0xDD, 0xEE, 0xFF, 0x92, 0x49, 0x24, 0x6D, 0xB6, 0xDB,
}

// planFor maps a method to its pass sequence.
func planFor(method Method) ([]pass, error) {
	switch method {
	case MethodSimple:
		return []pass{{pattern: 0x00}}, nil
	case MethodDoD3, "":
		return []pass{{random: true}, {pattern: 0x00}, {random: true}}, nil
	case MethodDoD7:
		return []pass{
			{pattern: 0x00}, {pattern: 0xFF}, {random: true},
			{pattern: 0x96},
			{pattern: 0x00}, {pattern: 0xFF}, {random: true},
		}, nil
	case MethodGutmann:
		plan := make([]pass, 0, 35)
		for i := 0; i < 4; i++ {
			plan = append(plan, pass{random: true})
		}
		for _, p := range gutmannPatterns {
			plan = append(plan, pass{pattern: p})
		}
		for i := 0; i < 4; i++ {
			plan = append(plan, pass{random: true})
		}
		return plan, nil
	default:
		return nil, fmt.Errorf("unknown shred method: %s", method)
	}
}

// PassCount reports how many overwrites a method performs, for UI display.
func PassCount(method Method) int {
	plan, err := planFor(method)
	if err != nil {
		return 0
	}
	return len(plan)
}
