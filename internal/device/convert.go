package device

// Backend attributes arrive as loosely-typed any values (float64 from
// JSON, or native Go types when a test constructs them directly); these
// helpers normalize both.

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func toIntPair(v any) ([2]int, bool) {
	switch s := v.(type) {
	case []any:
		if len(s) != 2 {
			return [2]int{}, false
		}
		return [2]int{toInt(s[0]), toInt(s[1])}, true
	case []int:
		if len(s) != 2 {
			return [2]int{}, false
		}
		return [2]int{s[0], s[1]}, true
	case [2]int:
		return s, true
	default:
		return [2]int{}, false
	}
}

func toFloatPair(v any) ([2]float64, bool) {
	switch s := v.(type) {
	case []any:
		if len(s) != 2 {
			return [2]float64{}, false
		}
		return [2]float64{toFloat(s[0]), toFloat(s[1])}, true
	case []float64:
		if len(s) != 2 {
			return [2]float64{}, false
		}
		return [2]float64{s[0], s[1]}, true
	case [2]float64:
		return s, true
	default:
		return [2]float64{}, false
	}
}

func toUint8Triple(v any) ([3]uint8, bool) {
	switch s := v.(type) {
	case []any:
		if len(s) != 3 {
			return [3]uint8{}, false
		}
		return [3]uint8{uint8(toInt(s[0])), uint8(toInt(s[1])), uint8(toInt(s[2]))}, true
	case []int:
		if len(s) != 3 {
			return [3]uint8{}, false
		}
		return [3]uint8{uint8(s[0]), uint8(s[1]), uint8(s[2])}, true
	case [3]uint8:
		return s, true
	default:
		return [3]uint8{}, false
	}
}
