package jsonvalue

// Equal reports JSON equality: numbers compare by mathematical value, objects
// compare as unordered key sets and arrays compare element-wise.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.b == b.b
	case String:
		return a.s == b.s
	case Number:
		return CompareNumbers(a, b) == 0
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.obj.keys) != len(b.obj.keys) {
			return false
		}
		for i, k := range a.obj.keys {
			other, ok := b.Get(k)
			if !ok || !Equal(a.obj.vals[i], other) {
				return false
			}
		}
		return true
	}
	return false
}

// CompareNumbers returns -1, 0 or 1 comparing two numbers. Float comparison
// decides whenever the float64 approximations differ; ties fall back to exact
// decimal comparison of the literals, which also covers literals that saturate
// float64.
func CompareNumbers(a, b Value) int {
	if a.s == b.s {
		return 0
	}
	switch {
	case a.f < b.f:
		return -1
	case a.f > b.f:
		return 1
	}
	return parseDecimal(a.s).cmp(parseDecimal(b.s))
}
