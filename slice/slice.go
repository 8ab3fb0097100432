package slice

// Map returns a new slice with pred applied to every element. The result is
// never nil, so it encodes as an empty JSON array.
func Map[T any, U any](input []T, pred func(T) U) []U {
	result := make([]U, len(input))
	for i, v := range input {
		result[i] = pred(v)
	}
	return result
}
