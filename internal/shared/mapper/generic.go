package mapper

import "fmt"

// MapSlice applies a mapper function to each element of a slice.
// Returns nil if the input slice is nil.
func MapSlice[T any, R any](items []T, mapFunc func(T) R) []R {
	if items == nil {
		return nil
	}

	result := make([]R, 0, len(items))
	for _, item := range items {
		result = append(result, mapFunc(item))
	}
	return result
}

// MapSliceWithIndex maps a slice of values through a pointer-based mapper that
// may fail. The index of the failing element is included in the error.
func MapSliceWithIndex[T any, R any](items []T, mapFunc func(*T) (R, error)) ([]R, error) {
	result := make([]R, 0, len(items))
	for i := range items {
		mapped, err := mapFunc(&items[i])
		if err != nil {
			return nil, fmt.Errorf("failed to map item %d: %w", i, err)
		}
		result = append(result, mapped)
	}
	return result, nil
}
