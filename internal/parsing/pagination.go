package parsing

import (
	"fmt"

	"github.com/goccy/go-json"

	"go-der-dashboard/internal/model"
)

// Envelope is the raw paged listing returned by the BEO.
// Results is kept undecoded since it is either an array or an object.
type Envelope struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  json.RawMessage `json:"results"`
}

// Extractor tells Normalize how to get a []T out of the results.
//
// For array results Fn, when set, is applied to each element; otherwise the array decodes
// straight into []T. For object results either Key names the array field to decode, or Fn
// receives the whole object and returns the data. Object results with neither are rejected.
type Extractor[S any, T any] struct {
	Key string
	Fn  func(S) ([]T, error)
}

// Identity returns an extractor that decodes array results as they are
func Identity[T any]() Extractor[T, T] {
	return Extractor[T, T]{}
}

// ByKey returns an extractor selecting the array stored under key in object results
func ByKey[T any](key string) Extractor[map[string]json.RawMessage, T] {
	return Extractor[map[string]json.RawMessage, T]{Key: key}
}

// Normalize converts a raw envelope into a PaginationSet. It has no side effects.
func Normalize[S any, T any](env Envelope, ex Extractor[S, T]) (model.PaginationSet[T], error) {
	set := model.PaginationSet[T]{
		Count:       env.Count,
		HasNext:     env.Next != nil,
		HasPrevious: env.Previous != nil,
	}

	data, err := extract(env.Results, ex)
	if err != nil {
		return model.PaginationSet[T]{}, err
	}
	if data == nil {
		data = []T{}
	}
	set.Data = data
	return set, nil
}

func extract[S any, T any](raw json.RawMessage, ex Extractor[S, T]) ([]T, error) {
	switch firstToken(raw) {
	case '[':
		if ex.Fn == nil {
			var out []T
			if err := json.Unmarshal(raw, &out); err != nil {
				return nil, fmt.Errorf("decode results: %w", err)
			}
			return out, nil
		}
		var elems []S
		if err := json.Unmarshal(raw, &elems); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		out := make([]T, 0, len(elems))
		for i, el := range elems {
			mapped, err := ex.Fn(el)
			if err != nil {
				return nil, fmt.Errorf("extract result %d: %w", i, err)
			}
			out = append(out, mapped...)
		}
		return out, nil

	case '{':
		if ex.Key != "" {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(raw, &obj); err != nil {
				return nil, fmt.Errorf("decode results: %w", err)
			}
			field, ok := obj[ex.Key]
			if !ok {
				return nil, fmt.Errorf("%w: results have no field %q", model.ErrInvalidArgument, ex.Key)
			}
			var out []T
			if err := json.Unmarshal(field, &out); err != nil {
				return nil, fmt.Errorf("decode results.%s: %w", ex.Key, err)
			}
			return out, nil
		}
		if ex.Fn != nil {
			var obj S
			if err := json.Unmarshal(raw, &obj); err != nil {
				return nil, fmt.Errorf("decode results: %w", err)
			}
			return ex.Fn(obj)
		}
		return nil, fmt.Errorf("%w: object results need an extractor key or function", model.ErrInvalidArgument)

	case 0, 'n':
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: results must be an array or an object", model.ErrInvalidArgument)
	}
}

// firstToken returns the first non-space byte of raw, or 0 when raw is empty
func firstToken(raw []byte) byte {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}
