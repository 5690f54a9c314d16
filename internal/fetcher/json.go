package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/rotisserie/eris"
)

// EachJSON streams the elements of a JSON array to fn without holding the
// whole array. The array is either the top-level value or the first
// array-valued member of a top-level envelope object such as
// {"events": [...]}. An empty input yields nothing.
func EachJSON[T any](ctx context.Context, r io.Reader, fn func(T) error) error {
	dec := json.NewDecoder(r)
	if err := seekArray(dec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "json: cancelled")
		}
		var item T
		if err := dec.Decode(&item); err != nil {
			return eris.Wrap(err, "json: decode element")
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "json: read closing bracket")
	}
	return nil
}

// seekArray advances dec just past the '[' of the array to stream.
func seekArray(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return eris.Wrap(err, "json: read opening token")
	}
	switch tok {
	case json.Delim('['):
		return nil
	case json.Delim('{'):
	default:
		return eris.Errorf("json: expected '[' or an envelope object, got %v", tok)
	}

	for dec.More() {
		key, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "json: read envelope key")
		}
		peek, err := dec.Token()
		if err != nil {
			return eris.Wrapf(err, "json: read envelope member %v", key)
		}
		if peek == json.Delim('[') {
			return nil
		}
		// Scalar members are consumed by Token; skip nested objects whole.
		if peek == json.Delim('{') {
			if err := skipObject(dec); err != nil {
				return err
			}
		}
	}
	return eris.New("json: envelope object holds no array")
}

func skipObject(dec *json.Decoder) error {
	for depth := 1; depth > 0; {
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "json: skip envelope member")
		}
		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
	return nil
}

// ReadJSONArray collects EachJSON into a slice. Elements decoded before an
// error are returned with it.
func ReadJSONArray[T any](ctx context.Context, r io.Reader) ([]T, error) {
	var items []T
	err := EachJSON(ctx, r, func(item T) error {
		items = append(items, item)
		return nil
	})
	return items, err
}
