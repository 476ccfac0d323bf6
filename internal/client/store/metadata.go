package store

import "context"

// Meta returns a metadata value and whether it was present.
func (s *Store) Meta(ctx context.Context, key string) (string, bool, error) {
	v, err := s.metadata.Get(ctx, key)
	if err != nil {
		return "", false, wrap(err)
	}
	if v == nil {
		return "", false, nil
	}
	return string(v), true, nil
}

func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	return wrap(s.metadata.Set(ctx, key, []byte(value)))
}

func (s *Store) DeleteMeta(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		if err := s.metadata.Delete(ctx, k); err != nil {
			return wrap(err)
		}
	}
	return nil
}
