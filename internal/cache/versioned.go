package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Versioned entries live under key:<generation>. Bump advances the generation,
// so a value read from the database before a Bump and written after it lands
// under a generation no reader asks for again.

func generationKey(key string) string {
	return "gen:" + key
}

func versionedKey(key string, generation int64) string {
	return key + ":" + strconv.FormatInt(generation, 10)
}

// Generation returns the current generation of key; zero when never bumped.
func Generation(ctx context.Context, s Store, key string) (int64, error) {
	raw, ok, err := s.Get(ctx, generationKey(key))
	if err != nil || !ok {
		return 0, err
	}
	gen, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("generation of %s is not an integer", key)
	}
	return gen, nil
}

// GetVersionedJSON looks up key at its current generation. The generation is
// returned even on a miss; callers pass it to SetVersionedJSON after loading
// the value from the source of truth.
func GetVersionedJSON[T any](ctx context.Context, s Store, key string) (T, int64, bool, error) {
	var zero T
	gen, err := Generation(ctx, s, key)
	if err != nil {
		return zero, 0, false, err
	}
	val, ok, err := GetJSON[T](ctx, s, versionedKey(key, gen))
	return val, gen, ok, err
}

// SetVersionedJSON stores value under the generation observed before it was
// loaded.
func SetVersionedJSON(ctx context.Context, s Store, key string, generation int64, value any, ttl time.Duration) error {
	return SetJSON(ctx, s, versionedKey(key, generation), value, ttl)
}

// Bump retires every value cached for key. The entry of the retired generation
// is deleted so it does not linger until its TTL.
func Bump(ctx context.Context, s Store, key string) error {
	gen, err := s.Incr(ctx, generationKey(key))
	if err != nil {
		return err
	}
	return s.Delete(ctx, versionedKey(key, gen-1))
}
