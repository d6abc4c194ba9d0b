package sim

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v4"
)

// ErrState is returned when a state blob cannot be loaded.
var ErrState = errors.New("sim: invalid state")

func stateErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrState, fmt.Sprintf(format, args...))
}

// decodeState unmarshals b into v and checks the version it carries.
// Unmarshal fills *version as part of v.
func decodeState(entity string, b []byte, v interface{}, version *int, want int) error {
	if err := msgpack.Unmarshal(b, v); err != nil {
		return stateErrorf("%s: %v", entity, err)
	}
	if *version != want {
		return stateErrorf("%s: state version %d, want %d", entity, *version, want)
	}
	return nil
}
