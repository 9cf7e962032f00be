package region

import (
	"errors"
	"fmt"
)

// ErrSceneRegion is returned when a caller tries to remove the catch-all
// scene region or change anything other than its payload.
var ErrSceneRegion = errors.New("scene region is fixed")

type DuplicateRegionError struct {
	Set string
	ID  string
}

func (e *DuplicateRegionError) Error() string {
	return fmt.Sprintf("%s: region %q already exists", e.Set, e.ID)
}

type UnknownRegionError struct {
	Set string
	ID  string
}

func (e *UnknownRegionError) Error() string {
	return fmt.Sprintf("%s: no region %q", e.Set, e.ID)
}

// StaleVersionError is advisory: the caller's cached version is behind.
type StaleVersionError struct {
	Set     string
	Have    uint64
	Current uint64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("%s: version %d is stale (current %d)", e.Set, e.Have, e.Current)
}
