package planner

import "errors"

// ErrNoAgents is returned when selection is requested with an empty
// agent list.
var ErrNoAgents = errors.New("no agents available for selection")
