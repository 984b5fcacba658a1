// Package clock provides the single injectable time source AuthCore
// reads from, so tests can control expiry without sleeping.
package clock

import "time"

// Real is the production Clock backed by time.Now.
type Real struct{}

func (Real) Now() time.Time { return time.Now().UTC() }
