package httpapi

import "time"

// SetClock overrides the authenticator's time source.
func (a *Authenticator) SetClock(now func() time.Time) {
	a.now = now
}
