package session

import (
	"errors"
	"fmt"
)

// Stage identifies where in the login sequence a failure occurred.
type Stage string

const (
	StageSubmit       Stage = "submit"
	StageInterstitial Stage = "interstitial"
	StageVerify       Stage = "verify"
)

// ErrSessionLost is reported when a previously authenticated session no
// longer shows the post-login marker.
var ErrSessionLost = errors.New("session: session lost")

// AuthError is a login failure with the failed stage attached.
type AuthError struct {
	Stage Stage
	Err   error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("session: login failed at %s: %v", e.Stage, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
