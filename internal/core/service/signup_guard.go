package service

// GuardState is the state of the sign-up race guard.
type GuardState int

const (
	GuardIdle GuardState = iota
	GuardSignupInFlight
)

func (s GuardState) String() string {
	if s == GuardSignupInFlight {
		return "signup_in_flight"
	}
	return "idle"
}

// signupGuard keeps provider state-change callbacks from resolving a
// half-written profile while a sign-up transaction is running.
//
// It is not safe for concurrent use on its own; SessionController guards it
// with its state mutex, the same mutex that protects the published identity.
type signupGuard struct {
	inFlight int
}

func (g *signupGuard) begin() { g.inFlight++ }

func (g *signupGuard) end() {
	if g.inFlight > 0 {
		g.inFlight--
	}
}

func (g *signupGuard) state() GuardState {
	if g.inFlight > 0 {
		return GuardSignupInFlight
	}
	return GuardIdle
}
