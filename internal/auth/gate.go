package auth

import (
	"errors"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// State is the position of a request in the gate's state machine.
type State int

const (
	StatePublic State = iota + 1
	StateMissingCredential
	StateUnverified
	StateAuthenticated
	StateRejected
)

func (s State) String() string {
	switch s {
	case StatePublic:
		return "public"
	case StateMissingCredential:
		return "missing_credential"
	case StateUnverified:
		return "unverified"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Outcome is the result of running the gate over one request.
type Outcome struct {
	State    State
	Security SecurityContext
	Err      error
}

// Forward reports whether the request may continue.
func (o Outcome) Forward() bool {
	return o.State == StatePublic || o.State == StateAuthenticated
}

// Status is the HTTP status for a terminal rejection, or 0 when forwarding.
func (o Outcome) Status() int {
	if o.Forward() {
		return 0
	}
	if o.Err == nil {
		return http.StatusUnauthorized
	}
	return AsError(o.Err).HTTPStatus()
}

// Gate is the framework independent part of request authentication. Each flavor supplies the
// transport glue and decides where the security context is written.
type Gate struct {
	public   PathMatcher
	verifier Verifier
	resolver *Resolver
}

// NewGate assembles a gate from its capabilities. A nil matcher makes every path protected.
func NewGate(public PathMatcher, verifier Verifier, resolver *Resolver) *Gate {
	if resolver == nil {
		resolver = NewResolver()
	}
	return &Gate{public: public, verifier: verifier, resolver: resolver}
}

// IsPublic reports whether path bypasses authentication.
func (g *Gate) IsPublic(path string) bool {
	return g.public != nil && g.public.Match(path)
}

// Evaluate runs the state machine for one request. Public paths are decided before the
// Authorization header is read.
func (g *Gate) Evaluate(path, authorization string) Outcome {
	if g.IsPublic(path) {
		return Outcome{State: StatePublic}
	}
	return g.Authenticate(authorization)
}

// Authenticate verifies the Authorization header value without consulting the public list.
func (g *Gate) Authenticate(authorization string) Outcome {
	token, ok := BearerToken(authorization)
	if !ok {
		return Outcome{State: StateMissingCredential, Err: newError(KindMissingCredential, nil)}
	}
	if g.verifier == nil {
		return Outcome{State: StateUnverified, Err: newInternal(CauseKeyUnavailable, errors.New("gate has no verifier"))}
	}

	claims, err := g.verifier.Verify(token)
	if err != nil {
		return Outcome{State: StateUnverified, Err: AsError(err)}
	}
	identity, err := g.resolver.Resolve(claims)
	if err != nil {
		return Outcome{State: StateUnverified, Err: AsError(err)}
	}

	return Outcome{
		State:    StateAuthenticated,
		Security: SecurityContext{Identity: identity, Claims: claims, Token: token},
	}
}

// Authorize applies a coarse role requirement to an authenticated outcome. An empty
// allowed list accepts any authenticated identity.
func (g *Gate) Authorize(o Outcome, allowed ...Role) Outcome {
	if o.State != StateAuthenticated || len(allowed) == 0 {
		return o
	}
	if decision := Require(o.Security.Identity, allowed...); !decision.Allowed {
		return Outcome{State: StateRejected, Security: o.Security, Err: decision.Err()}
	}
	return o
}

// BearerToken strips the exact "Bearer " prefix and trims the remainder.
func BearerToken(header string) (string, bool) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	if token == "" {
		return "", false
	}
	return token, true
}
