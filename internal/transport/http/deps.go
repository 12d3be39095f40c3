package http

import (
	"github.com/stocklaabh/verify-api/internal/application/verification"
	jwtinfra "github.com/stocklaabh/verify-api/internal/infrastructure/jwt"
)

// Deps holds the collaborators the router wires into handlers. The caller
// owns the verification service lifecycle and closes it on shutdown.
type Deps struct {
	Verification verification.Service
	JWTProvider  *jwtinfra.Provider // nil disables bearer auth (dev mode)
}
