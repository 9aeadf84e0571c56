package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Request layer.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrUnknownRobot = "E_UNKNOWN_ROBOT"

	// Planning outcomes.
	ErrNoPath           = "E_NO_PATH"
	ErrSeedUnresolved   = "E_SEED_UNRESOLVED"
	ErrSolverInfeasible = "E_SOLVER_INFEASIBLE"
	ErrSolverTimeout    = "E_SOLVER_TIMEOUT"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrBadRequest:       {},
	ErrUnknownRobot:     {},
	ErrNoPath:           {},
	ErrSeedUnresolved:   {},
	ErrSolverInfeasible: {},
	ErrSolverTimeout:    {},
	ErrInternal:         {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
