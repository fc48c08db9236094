// Package flowerr provides structured error handling for authorization flows.
//
// Every terminal failure delivered to a flow session is a *flowerr.Error
// carrying a typed code, an optional human-readable message, optional
// structured details, and an optional wrapped underlying error.
//
// # Basic Usage
//
// Creating errors with codes:
//
//	import "github.com/tendant/simple-authagent/pkg/flowerr"
//
//	// Terminal flow outcomes
//	err := flowerr.AgentOpenFailed(launchErr)
//	err := flowerr.UserCanceled(agentErr)
//	err := flowerr.ProgramCanceled()
//
//	// Collaborator errors
//	err := flowerr.New(flowerr.ErrCodeInvalidRequest, "client id is required")
//	err := flowerr.Wrapf(parseErr, flowerr.ErrCodeInvalidRequest, "bad redirect uri: %s", uri)
//
// Inspecting errors:
//
//	if flowerr.IsCode(err, flowerr.ErrCodeUserCanceled) {
//		// user dismissed the agent
//	}
//
// Wrapped errors participate in errors.Is / errors.As chains through Unwrap.
package flowerr
