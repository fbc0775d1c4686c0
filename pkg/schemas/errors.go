package schemas

import "fmt"

// NotFoundError is returned when a model has no resolvable version in the
// registry. It aborts the pipeline before any serving resource is touched.
type NotFoundError struct {
	Model string // Full model name which could not be resolved
}

// Error implements the error interface.
func (e NotFoundError) Error() string {
	return fmt.Sprintf("no versions found for model '%s'", e.Model)
}

// ValidationError is returned when a canary query fails during pre-deployment
// validation: the model did not load, a prediction raised, or the response
// carried no output. It is always fatal to the pipeline.
type ValidationError struct {
	Query string // Description or content of the failing canary query
	Err   error  // Underlying cause, nil when the response was merely empty
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("model validation failed on query '%s': %v", e.Query, e.Err)
	}

	return fmt.Sprintf("model validation failed on query '%s': empty or invalid response", e.Query)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e ValidationError) Unwrap() error {
	return e.Err
}

// AgentDeploymentError wraps any serving platform failure during endpoint
// creation, readiness waiting, permission grants, or retention cleanup when
// the caller asked cleanup failures to be raised.
type AgentDeploymentError struct {
	Op  string // The operation which failed (e.g. "create endpoint", "await ready")
	Err error  // Underlying platform error
}

// Error implements the error interface.
func (e AgentDeploymentError) Error() string {
	return fmt.Sprintf("agent deployment failed (%s): %v", e.Op, e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e AgentDeploymentError) Unwrap() error {
	return e.Err
}

// AgentMonitoringError wraps scorer registration failures. It is soft by
// default: the driver logs it and continues unless monitoring failures are
// configured to be fatal.
type AgentMonitoringError struct {
	Err error // Underlying tracker error
}

// Error implements the error interface.
func (e AgentMonitoringError) Error() string {
	return fmt.Sprintf("agent monitoring setup failed: %v", e.Err)
}

// Unwrap exposes the underlying cause for errors.Is/As.
func (e AgentMonitoringError) Unwrap() error {
	return e.Err
}
