// Package dynamo provides the core value types shared by the DAE driver.
//
// The package defines the problem shape and the error taxonomy used by
// every other package:
//
//   - [Dimensions]: state, algebraic and parameter counts of a model
//   - [Horizon]: start, stop and output step of a run
//   - [SimulationState]: x, xd, y and p at a single instant
//   - [SimulationError]: classified error carrying op, path and solver context
//
// # Error classes
//
// Errors are grouped into configuration, resource and numerical classes.
// All three are fatal for a run; [ExitCode] maps them to process exit codes
// so that only the command entry point decides how the process ends.
//
//	in, err := initfile.Load(path, dims)
//	if err != nil {
//		os.Exit(dynamo.ExitCode(err))
//	}
package dynamo
