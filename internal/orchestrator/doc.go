// Package orchestrator drives every rank of a hub/spoke run through the
// same lifecycle: build the cylinder and role communicators, construct the
// rank's engine and SPCommunicator, open the shared windows, run main,
// terminate, finalize behind a global barrier, and release the windows.
//
// Run is executed identically by every rank (SPMD). Launch runs it over an
// in-process world and collects every rank's result.
package orchestrator
