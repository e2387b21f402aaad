// Package engine defines the transfer-engine boundary: the interface every
// HTTP backend (net/http, fasthttp) must implement, the transfer Spec and
// Result types exchanged with the scheduler, and the registry that resolves
// an engine implementation by name.
package engine
