// Package handlers contains the response-producing handlers the router
// dispatches to: registered function handlers (with return-value
// normalization), the on-disk file/directory/as-is handlers, the script
// handler backed by the sandbox, and the wrapper-document generator.
package handlers
