// Package hook runs the pre-tool-use decision for each tool invocation.
//
// The Orchestrator applies the session's permission mode, then the settings
// rules. Allow and deny are returned directly. Ask is deferred: the tool
// call id is stored in the Cache under a stable hash of the tool input, and
// a separate confirmation flow later resolves it through Resolver.
package hook
