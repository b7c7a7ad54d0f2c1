// Package client contains Cobra CLI commands for talking to a running relay
// over its HTTP API.
//
// The command constructors take a BaseURLFunc so the embedding binary decides
// how the API address is resolved (env, flag, or default).
package client
