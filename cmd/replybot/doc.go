// Package main hosts the replybot CLI.
//
// The cobra command tree resolves configuration once, builds the logger, and
// hands the wired components to pkg/bot. Commands stay thin: new behaviour
// belongs in the pkg/ packages first.
package main
