// Package logx provides the structured logging service for the daemon.
//
// It fans out to console, JSON file, and a rate-limited Slack channel,
// and supports hot config swaps via Apply() without replacing loggers
// already handed out to components.
package logx
