// Package logger provides the structured logrus logger shared by the pipeline
// and the MCP server. The level comes from TLC_MCP_LOG_LEVEL.
package logger
