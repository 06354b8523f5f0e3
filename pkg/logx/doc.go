// Package logx configures joinerbot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - Optional channel mirror sink (min-level + rate limiting) that
//     forwards operator-relevant lines to the bot's delivery channel
package logx
