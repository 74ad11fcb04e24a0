// Package logging builds the structured loggers used across callisto.
//
// New returns a *slog.Logger whose handler:
//   - writes JSON, text or console output at the configured level
//   - adds request fields stored in the context (request id, section, trace)
//   - redacts secrets such as User-Password before they reach the output
//
// # Usage
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json", Redact: true})
//	if err != nil {
//	    return err
//	}
//	ctx = logging.WithRequestID(ctx, req.ID)
//	logger.InfoContext(ctx, "request finished", "rcode", "ok")
//
// Attribute values are redacted when their key names a secret (password,
// secret, token, ...) or when a string value matches one of the redaction
// patterns. Additional keys and patterns can be configured.
package logging
