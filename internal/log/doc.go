// Package log provides secure logging built on the standard slog package.
//
// SecureHandler wraps any slog.Handler and masks:
//   - values of sensitive attribute keys (cookies, authorization headers, passwords, tokens)
//   - values that look like credentials (JWTs, bearer and basic auth, private keys)
//   - user info and secret query parameters inside URLs, including URLs
//     quoted in error messages
//
// Crawl session IDs are not masked; they are needed to resume a session.
//
// # Usage
//
//	logger, closeLog, err := log.NewLogger(log.Options{
//		Verbose: verbose,
//		LogFile: filepath.Join(outputDir, "crawler.log"),
//	})
//	if err != nil {
//		return err
//	}
//	defer closeLog()
//	slog.SetDefault(logger)
//
// Console output is at Warn level unless verbose. The optional log file
// receives JSON records from Info level and is rotated by size.
package log
