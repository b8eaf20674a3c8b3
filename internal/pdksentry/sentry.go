// Package pdksentry wraps github.com/getsentry/sentry-go for the core's
// boundary error reporting, grounded on the teacher's apps/cli/internal/sentry
// package. Init is a no-op unless SENTRY_DSN is set, so the core never
// requires a Sentry project to run.
package pdksentry

import (
	"os"
	"time"

	"github.com/getsentry/sentry-go"
)

const flushTimeout = 2 * time.Second

// Init initializes the SDK tagged with version. If SENTRY_DSN is unset,
// every subsequent Capture* call is a no-op. Returns a cleanup function to
// defer at the process entrypoint.
func Init(version string) func() {
	dsn := os.Getenv("SENTRY_DSN")
	if dsn == "" {
		return func() {}
	}

	env := os.Getenv("SENTRY_ENVIRONMENT")
	if env == "" {
		env = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Release:          "pdk@" + version,
		Environment:      env,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return func() {}
	}

	return func() {
		sentry.Flush(flushTimeout)
	}
}

// CaptureError reports err, if Sentry is configured. Called by the run
// command when the engine returns an error.
func CaptureError(err error) {
	if err == nil {
		return
	}
	sentry.CaptureException(err)
}

// RecoverAndPanic recovers a panic, reports it, then re-panics. Deferred
// at the cmd/pdk entrypoint so no panic in a step executor or job runner
// is ever silently lost.
func RecoverAndPanic() {
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		sentry.Flush(flushTimeout)
		panic(r)
	}
}

// AddBreadcrumb adds context for the next captured error/panic.
func AddBreadcrumb(category, message string) {
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
	})
}
