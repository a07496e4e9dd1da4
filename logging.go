/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = logDate
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: logDate})

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// logServe records a served response at debug level.
func logServe(what string, r *http.Request, written int, startTime time.Time) {
	log.Debug().
		Str("page", what).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("size", humanReadableSize(int64(written))).
		Str("client", realIP(r)).
		Dur("took", time.Since(startTime).Round(time.Microsecond)).
		Msg("served")
}
