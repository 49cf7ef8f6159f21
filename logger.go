package mert

import (
	"github.com/cactus/go-statsd-client/statsd"
	logging "github.com/op/go-logging"
)

// Call this clog instead of log so it doesn't confuse goimports.
var clog = logging.MustGetLogger("mert")

// Use a global statsd client.
var stats statsd.Statter

func init() {
	// err from NewNoop is always nil
	stats, _ = statsd.NewNoop()
}

// SetStatter configures a statsd client for mert use.
func SetStatter(s statsd.Statter) {
	stats = s
}
