// Package common provides the logging infrastructure shared by the sync
// engine, the Telegram bot, and the HTTP API: a global logrus instance with
// output routing that keeps error-and-above entries on stderr so a
// container's crash-loop detector and log aggregator can treat them
// differently from routine info/debug noise.
package common

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// severityStderr lists the logrus level markers routed to stderr, in both
// the text and the JSON formatter's spelling. Error alone isn't enough: a
// scheduler job or sync run that hits logger.Fatal still needs its line on
// stderr, not lost in stdout's routine traffic.
var severityStderr = [][]byte{
	[]byte("level=error"),
	[]byte("level=fatal"),
	[]byte("level=panic"),
	[]byte(`"level":"error"`),
	[]byte(`"level":"fatal"`),
	[]byte(`"level":"panic"`),
}

// OutputSplitter routes formatted log lines to stderr or stdout by
// scanning for a severity marker, rather than holding a logrus.Level the
// formatter would have to be taught to stamp consistently across JSON and
// text output.
type OutputSplitter struct{}

func (splitter *OutputSplitter) Write(p []byte) (n int, err error) {
	for _, marker := range severityStderr {
		if bytes.Contains(p, marker) {
			return os.Stderr.Write(p)
		}
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide logrus instance. cli/run.go sets its level
// and formatter from the LOG_LEVEL/LOG_FORMAT settings at startup; every other package logs
// through this instance rather than constructing its own.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
