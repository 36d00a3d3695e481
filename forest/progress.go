package forest

import (
	"time"

	"github.com/sirupsen/logrus"
)

// ProgressSink receives tree-growth progress reports during Plant. Forests
// with thousands of trees and a long per-tree growth time need this to give
// operators a heartbeat rather than a multi-minute silent block; eta is
// extrapolated linearly from the elapsed time and the trees done so far.
type ProgressSink interface {
	OnProgress(done, total int, elapsed, eta time.Duration)
}

// LogrusProgress reports planting progress through a *logrus.Logger at Info
// level every ReportEvery trees (and always on the final tree).
type LogrusProgress struct {
	Log         *logrus.Logger
	ReportEvery int
}

func (p *LogrusProgress) OnProgress(done, total int, elapsed, eta time.Duration) {
	if p.Log == nil {
		return
	}
	every := p.ReportEvery
	if every <= 0 {
		every = 1
	}
	if done%every == 0 || done == total {
		p.Log.WithFields(logrus.Fields{
			"done":    done,
			"total":   total,
			"elapsed": elapsed,
			"eta":     eta,
		}).Info("trees planted")
	}
}

// NoopProgress discards progress reports; the default for tests and
// library callers that don't want logging.
type NoopProgress struct{}

func (NoopProgress) OnProgress(done, total int, elapsed, eta time.Duration) {}
