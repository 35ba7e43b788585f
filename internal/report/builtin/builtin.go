// Package builtin registers the reporters shipped with frer.
package builtin

import (
	"sync"

	"firestige.xyz/frer/internal/log"
	"firestige.xyz/frer/internal/report"
	"firestige.xyz/frer/internal/report/console"
	"firestige.xyz/frer/internal/report/kafka"
	"firestige.xyz/frer/internal/report/summary"
)

var once sync.Once

// Register adds the console, kafka and summary reporters to the registry.
// It is safe to call more than once.
func Register() {
	once.Do(func() {
		factories := map[string]report.Factory{
			console.Name: console.New,
			kafka.Name:   kafka.New,
			summary.Name: summary.New,
		}
		for name, f := range factories {
			if err := report.Register(name, f); err != nil {
				log.GetLogger().WithError(err).Warn("reporter registration skipped")
			}
		}
	})
}
