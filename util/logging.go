package util

import (
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	rootLogger *log.Logger
	loggerOnce sync.Once
)

// Logger returns the process wide logger. Components derive their own with WithPrefix.
func Logger() *log.Logger {
	loggerOnce.Do(func() {
		rootLogger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Level:           log.InfoLevel,
		})
	})
	return rootLogger
}

// SetLogLevel applies a textual level such as "debug" or "warn".
func SetLogLevel(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger().SetLevel(lvl)
	return nil
}
