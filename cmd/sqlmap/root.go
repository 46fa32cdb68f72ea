package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/goliatone/go-sqlmap/logging"
	sqllogrus "github.com/goliatone/go-sqlmap/logging/logrus"
	sqlzap "github.com/goliatone/go-sqlmap/logging/zap"
)

type globalOptions struct {
	logger   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "sqlmap",
		Short:         "Run mapped SQL statements through the two level cache",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.logger, "logger", "zap", "log backend: zap, logrus or none")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "minimum log level")

	root.AddCommand(newRunCmd(opts))
	return root
}

// newLogger builds the engine logger. The returned func flushes buffered entries.
func newLogger(opts *globalOptions, errOut io.Writer) (logging.Logger, func(), error) {
	switch opts.logger {
	case "zap":
		lvl, err := zapcore.ParseLevel(opts.logLevel)
		if err != nil {
			return nil, nil, err
		}
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		core := zapcore.NewCore(enc, zapcore.AddSync(errOut), lvl)
		l := zap.New(core)
		return sqlzap.ZapLogger{L: l}, func() { _ = l.Sync() }, nil
	case "logrus":
		lvl, err := logrus.ParseLevel(opts.logLevel)
		if err != nil {
			return nil, nil, err
		}
		l := logrus.New()
		l.SetOutput(errOut)
		l.SetLevel(lvl)
		return sqllogrus.LogrusLogger{E: logrus.NewEntry(l)}, func() {}, nil
	case "none":
		return logging.Nop{}, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown logger %q", opts.logger)
	}
}
