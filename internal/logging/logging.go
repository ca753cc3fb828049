package logging

import (
	"io"
	"net"
	"os"

	logrustash "github.com/bshuster-repo/logrus-logstash-hook"
	"github.com/sirupsen/logrus"

	"cafelist/internal/config"
)

// New builds the JSON logger used across the service. When a logstash
// address is configured, entries are also shipped there over TCP; the
// returned closer releases that connection.
func New(cfg config.LogConfig, out io.Writer) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if out == nil {
		out = os.Stdout
	}
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		logger.WithField("level", cfg.Level).Warn("Unknown log level, using info")
	}
	logger.SetLevel(level)

	if cfg.LogstashAddr == "" {
		return logger, noConn{}, nil
	}

	conn, err := net.Dial("tcp", cfg.LogstashAddr)
	if err != nil {
		return nil, nil, err
	}
	logger.AddHook(logrustash.New(conn, logrustash.DefaultFormatter(logrus.Fields{"type": "cafelist"})))
	logger.WithField("addr", cfg.LogstashAddr).Info("Shipping logs to logstash")

	return logger, conn, nil
}

// noConn is returned when no logstash connection was opened.
type noConn struct{}

func (noConn) Close() error { return nil }
