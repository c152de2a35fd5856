package rabbitmq

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

// closer represents any stream which can be closed
// this is either a channel or the overall connection.
type closer interface {
	io.Closer

	IsClosed() bool // IsClosed determines if a channel or connection is closed.
}

// isClosed helper function to check whether a connection or channel is closed.
func isClosed(ch closer) bool {
	return ch == nil || ch.IsClosed()
}

// logger used for errors which are swallowed rather than returned.
var logger logrus.FieldLogger = logrus.WithField("logger", "navi.rabbitmq")

// logError helper function to log an error.
func logError(_ context.Context, err error) {
	if err == nil {
		return
	}

	logger.WithError(err).Error("amqp operation failed")
}
