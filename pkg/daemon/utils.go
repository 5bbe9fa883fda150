package daemon

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// quietPaths are polled often and only logged at trace level.
var quietPaths = map[string]bool{
	"/metrics": true,
	"/status":  true,
}

// ginLogger logs every request of the local API through logrus.
func ginLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Handlers may rewrite the path.
		path := c.Request.URL.Path
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		statusCode := c.Writer.Status()
		entry := logger.WithFields(logrus.Fields{
			"statusCode": statusCode,
			"latencyMs":  elapsed.Milliseconds(),
			"method":     c.Request.Method,
			"path":       path,
			"dataLength": max(c.Writer.Size(), 0),
		})

		if len(c.Errors) > 0 {
			entry.Error(c.Errors.ByType(gin.ErrorTypePrivate).String())
			return
		}

		switch {
		case statusCode >= http.StatusInternalServerError:
			entry.Error(fmt.Sprintf("%s %s %d", c.Request.Method, path, statusCode))
		case statusCode >= http.StatusBadRequest:
			entry.Warn(fmt.Sprintf("%s %s %d", c.Request.Method, path, statusCode))
		case path == "/events":
			entry.Debugf("event stream closed after %s", elapsed.Round(time.Second))
		case quietPaths[path]:
			entry.Tracef("%s %s %d", c.Request.Method, path, statusCode)
		default:
			entry.Debugf("%s %s %d (%dms)", c.Request.Method, path, statusCode, elapsed.Milliseconds())
		}
	}
}
