package daemon

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ergosense/ergosense/pkg/config"
	"github.com/ergosense/ergosense/pkg/status"
	"github.com/ergosense/ergosense/pkg/version"
)

// CyclesResponse is returned by GET /cycles.
type CyclesResponse struct {
	Interval   string   `json:"interval"`
	Records    []string `json:"records"`
	Continuous int      `json:"continuous"`
	// Last is the start of the last periodic cycle, empty before the first.
	Last string `json:"last,omitempty"`
}

func getStatus(c *gin.Context) {
	snap := runner.Last()
	if snap == nil {
		err := errors.New("no cycle completed yet")
		c.IndentedJSON(http.StatusServiceUnavailable, err.Error())
		_ = c.AbortWithError(http.StatusServiceUnavailable, err)
		return
	}
	c.IndentedJSON(http.StatusOK, snap)
}

func getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(conf)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func setErrorPolicy(c *gin.Context) {
	var s string
	if err := c.BindJSON(&s); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	p, err := status.ParseErrorPolicy(s)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetErrorPolicy(p)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set error policy to %s", p)

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set error policy to %s", p))
}

func setAlarm(c *gin.Context) {
	var enabled bool
	if err := c.BindJSON(&enabled); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conf.SetAlarmEnabled(enabled)
	if err := conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	logrus.Infof("set alarm enabled to %t", enabled)

	c.IndentedJSON(http.StatusCreated, "ok")
}

// runCycle runs one cycle immediately. It waits for a running periodic cycle
// to finish first.
func runCycle(c *gin.Context) {
	snap, err := runner.RunCycle(c.Request.Context())
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, snap)
}

func getCycles(c *gin.Context) {
	interval := loopRecorder.Interval()
	resp := CyclesResponse{
		Interval:   interval.String(),
		Records:    loopRecorder.GetRecordsString(),
		Continuous: loopRecorder.GetRecordsIn(continuousWindow(interval)),
	}
	if last := loopRecorder.GetLastRecord(); !last.IsZero() {
		resp.Last = last.Format(time.RFC3339)
	}
	c.IndentedJSON(http.StatusOK, resp)
}

// getEvents streams hub events as server-sent events until the client goes
// away. A heartbeat comment keeps idle connections open.
func getEvents(c *gin.Context) {
	ch := sseHub.Subscribe()
	defer sseHub.Unsubscribe(ch)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Content-Type", "text/event-stream")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, string(ev.Data))
			return true
		case <-heartbeat.C:
			_, err := io.WriteString(w, ": ping\n\n")
			return err == nil
		}
	})
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
