package daemon

import "strings"

var (
	unitName = "ergosense.service"
	unitPath = "/etc/systemd/system/" + unitName
)

// unitTemplate is filled in by RenderUnit.
const unitTemplate = `[Unit]
Description=ergosense desk posture and environment monitor
Wants=network-online.target
After=network-online.target

[Service]
Type=simple
ExecStart=/path/to/ergosense daemon --config=/path/to/config --daemon-socket=/path/to/socket
ExecReload=/bin/kill -HUP $MAINPID
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

// RenderUnit returns the systemd unit running exePath as the daemon.
func RenderUnit(exePath, configPath, socketPath string) string {
	return strings.NewReplacer(
		"/path/to/ergosense", exePath,
		"/path/to/config", configPath,
		"/path/to/socket", socketPath,
	).Replace(unitTemplate)
}
