package www

import (
	"net/http"
	"time"
)

func NewSysInfoHandler(sysInfo SysInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, struct {
			SysInfo
			Uptime string `json:"uptime"`
		}{
			SysInfo: sysInfo,
			Uptime:  time.Since(sysInfo.StartedAt).Round(time.Second).String(),
		})
	}
}
