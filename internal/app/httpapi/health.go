package httpapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

type hostStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	Load1         float64 `json:"load1,omitempty"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	body := map[string]any{
		"status":     "ok",
		"version":    h.opts.Version,
		"uptime":     time.Since(h.started).Round(time.Second).String(),
		"goroutines": runtime.NumGoroutine(),
		"heap_bytes": ms.HeapAlloc,
	}

	// Host stats are best effort; some sandboxes do not expose them.
	var host hostStats
	if pct, err := cpu.PercentWithContext(r.Context(), 0, false); err == nil && len(pct) > 0 {
		host.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		host.MemoryPercent = vm.UsedPercent
	}
	if avg, err := load.AvgWithContext(r.Context()); err == nil {
		host.Load1 = avg.Load1
	}
	body["host"] = host

	writeJSON(w, http.StatusOK, body)
}
