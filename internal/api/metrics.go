package api

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

const mb = 1 << 20

// ProcessStats - снимок состояния процесса для /api/stats.
type ProcessStats struct {
	Uptime     string  `json:"uptime"`
	ServerTime int64   `json:"server_time"`
	HeapMB     float64 `json:"memory_mb"`
	RSSMB      float64 `json:"rss_mb"`
	CPUPercent float64 `json:"cpu_percent"`
	SysMB      float64 `json:"sys_mb"`
	TotalMB    float64 `json:"total_alloc_mb"`
	NumGC      uint32  `json:"num_gc"`
	Goroutines int     `json:"goroutines"`
}

// ServerMetrics снимает метрики процесса через gopsutil.
type ServerMetrics struct {
	started time.Time

	once sync.Once
	proc *process.Process
}

func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{started: time.Now()}
}

// handle лениво открывает текущий процесс; nil, если ОС его не отдаёт.
func (sm *ServerMetrics) handle() *process.Process {
	sm.once.Do(func() {
		p, err := process.NewProcess(int32(os.Getpid()))
		if err == nil {
			sm.proc = p
		}
	})
	return sm.proc
}

// Snapshot собирает ProcessStats. Недоступные через ОС значения остаются нулевыми.
func (sm *ServerMetrics) Snapshot() ProcessStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	st := ProcessStats{
		Uptime:     FormatUptime(time.Since(sm.started)),
		ServerTime: time.Now().Unix(),
		HeapMB:     float64(ms.HeapAlloc) / mb,
		SysMB:      float64(ms.Sys) / mb,
		TotalMB:    float64(ms.TotalAlloc) / mb,
		NumGC:      ms.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}

	if p := sm.handle(); p != nil {
		// RSS после выгрузки буферов заметно больше кучи.
		if info, err := p.MemoryInfo(); err == nil {
			st.RSSMB = float64(info.RSS) / mb
		}
		if pct, err := p.CPUPercent(); err == nil {
			st.CPUPercent = pct
			return st
		}
	}
	if all, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(all) > 0 {
		st.CPUPercent = all[0]
	}
	return st
}

// FormatUptime форматирует длительность как "1д 2ч 3м 4с", опуская старшие нули
func FormatUptime(d time.Duration) string {
	secs := int(d.Seconds())
	parts := []struct {
		n    int
		unit string
	}{
		{secs / 86400, "д"},
		{secs / 3600 % 24, "ч"},
		{secs / 60 % 60, "м"},
		{secs % 60, "с"},
	}
	out := ""
	for i, p := range parts {
		if out == "" && p.n == 0 && i < len(parts)-1 {
			continue
		}
		if out != "" {
			out += " "
		}
		out += fmt.Sprintf("%d%s", p.n, p.unit)
	}
	return out
}
