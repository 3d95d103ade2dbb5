package gateway

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SystemStats is the host and process snapshot pushed to dashboard clients
// on the "stats" channel.
type SystemStats struct {
	CPULoad1    float64 `json:"cpu_load_1"`
	CPUPercent  float64 `json:"cpu_percent"`
	CPUCores    int     `json:"cpu_cores"`
	MemUsedMB   float64 `json:"mem_used_mb"`
	MemTotalMB  float64 `json:"mem_total_mb"`
	HeapAllocMB float64 `json:"heap_alloc_mb"`
	GCRuns      uint32  `json:"gc_runs"`
	Goroutines  int     `json:"goroutines"`
	UptimeSec   int64   `json:"uptime_sec"`
	WSClients   int     `json:"ws_clients"`
	LatencyP50  float64 `json:"latency_p50_ms"`
	LatencyP95  float64 `json:"latency_p95_ms"`
	LatencyP99  float64 `json:"latency_p99_ms"`
	TS          string  `json:"ts"`
}

type cpuSample struct {
	idle  uint64
	total uint64
}

// statsCollector remembers the previous /proc/stat sample so CPU usage is
// reported over the last interval.
type statsCollector struct {
	mu    sync.Mutex
	start time.Time
	prev  cpuSample
}

func newStatsCollector(start time.Time) *statsCollector {
	return &statsCollector{start: start}
}

// Collect gathers process stats and, on Linux, host CPU and memory usage.
func (sc *statsCollector) Collect() SystemStats {
	s := SystemStats{
		Goroutines: runtime.NumGoroutine(),
		UptimeSec:  int64(time.Since(sc.start).Seconds()),
		TS:         time.Now().UTC().Format(time.RFC3339Nano),
		CPUCores:   runtime.NumCPU(),
	}

	cur := readCPUSample()
	sc.mu.Lock()
	if sc.prev.total > 0 && cur.total > sc.prev.total {
		dTotal := float64(cur.total - sc.prev.total)
		dIdle := float64(cur.idle - sc.prev.idle)
		s.CPUPercent = (1.0 - dIdle/dTotal) * 100.0
	}
	sc.prev = cur
	sc.mu.Unlock()

	if fields := readFields("/proc/loadavg", ""); len(fields) >= 1 {
		s.CPULoad1, _ = strconv.ParseFloat(fields[0], 64)
	}
	total := readMemKB("MemTotal:")
	available := readMemKB("MemAvailable:")
	if total > 0 {
		s.MemTotalMB = float64(total) / 1024
		s.MemUsedMB = float64(total-available) / 1024
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapAllocMB = float64(ms.HeapAlloc) / 1024 / 1024
	s.GCRuns = ms.NumGC
	return s
}

func readCPUSample() cpuSample {
	fields := readFields("/proc/stat", "cpu ")
	if len(fields) < 5 {
		return cpuSample{}
	}
	var total, idle uint64
	for i := 1; i < len(fields); i++ {
		v, _ := strconv.ParseUint(fields[i], 10, 64)
		total += v
		if i == 4 {
			idle = v
		}
	}
	return cpuSample{idle: idle, total: total}
}

func readMemKB(prefix string) uint64 {
	fields := readFields("/proc/meminfo", prefix)
	if len(fields) < 2 {
		return 0
	}
	v, _ := strconv.ParseUint(fields[1], 10, 64)
	return v
}

// readFields returns the whitespace-split fields of the first line of path
// starting with prefix. Missing files yield nil.
func readFields(path, prefix string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, prefix) {
			return strings.Fields(line)
		}
	}
	return nil
}
