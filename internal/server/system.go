package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/errgroup"
)

// StartTime marks process start for uptime reporting.
var StartTime = time.Now()

// systemHealthHandler collects and returns system-level metrics. The probes
// are independent so they run concurrently; CPU sampling alone takes a
// second.
func (s *Server) systemHealthHandler(c echo.Context) error {
	var (
		mu         sync.Mutex
		v          *mem.VirtualMemoryStat
		cpuPercent []float64
		d          *disk.UsageStat
		hInfo      *host.InfoStat
		dbHealth   map[string]string
	)

	var g errgroup.Group

	g.Go(func() error {
		stat, err := mem.VirtualMemory()
		if err != nil {
			return nil
		}
		mu.Lock()
		v = stat
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		// Calculated over 1 second
		pct, err := cpu.Percent(time.Second, false)
		if err != nil {
			return nil
		}
		mu.Lock()
		cpuPercent = pct
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		usage, err := disk.Usage("/")
		if err != nil {
			return nil
		}
		mu.Lock()
		d = usage
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		info, err := host.Info()
		if err != nil {
			return nil
		}
		mu.Lock()
		hInfo = info
		mu.Unlock()
		return nil
	})

	if s.db != nil {
		g.Go(func() error {
			h := s.db.Health()
			mu.Lock()
			dbHealth = h
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()

	resp := map[string]interface{}{
		"status": "online",
		"runtime": map[string]interface{}{
			"uptime":     time.Since(StartTime).String(),
			"start_time": StartTime.Format(time.RFC3339),
		},
		"knowledge_loaded": s.kb.Loaded(),
	}

	if hInfo != nil {
		resp["runtime"].(map[string]interface{})["os"] = hInfo.OS
		resp["runtime"].(map[string]interface{})["platform"] = hInfo.Platform
		resp["runtime"].(map[string]interface{})["arch"] = hInfo.KernelArch
		resp["runtime"].(map[string]interface{})["hostname"] = hInfo.Hostname
	}

	if len(cpuPercent) > 0 {
		cpuInfo := map[string]interface{}{
			"usage_percent": fmt.Sprintf("%.2f%%", cpuPercent[0]),
		}
		if hInfo != nil {
			cpuInfo["cores"] = hInfo.Procs
		}
		resp["cpu"] = cpuInfo
	}

	if v != nil {
		resp["memory"] = map[string]interface{}{
			"total_gb":     fmt.Sprintf("%.2f GB", float64(v.Total)/1024/1024/1024),
			"used_gb":      fmt.Sprintf("%.2f GB", float64(v.Used)/1024/1024/1024),
			"used_percent": fmt.Sprintf("%.2f%%", v.UsedPercent),
			"free_gb":      fmt.Sprintf("%.2f GB", float64(v.Free)/1024/1024/1024),
		}
	}

	if d != nil {
		resp["disk"] = map[string]interface{}{
			"total_gb":     fmt.Sprintf("%.2f GB", float64(d.Total)/1024/1024/1024),
			"used_gb":      fmt.Sprintf("%.2f GB", float64(d.Used)/1024/1024/1024),
			"used_percent": fmt.Sprintf("%.2f%%", d.UsedPercent),
		}
	}

	if dbHealth != nil {
		resp["database"] = dbHealth
	}

	return c.JSON(http.StatusOK, resp)
}
