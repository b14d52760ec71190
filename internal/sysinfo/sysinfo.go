package sysinfo

import (
	"log"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/mem"
)

// SysInfo saves the basic system information
type SysInfo struct {
	Platform string `json:"platform"`
	CPU      string `json:"cpu"`
	RAM      string `json:"ram"`
}

// Collect gathers host platform, CPU model and total memory.
// Fields that cannot be read are left as "unknown".
func Collect() SysInfo {
	info := SysInfo{Platform: runtime.GOOS, CPU: "unknown", RAM: "unknown"}

	if hostStat, err := host.Info(); err == nil && hostStat.Platform != "" {
		info.Platform = hostStat.Platform
	} else if err != nil {
		log.Printf("[SYSINFO] host info unavailable: %v", err)
	}

	if cpuStat, err := cpu.Info(); err == nil && len(cpuStat) > 0 && cpuStat[0].ModelName != "" {
		info.CPU = cpuStat[0].ModelName
	} else if err != nil {
		log.Printf("[SYSINFO] cpu info unavailable: %v", err)
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		info.RAM = humanize.IBytes(vmStat.Total)
	} else {
		log.Printf("[SYSINFO] memory info unavailable: %v", err)
	}

	return info
}
