/*
 * Copyright 2026 VisaDesk Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package diag collects host-level usage for the local data root.
package diag

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/visadesk/companion/pkg/models"
)

// Collect reports disk usage for the given path and host memory. A
// partial snapshot is returned alongside the error when one probe fails.
func Collect(path string) (models.HostUsage, error) {
	usage := models.HostUsage{DataPath: path}

	diskUsage, err := disk.Usage(path)
	if err != nil {
		return usage, fmt.Errorf("disk usage for %s: %w", path, err)
	}

	usage.DiskTotal = diskUsage.Total
	usage.DiskFree = diskUsage.Free
	usage.DiskUsedPct = diskUsage.UsedPercent

	vm, err := mem.VirtualMemory()
	if err != nil {
		return usage, fmt.Errorf("virtual memory: %w", err)
	}

	usage.MemTotal = vm.Total
	usage.MemAvailable = vm.Available

	return usage, nil
}
