package selftest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joss/toolgate/internal/protocol"
	"github.com/joss/toolgate/internal/store"
	"github.com/joss/toolgate/internal/tool"
)

// Component statuses.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// ComponentStatus represents health of a single component
type ComponentStatus struct {
	Status  string `json:"status"`
	Latency int64  `json:"latency_ms,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status     string                     `json:"status"` // healthy, degraded, unhealthy
	Uptime     string                     `json:"uptime"`
	Components map[string]ComponentStatus `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// Healthy reports whether no component failed.
func (h *HealthStatus) Healthy() bool {
	return h.Status != "unhealthy"
}

// Probe is one named health check.
type Probe struct {
	Name  string
	Check func(context.Context) ComponentStatus
}

var startTime = time.Now()

// CheckHealth runs every probe concurrently.
func CheckHealth(ctx context.Context, probes ...Probe) *HealthStatus {
	status := &HealthStatus{
		Status:     "healthy",
		Uptime:     formatUptime(time.Since(startTime)),
		Components: make(map[string]ComponentStatus),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, p := range probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			result := p.Check(ctx)
			mu.Lock()
			defer mu.Unlock()
			status.Components[p.Name] = result
			if result.Status == StatusError {
				status.Status = "unhealthy"
			} else if result.Status == StatusDegraded && status.Status == "healthy" {
				status.Status = "degraded"
			}
		}(p)
	}

	wg.Wait()
	return status
}

func failed(start time.Time, err error) ComponentStatus {
	return ComponentStatus{
		Status:  StatusError,
		Latency: time.Since(start).Milliseconds(),
		Error:   err.Error(),
	}
}

// StoreProbe pings the execution store. Slow answers are degraded.
func StoreProbe(s store.Store) Probe {
	return Probe{Name: "store", Check: func(ctx context.Context) ComponentStatus {
		start := time.Now()

		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := s.Ping(ctx); err != nil {
			return failed(start, err)
		}

		latency := time.Since(start).Milliseconds()
		status := StatusOK
		if latency > 100 {
			status = StatusDegraded
		}
		return ComponentStatus{Status: status, Latency: latency}
	}}
}

const probeContent = "toolgate selftest probe"

// ProtocolProbe serves the files catalog over in-memory pipes and drives
// it through initialize, list_tools and a Read call.
func ProtocolProbe() Probe {
	return Probe{Name: "protocol", Check: func(ctx context.Context) ComponentStatus {
		start := time.Now()
		if err := roundTrip(ctx); err != nil {
			return failed(start, err)
		}
		return ComponentStatus{Status: StatusOK, Latency: time.Since(start).Milliseconds()}
	}}
}

func roundTrip(ctx context.Context) error {
	dir, err := os.MkdirTemp("", "toolgate-selftest-")
	if err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	if err := os.WriteFile(filepath.Join(dir, "probe.txt"), []byte(probeContent), 0644); err != nil {
		return fmt.Errorf("write probe: %w", err)
	}

	reg, err := tool.Catalog(tool.CategoryFiles, tool.Deps{WorkDir: dir})
	if err != nil {
		return err
	}
	srv := protocol.NewServer(reg, protocol.WithServerInfo("toolgate-selftest", "dev"))

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	done := make(chan error, 1)
	go func() {
		err := srv.Run(ctx, reqR, respW)
		respW.CloseWithError(io.EOF)
		done <- err
	}()

	err = drive(ctx, protocol.NewClient(respR, reqW), len(reg.List()))
	reqW.Close()
	respR.Close()
	if runErr := <-done; err == nil && runErr != nil {
		err = fmt.Errorf("server: %w", runErr)
	}
	return err
}

func drive(ctx context.Context, c *protocol.Client, wantTools int) error {
	var init protocol.InitializeResult
	if err := c.Call(ctx, protocol.MethodInitialize, map[string]any{}, &init); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if init.ProtocolVersion != protocol.ProtocolVersion {
		return fmt.Errorf("initialize: unexpected protocol version %q", init.ProtocolVersion)
	}

	var list protocol.ListToolsResult
	if err := c.Call(ctx, protocol.MethodListTools, nil, &list); err != nil {
		return fmt.Errorf("list_tools: %w", err)
	}
	if len(list.Tools) != wantTools {
		return fmt.Errorf("list_tools: got %d tools, want %d", len(list.Tools), wantTools)
	}

	var call protocol.CallToolResult
	params := protocol.CallToolParams{Name: "Read", Arguments: map[string]any{"file_path": "probe.txt"}}
	if err := c.Call(ctx, protocol.MethodCallTool, params, &call); err != nil {
		return fmt.Errorf("call_tool: %w", err)
	}
	if call.IsError || len(call.Content) != 1 || !strings.Contains(call.Content[0].Text, probeContent) {
		return fmt.Errorf("call_tool: unexpected result %+v", call)
	}

	if err := c.Call(ctx, "no_such_method", nil, nil); err == nil {
		return fmt.Errorf("unknown method was not rejected")
	}
	return nil
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd%dh%dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
