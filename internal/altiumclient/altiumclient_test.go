package altiumclient

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boardcore/altiumdrc/internal/config"
)

func newTestClient(t *testing.T) (*Client, string, string) {
	t.Helper()
	dir := t.TempDir()
	reqPath := filepath.Join(dir, "altium_command.json")
	resPath := filepath.Join(dir, "altium_result.json")
	cfg := config.ClientConfig{
		RequestPath:      reqPath,
		ResponsePath:     resPath,
		RoutineTimeoutS:  1,
		HeavyTimeoutS:    2,
		MaxStaleReplies:  3,
		MaxDeleteRetries: 3,
	}
	c := New(cfg, nil)
	c.pollInterval = 10 * time.Millisecond
	c.settleDelay = 5 * time.Millisecond
	return c, reqPath, resPath
}

// respondWhenRequestAppears watches for the request file and writes back
// a response with the given action/success once it shows up, mimicking
// command_server.pas picking up and answering a command.
func respondWhenRequestAppears(t *testing.T, reqPath, resPath, action string, success bool) {
	t.Helper()
	go func() {
		for i := 0; i < 200; i++ {
			if _, err := os.Stat(reqPath); err == nil {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		_ = os.Remove(reqPath)
		data, _ := json.Marshal(map[string]any{"action": action, "success": success})
		_ = os.WriteFile(resPath, data, 0o644)
	}()
}

func TestPing_Success(t *testing.T) {
	c, reqPath, resPath := newTestClient(t)
	respondWhenRequestAppears(t, reqPath, resPath, "ping", true)

	ok, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !ok {
		t.Fatalf("Ping returned false, want true")
	}
}

func TestAddTrack_AppFailure(t *testing.T) {
	c, reqPath, resPath := newTestClient(t)
	go func() {
		for i := 0; i < 200; i++ {
			if _, err := os.Stat(reqPath); err == nil {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		_ = os.Remove(reqPath)
		data, _ := json.Marshal(map[string]any{"action": "add_track", "success": false, "error": "no PCB document open"})
		_ = os.WriteFile(resPath, data, 0o644)
	}()

	err := c.AddTrack(context.Background(), "VCC", 0, 0, 1, 1, 0.25, "Top")
	if err == nil {
		t.Fatalf("expected AppError, got nil")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *AppError, got %#v", err)
	}
	if appErr.Action != "add_track" {
		t.Fatalf("AppError.Action = %q", appErr.Action)
	}
}

func TestAwaitResponse_DiscardsStaleThenAccepts(t *testing.T) {
	c, reqPath, resPath := newTestClient(t)
	go func() {
		for i := 0; i < 200; i++ {
			if _, err := os.Stat(reqPath); err == nil {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		_ = os.Remove(reqPath)
		stale, _ := json.Marshal(map[string]any{"action": "move_component", "success": true})
		_ = os.WriteFile(resPath, stale, 0o644)
		time.Sleep(30 * time.Millisecond)
		fresh, _ := json.Marshal(map[string]any{"action": "run_drc", "success": true})
		_ = os.WriteFile(resPath, fresh, 0o644)
	}()

	err := c.RunDRC(context.Background())
	if err != nil {
		t.Fatalf("RunDRC: %v", err)
	}
}

func TestAwaitResponse_Timeout(t *testing.T) {
	c, _, _ := newTestClient(t)
	_, err := c.Ping(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestStaleResponse_BudgetExhausted(t *testing.T) {
	c, reqPath, resPath := newTestClient(t)
	c.cfg.MaxStaleReplies = 2
	go func() {
		for i := 0; i < 200; i++ {
			if _, err := os.Stat(reqPath); err == nil {
				break
			}
			time.Sleep(5 * time.Millisecond)
		}
		_ = os.Remove(reqPath)
		for i := 0; i < 5; i++ {
			stale, _ := json.Marshal(map[string]any{"action": "move_component", "success": true})
			_ = os.WriteFile(resPath, stale, 0o644)
			time.Sleep(15 * time.Millisecond)
		}
	}()

	_, err := c.Ping(context.Background())
	if !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("err = %v, want ErrStaleResponse", err)
	}
}
