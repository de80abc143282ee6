// Package altiumclient speaks the file-based request/response protocol used
// to drive a live Altium Designer instance running command_server.pas
// (spec §4.9). It is grounded directly on
// original_source/tools/altium_script_client.py: every command is written
// as a small JSON file, Altium's script picks it up and writes a JSON
// result file back, and the two sides rendezvous entirely through the
// filesystem. Out-of-process control of the running Altium application
// itself stays out of scope; this package only implements the client side
// of that file protocol.
package altiumclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sony/gobreaker"
	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"

	"github.com/boardcore/altiumdrc/internal/config"
	"github.com/boardcore/altiumdrc/internal/logging"
	"github.com/boardcore/altiumdrc/internal/metrics"
)

// Sentinel errors. Wrap these with fmt.Errorf("...: %w", ...) so callers
// can still errors.Is against them.
var (
	// ErrContainerUnreachable means the circuit is open: Altium has not
	// consumed or answered enough recent commands to trust another one.
	ErrContainerUnreachable = errors.New("altiumclient: container unreachable")
	// ErrStaleResponse means every reply observed during the wait window
	// echoed a different action than the one sent, and the stale-reply
	// budget ran out.
	ErrStaleResponse = errors.New("altiumclient: too many stale responses")
	// ErrTimeout means no response (stale or otherwise) arrived in time.
	ErrTimeout = errors.New("altiumclient: timed out waiting for response")
)

// AppError wraps a well-formed {"success": false, "error": "..."} reply
// from the Altium side, as opposed to a transport-level failure.
type AppError struct {
	Action  string
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("altiumclient: %s failed: %s", e.Action, e.Message)
}

// heavyActions take materially longer than routine edits because Altium
// follows them with SavePCBFile + ExportPCBInfo.
var heavyActions = map[string]bool{
	"create_rule":     true,
	"update_rule":     true,
	"delete_rule":     true,
	"export_pcb_info": true,
}

// Response is a decoded result file. Extra carries any fields beyond
// action/success/error (e.g. a ping's server version), kept generic since
// each action's payload shape differs.
type Response struct {
	Action  string
	Success bool
	Error   string
	Extra   map[string]any
}

func (r Response) AsAppError() error {
	if r.Success {
		return nil
	}
	return &AppError{Action: r.Action, Message: r.Error}
}

func decodeResponse(data []byte) (Response, error) {
	var extra map[string]any
	if err := json.Unmarshal(data, &extra); err != nil {
		return Response{}, err
	}
	r := Response{Extra: extra}
	if v, ok := extra["action"].(string); ok {
		r.Action = v
		delete(extra, "action")
	}
	if v, ok := extra["success"].(bool); ok {
		r.Success = v
		delete(extra, "success")
	}
	if v, ok := extra["error"].(string); ok {
		r.Error = v
		delete(extra, "error")
	}
	return r, nil
}

// Client drives command_server.pas over the filesystem.
type Client struct {
	cfg     config.ClientConfig
	log     *logging.Helper
	breaker *gobreaker.CircuitBreaker[Response]
	limiter *limiter.TokenBucket

	pollInterval time.Duration
	settleDelay  time.Duration
}

// New builds a Client from the given config. log may be nil.
func New(cfg config.ClientConfig, log *logging.Helper) *Client {
	if log == nil {
		log = logging.NewNop()
	}
	breaker := gobreaker.NewCircuitBreaker[Response](gobreaker.Settings{
		Name:        "altium_script_server",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("altiumclient: circuit %s: %s -> %s", name, from, to)
		},
	})
	tb, _ := limiter.NewTokenBucket(
		limiter.Config{Rate: 10, Duration: time.Second, Burst: 5},
		store.NewMemoryStore(time.Minute),
	)
	return &Client{
		cfg:          cfg,
		log:          log,
		breaker:      breaker,
		limiter:      tb,
		pollInterval: 200 * time.Millisecond,
		settleDelay:  100 * time.Millisecond,
	}
}

func (c *Client) timeoutFor(action string) time.Duration {
	if heavyActions[action] {
		if c.cfg.HeavyTimeoutS > c.cfg.RoutineTimeoutS {
			return time.Duration(c.cfg.HeavyTimeoutS) * time.Second
		}
		return 30 * time.Second
	}
	return time.Duration(c.cfg.RoutineTimeoutS) * time.Second
}

func (c *Client) maxStale() int {
	if c.cfg.MaxStaleReplies > 0 {
		return c.cfg.MaxStaleReplies
	}
	return 5
}

func (c *Client) maxDeleteRetries() int {
	if c.cfg.MaxDeleteRetries > 0 {
		return c.cfg.MaxDeleteRetries
	}
	return 10
}

// send writes a command file, waits for a matching result file, and
// returns the decoded response. It is wrapped by the circuit breaker so
// repeated container-unreachable failures stop issuing new commands for
// a cooldown window rather than piling up blocked goroutines.
func (c *Client) send(ctx context.Context, action string, fields map[string]any) (Response, error) {
	metrics.Global.ClientRequests.Add(1)
	out, err := c.breaker.Execute(func() (Response, error) {
		return c.sendOnce(ctx, action, fields)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Response{}, fmt.Errorf("%s: %w", action, ErrContainerUnreachable)
		}
		return Response{}, err
	}
	return out, nil
}

func (c *Client) sendOnce(ctx context.Context, action string, fields map[string]any) (Response, error) {
	if err := c.waitForPreviousCommandConsumed(ctx); err != nil {
		return Response{}, err
	}
	if err := c.clearStaleResult(); err != nil {
		return Response{}, err
	}

	command := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		command[k] = v
	}
	command["action"] = action

	data, err := json.Marshal(command)
	if err != nil {
		return Response{}, fmt.Errorf("altiumclient: encode command %s: %w", action, err)
	}
	if err := atomicWriteFile(c.cfg.RequestPath, data); err != nil {
		return Response{}, fmt.Errorf("altiumclient: write command %s: %w", action, err)
	}
	c.log.Debugf("altiumclient: sent %s", action)

	return c.awaitResponse(ctx, action)
}

// waitForPreviousCommandConsumed mirrors the Python client's "don't
// stomp a command Altium hasn't read yet" guard: it gives the previous
// request file up to 5s to disappear before proceeding regardless.
func (c *Client) waitForPreviousCommandConsumed(ctx context.Context) error {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(c.cfg.RequestPath); os.IsNotExist(err) {
			return nil
		}
		if err := c.throttledSleep(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
	c.log.Warnf("altiumclient: previous command file still present after 5s, overwriting")
	return nil
}

// clearStaleResult removes any leftover result file (and its .tmp
// sibling) from a prior command so a fresh poll never reads old data.
func (c *Client) clearStaleResult() error {
	_ = os.Remove(c.cfg.ResponsePath + ".tmp")
	if _, err := os.Stat(c.cfg.ResponsePath); err != nil {
		return nil
	}
	var lastErr error
	for attempt := 0; attempt < c.maxDeleteRetries(); attempt++ {
		err := os.Remove(c.cfg.ResponsePath)
		if err == nil || os.IsNotExist(err) {
			return nil
		}
		lastErr = err
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("altiumclient: could not clear stale result after %d attempts: %w", c.maxDeleteRetries(), lastErr)
}

// awaitResponse polls ResponsePath until it holds a result whose action
// matches, discarding stale replies (left over from a previous command)
// up to the configured budget.
func (c *Client) awaitResponse(ctx context.Context, action string) (Response, error) {
	timeout := c.timeoutFor(action)
	deadline := time.Now().Add(timeout)
	staleCount := 0

	for time.Now().Before(deadline) {
		data, err := os.ReadFile(c.cfg.ResponsePath)
		if err != nil {
			if err := c.throttledSleep(ctx, c.pollInterval); err != nil {
				return Response{}, err
			}
			continue
		}
		if len(data) == 0 {
			if err := c.throttledSleep(ctx, c.pollInterval); err != nil {
				return Response{}, err
			}
			continue
		}

		// Let Altium finish writing before we parse it.
		time.Sleep(c.settleDelay)
		data, err = os.ReadFile(c.cfg.ResponsePath)
		if err != nil || len(data) == 0 {
			continue
		}

		resp, decodeErr := decodeResponse(data)
		if decodeErr != nil {
			// Still being written; try again shortly.
			if err := c.throttledSleep(ctx, c.pollInterval); err != nil {
				return Response{}, err
			}
			continue
		}

		if resp.Action != "" && resp.Action != action {
			staleCount++
			metrics.Global.ClientStale.Add(1)
			c.log.Warnf("altiumclient: stale response for %q (expected %q), discarding (#%d)", resp.Action, action, staleCount)
			_ = os.Remove(c.cfg.ResponsePath)
			if staleCount >= c.maxStale() {
				return Response{}, fmt.Errorf("%s: %w: discarded %d stale replies", action, ErrStaleResponse, staleCount)
			}
			if err := c.throttledSleep(ctx, 300*time.Millisecond); err != nil {
				return Response{}, err
			}
			continue
		}

		_ = os.Remove(c.cfg.ResponsePath)
		resp.Action = action
		return resp, nil
	}

	metrics.Global.ClientTimeouts.Add(1)
	return Response{}, fmt.Errorf("%s: %w after %s", action, ErrTimeout, timeout)
}

// throttledSleep sleeps d, then waits until the token bucket allows a poll
// so a burst of concurrent clients can't hammer the filesystem, and returns
// ctx.Err() if the context is cancelled first.
func (c *Client) throttledSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
	}
	for !c.limiter.Allow("poll") {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
	return nil
}

func atomicWriteFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Ping checks whether command_server.pas is running and consuming commands.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	resp, err := c.send(ctx, "ping", nil)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

// AddTrack adds a copper track segment to the live board.
func (c *Client) AddTrack(ctx context.Context, net string, x1, y1, x2, y2, widthMM float64, layer string) error {
	resp, err := c.send(ctx, "add_track", map[string]any{
		"net": net, "x1": x1, "y1": y1, "x2": x2, "y2": y2, "width": widthMM, "layer": layer,
	})
	if err != nil {
		return err
	}
	return resp.AsAppError()
}

// AddVia adds a via to the live board.
func (c *Client) AddVia(ctx context.Context, net string, x, y, holeMM, diameterMM float64) error {
	resp, err := c.send(ctx, "add_via", map[string]any{
		"x": x, "y": y, "net": net, "hole": holeMM, "diameter": diameterMM,
	})
	if err != nil {
		return err
	}
	return resp.AsAppError()
}

// MoveComponent relocates a footprint by designator. rotationDeg of 0
// means "keep current rotation", matching the Altium-side script.
func (c *Client) MoveComponent(ctx context.Context, designator string, x, y, rotationDeg float64) error {
	resp, err := c.send(ctx, "move_component", map[string]any{
		"designator": designator, "x": x, "y": y, "rotation": rotationDeg,
	})
	if err != nil {
		return err
	}
	return resp.AsAppError()
}

// RunDRC asks Altium to run its native Design Rule Check.
func (c *Client) RunDRC(ctx context.Context) error {
	resp, err := c.send(ctx, "run_drc", nil)
	if err != nil {
		return err
	}
	return resp.AsAppError()
}

// ExportPCBInfo asks Altium to re-export a fresh board snapshot to disk.
func (c *Client) ExportPCBInfo(ctx context.Context) error {
	resp, err := c.send(ctx, "export_pcb_info", nil)
	if err != nil {
		return err
	}
	return resp.AsAppError()
}

// DeleteComponent removes a footprint by designator.
func (c *Client) DeleteComponent(ctx context.Context, designator string) error {
	resp, err := c.send(ctx, "delete_component", map[string]any{"designator": designator})
	if err != nil {
		return err
	}
	return resp.AsAppError()
}

// DeleteTrack removes tracks on a layer, optionally filtered to one net.
func (c *Client) DeleteTrack(ctx context.Context, net, layer string) error {
	resp, err := c.send(ctx, "delete_track", map[string]any{"net": net, "layer": layer})
	if err != nil {
		return err
	}
	return resp.AsAppError()
}

// CreateRule creates a new design rule. Parameters are flattened onto the
// command with a param_ prefix, matching command_server.pas's parser.
func (c *Client) CreateRule(ctx context.Context, ruleType, ruleName string, parameters map[string]any) error {
	fields := map[string]any{"rule_type": ruleType, "rule_name": ruleName}
	for k, v := range parameters {
		fields["param_"+k] = v
	}
	resp, err := c.send(ctx, "create_rule", fields)
	if err != nil {
		return err
	}
	return resp.AsAppError()
}

// UpdateRule updates an existing rule's parameters.
func (c *Client) UpdateRule(ctx context.Context, ruleName string, parameters map[string]any) error {
	fields := map[string]any{"rule_name": ruleName}
	for k, v := range parameters {
		fields["param_"+k] = v
	}
	resp, err := c.send(ctx, "update_rule", fields)
	if err != nil {
		return err
	}
	return resp.AsAppError()
}

// DeleteRule removes a design rule by name.
func (c *Client) DeleteRule(ctx context.Context, ruleName string) error {
	resp, err := c.send(ctx, "delete_rule", map[string]any{"rule_name": ruleName})
	if err != nil {
		return err
	}
	return resp.AsAppError()
}
