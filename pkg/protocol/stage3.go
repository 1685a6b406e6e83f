package protocol

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
)

// envTimeout bounds the Stage 3 probe response.
const envTimeout = 5 * time.Second

// envRequiredFields is the probe field list, in wire order.
var envRequiredFields = []string{
	"has_tty", "display_set", "uptime_seconds", "open_connections", "parent_process",
}

// interactiveShells are parent processes that indicate a human at a terminal.
var interactiveShells = map[string]bool{
	"bash": true, "zsh": true, "sh": true, "fish": true,
	"cmd": true, "powershell": true, "pwsh": true,
}

// runStage3 requests an environment attestation and scores five independent
// checks; four of five must pass.
func (v *Verifier) runStage3(ctx context.Context, conn Conn, sess *models.Session) (*models.VerificationResult, error) {
	err := conn.Send(ctx, EnvRequestFrame{
		Stage:          3,
		Type:           "env_request",
		RequiredFields: envRequiredFields,
	})
	if err != nil {
		return nil, fmt.Errorf("send env request: %w", err)
	}

	recvCtx, cancel := context.WithTimeout(ctx, envTimeout)
	defer cancel()

	start := time.Now()
	msg, err := conn.Recv(recvCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			reject := models.Reject("stage3_timeout")
			return &reject, nil
		}
		return nil, fmt.Errorf("receive env attestation: %w", err)
	}

	sess.Timings["stage3"] = time.Since(start).Seconds()
	env := msg.Env
	if env == nil {
		env = map[string]any{}
	}
	sess.EnvData = env

	score, failed := evaluateEnv(env)
	if score < 4 {
		reject := models.Reject("stage3_env_checks_failed=" + strings.Join(failed, ","))
		return &reject, nil
	}

	sess.StageReached = 3
	return nil, nil
}

// evaluateEnv scores the five environment checks, returning the pass count
// and the names of failed checks in probe order.
func evaluateEnv(env map[string]any) (int, []string) {
	score := 0
	var failed []string

	check := func(name string, ok bool) {
		if ok {
			score++
		} else {
			failed = append(failed, name)
		}
	}

	// Agents don't have a TTY.
	v, present := env["has_tty"]
	check("has_tty", present && v == false)

	// No DISPLAY: missing counts as unset.
	v, present = env["display_set"]
	check("display_set", !present || v == false)

	// Host has been up; any non-negative number.
	uptime, isNum := env["uptime_seconds"].(float64)
	check("uptime_seconds", isNum && uptime >= 0)

	// Open connection count must be a non-negative integer.
	conns, isNum := env["open_connections"].(float64)
	check("open_connections", isNum && conns >= 0 && conns == math.Trunc(conns))

	// Parent process must exist and not be an interactive shell.
	parent, isStr := env["parent_process"].(string)
	parent = strings.ToLower(parent)
	check("parent_process", isStr && parent != "" && !interactiveShells[parent])

	return score, failed
}
