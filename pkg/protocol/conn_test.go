package protocol

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// scriptedConn is an in-memory Conn for tests. Each Recv consults the
// handler with the most recently sent frame; the handler's delay is applied
// under the receive context so deadline expiry behaves like a slow peer.
type scriptedConn struct {
	mu      sync.Mutex
	sent    []any
	handler func(lastSent any) (resp ClientFrame, delay time.Duration)
}

func (c *scriptedConn) Send(_ context.Context, frame any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, frame)
	return nil
}

func (c *scriptedConn) Recv(ctx context.Context) (ClientFrame, error) {
	c.mu.Lock()
	var last any
	if len(c.sent) > 0 {
		last = c.sent[len(c.sent)-1]
	}
	c.mu.Unlock()

	resp, delay := c.handler(last)
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ClientFrame{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return ClientFrame{}, err
	}
	return resp, nil
}

func (c *scriptedConn) sentFrames() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any{}, c.sent...)
}

// solvePow brute-forces a solution whose digest has the required zero prefix.
func solvePow(nonceHex string, difficulty int) string {
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		panic(err)
	}
	prefix := strings.Repeat("0", difficulty)
	for i := 0; ; i++ {
		candidate := strconv.Itoa(i)
		digest := sha256.Sum256(append(append([]byte{}, nonce...), []byte(candidate)...))
		if strings.HasPrefix(hex.EncodeToString(digest[:]), prefix) {
			return candidate
		}
	}
}

// agentEnv is an environment attestation that passes all five checks.
// Values mirror JSON decoding: numbers are float64.
func agentEnv() map[string]any {
	return map[string]any{
		"has_tty":          false,
		"display_set":      false,
		"uptime_seconds":   float64(3600),
		"open_connections": float64(5),
		"parent_process":   "python",
	}
}

// agentPeer answers every frame like a well-behaved agent in mock mode.
type agentPeer struct {
	powDifficulty int
	roundDelay    func(round int) time.Duration
	answer        func(frame DecisionChallengeFrame) string
	env           map[string]any
}

func (p *agentPeer) handle(lastSent any) (ClientFrame, time.Duration) {
	switch f := lastSent.(type) {
	case PowChallengeFrame:
		return ClientFrame{Solution: solvePow(f.Nonce, f.Difficulty)}, 0
	case DecisionChallengeFrame:
		answer := f.MockCorrect
		if p.answer != nil {
			answer = p.answer(f)
		}
		// A steady default delay keeps the timing CV well under the gate;
		// instant replies would measure pure scheduling jitter.
		delay := 20 * time.Millisecond
		if p.roundDelay != nil {
			delay = p.roundDelay(f.Round)
		}
		return ClientFrame{Answer: answer}, delay
	case EnvRequestFrame:
		env := p.env
		if env == nil {
			env = agentEnv()
		}
		return ClientFrame{Env: env}, 0
	default:
		panic(fmt.Sprintf("unexpected frame %T", lastSent))
	}
}
