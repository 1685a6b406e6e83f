package oracle

import (
	"context"
	"strings"

	"github.com/agentcaptcha/agentcaptcha/pkg/models"
)

// staticBank is the hard-coded challenge sequence used in mock mode and as
// the fallback when the remote oracle fails. Indexed by (round-1) mod len.
var staticBank = []models.Challenge{
	{
		Prompt:        "A market-making bot detects a 0.4% price discrepancy between two exchanges. Transaction fees are 0.1% per leg. What is the correct action?",
		Options:       []string{"A: Execute immediately — 0.2% net profit after fees", "B: Wait for a wider spread to increase margin", "C: Cancel all open orders first to reduce exposure", "D: Alert a human trader and await confirmation"},
		CorrectOption: "A",
		Rationale:     "0.4% spread minus 0.2% total fees yields a positive expected value; immediate execution captures the arbitrage.",
	},
	{
		Prompt:        "A microservice returns HTTP 503 intermittently. p99 latency has jumped from 120ms to 4200ms. CPU is at 15%. What should you do first?",
		Options:       []string{"A: Restart the service immediately", "B: Check connection pool exhaustion and downstream dependency health", "C: Scale horizontally and add more instances", "D: Roll back the last deployment"},
		CorrectOption: "B",
		Rationale:     "Low CPU with high latency and 503s points to a downstream bottleneck or pool exhaustion, not CPU pressure.",
	},
	{
		Prompt:        "You have a $10k compute budget for a batch ML job. Spot instances cost $0.30/hr but have a 15% interruption rate. On-demand costs $1.20/hr. The job takes ~100 hrs. Which is cheaper in expectation?",
		Options:       []string{"A: On-demand — $120 total, predictable", "B: Spot — ~$34.50 expected cost even with retries", "C: Mix 50/50 for risk reduction", "D: Use preemptible VMs on a different cloud"},
		CorrectOption: "B",
		Rationale:     "Expected spot cost including ~15% retry overhead is ~$34.50, far below the $120 on-demand price.",
	},
	{
		Prompt:        "A data pipeline ingesting 500k events/sec suddenly drops to 50k/sec. Kafka consumer lag is growing at 1M messages/min. No errors in logs. What is the most likely cause?",
		Options:       []string{"A: Network partition between broker and consumers", "B: Consumer rebalance triggered by a new deployment", "C: Disk I/O saturation on broker nodes", "D: Schema registry outage blocking deserialization"},
		CorrectOption: "B",
		Rationale:     "A drop without errors combined with timing of deployment strongly suggests a consumer group rebalance pause.",
	},
	{
		Prompt:        "Your API is hitting a 3rd-party rate limit of 1000 req/min. You currently send requests at 1100 req/min with no queuing. What is the best fix?",
		Options:       []string{"A: Add a token bucket limiter at 950 req/min with a backpressure queue", "B: Retry failed requests with exponential backoff only", "C: Distribute requests across multiple API keys", "D: Cache all responses for 60 seconds"},
		CorrectOption: "A",
		Rationale:     "A token bucket below the limit with backpressure prevents rate-limit errors while maintaining throughput.",
	},
	{
		Prompt:        "A security scan finds an open S3 bucket containing logs with PII. The bucket has had public access for 72 hours. What is the correct first action?",
		Options:       []string{"A: Delete the bucket immediately", "B: Block public access, then assess what data was exposed", "C: Rotate all IAM credentials immediately", "D: Notify customers before taking any action"},
		CorrectOption: "B",
		Rationale:     "Blocking access stops the breach immediately; assessment must precede deletion to preserve evidence and scope the impact.",
	},
	{
		Prompt:        "A Redis cache cluster is at 98% memory utilisation. Eviction policy is set to noeviction. What happens on the next write?",
		Options:       []string{"A: Redis silently drops the oldest key", "B: Redis returns an OOM error to the client", "C: Redis automatically expands its memory allocation", "D: Redis writes to disk and clears memory"},
		CorrectOption: "B",
		Rationale:     "noeviction causes Redis to return an error rather than evict keys, breaking writes when memory is full.",
	},
	{
		Prompt:        "You need to run 1000 independent 10-second tasks. You have 50 workers. What is the minimum theoretical completion time?",
		Options:       []string{"A: 10 seconds", "B: 200 seconds", "C: 500 seconds", "D: 10000 seconds"},
		CorrectOption: "B",
		Rationale:     "1000 tasks / 50 workers = 20 batches × 10 seconds = 200 seconds minimum with perfect parallelism.",
	},
	{
		Prompt:        "A Postgres query doing a full table scan on a 50M-row table runs in 45 seconds. Adding an index on the filter column brings it to 80ms. What is the approximate speedup factor?",
		Options:       []string{"A: 56x", "B: 562x", "C: 5625x", "D: 56250x"},
		CorrectOption: "B",
		Rationale:     "45000ms / 80ms = 562.5x speedup.",
	},
	{
		Prompt:        "A deployment pipeline runs 400 unit tests in 18 minutes on a single runner. You need to get this under 3 minutes. What is the minimum number of parallel runners required?",
		Options:       []string{"A: 3", "B: 6", "C: 7", "D: 10"},
		CorrectOption: "C",
		Rationale:     "18 / 3 = 6.0, but since you need strictly under 3 minutes, you need 7 runners (18/7 ≈ 2.57 min).",
	},
	{
		Prompt:        "Service A calls Service B synchronously. Service B has a 2% error rate and 200ms p99. You add a circuit breaker that opens after 5 consecutive errors. What does this prevent?",
		Options:       []string{"A: All errors from Service B", "B: Cascading failures where A's thread pool exhausts waiting for a broken B", "C: Network partitions between A and B", "D: Memory leaks in Service A"},
		CorrectOption: "B",
		Rationale:     "Circuit breakers prevent cascading failure by fast-failing calls to a known-broken dependency, protecting upstream thread pools.",
	},
	{
		Prompt:        "A canary deployment shows the new version has 0.8% error rate vs 0.1% baseline. Traffic split is 5% canary / 95% stable. What is the correct action?",
		Options:       []string{"A: Roll back immediately — 8x error rate increase", "B: Continue rollout — absolute error rate is still below 1%", "C: Pause and investigate the error pattern before deciding", "D: Increase canary traffic to 50% to get better signal"},
		CorrectOption: "C",
		Rationale:     "An 8x relative increase warrants investigation before rollback or promotion — the error type matters for the decision.",
	},
}

// Static serves challenges from the hard-coded bank and grades answers by
// leading-letter match.
type Static struct{}

// NewStatic creates the static-bank oracle.
func NewStatic() *Static {
	return &Static{}
}

func (s *Static) Generate(_ context.Context, _ Context, roundNum int, _ string) models.Challenge {
	return bankChallenge(roundNum)
}

func (s *Static) Validate(_ context.Context, challenge models.Challenge, answer string) bool {
	return letterMatch(challenge, answer)
}

func bankChallenge(roundNum int) models.Challenge {
	ch := staticBank[(roundNum-1)%len(staticBank)]
	ch.RoundNum = roundNum
	ch.Scenario = scenarioFor(roundNum)
	return ch
}

// letterMatch accepts an answer iff, after trimming whitespace and
// uppercasing, its first character equals the challenge's correct letter.
func letterMatch(challenge models.Challenge, answer string) bool {
	correct := strings.ToUpper(strings.TrimSpace(challenge.CorrectOption))
	if correct == "" {
		correct = "A"
	}
	stripped := strings.ToUpper(strings.TrimSpace(answer))
	return strings.HasPrefix(stripped, correct[:1])
}
