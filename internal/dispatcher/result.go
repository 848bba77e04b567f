package dispatcher

import (
	"fmt"
	"strings"
	"time"
)

// Result はディスパッチ結果
type Result struct {
	RunID     string
	Seed      uint64
	NumTasks  int
	Workers   int
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// タスク統計
	Assigned       int
	Completed      int
	ProtocolErrors int
	AvgLatency     time.Duration
	P99Latency     time.Duration

	// 障害注入統計
	ChaosAttacks uint64

	// ワーカーごとの結果（完了順）
	PerWorker [][]int
}

// TotalResults は全ワーカーの結果数の合計を返す
func (r *Result) TotalResults() int {
	total := 0
	for _, vs := range r.PerWorker {
		total += len(vs)
	}
	return total
}

// Report は実行結果のレポートを返す
func (r *Result) Report() string {
	var b strings.Builder

	fmt.Fprintf(&b, `
================================================================================
                              DISPATCH REPORT
================================================================================
Run:                %s
Seed:               %d
Start Time:         %s
End Time:           %s
Duration:           %v

TASKS
-----
  Requested:          %d
  Assigned:           %d
  Completed:          %d
  Protocol Errors:    %d
  Avg Latency:        %v
  P99 Latency:        %v
`,
		r.RunID,
		r.Seed,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.NumTasks,
		r.Assigned,
		r.Completed,
		r.ProtocolErrors,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
	)

	if r.ChaosAttacks > 0 {
		fmt.Fprintf(&b, "  Injected Faults:    %d\n", r.ChaosAttacks)
	}

	b.WriteString("\nRESULTS PER WORKER\n------------------\n")
	for i, vs := range r.PerWorker {
		parts := make([]string, len(vs))
		for j, v := range vs {
			parts[j] = fmt.Sprintf("%d", v)
		}
		fmt.Fprintf(&b, "  %-20s %s\n", fmt.Sprintf("Core %d:", i+1), strings.Join(parts, ", "))
	}

	b.WriteString("\n================================================================================")
	return b.String()
}
