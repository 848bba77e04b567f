package task

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// Sentinel は不正なメッセージから得られる値
const Sentinel = -1

// Task はワーカーに渡す1件の計算タスク
type Task struct {
	ID   int // 0 始まりの連番
	Bits int // 取り出す上位ビット数
}

// String はワイヤ形式 "<id>_<bits>" を返す
func (t Task) String() string {
	return strconv.Itoa(t.ID) + "_" + strconv.Itoa(t.Bits)
}

// ProtocolError はタスク／結果メッセージの形式エラー
type ProtocolError struct {
	Message string
	Reason  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed message %q: %s", e.Message, e.Reason)
}

// ParseTask は "<id>_<bits>" 形式のメッセージをパースする
func ParseTask(msg string) (Task, error) {
	fields := strings.Split(msg, "_")
	if len(fields) != 2 {
		return Task{}, &ProtocolError{Message: msg, Reason: fmt.Sprintf("expected 2 fields, got %d", len(fields))}
	}

	id, err := parseNonNegative(fields[0])
	if err != nil {
		return Task{}, &ProtocolError{Message: msg, Reason: "task id: " + err.Error()}
	}
	n, err := parseNonNegative(fields[1])
	if err != nil {
		return Task{}, &ProtocolError{Message: msg, Reason: "bit width: " + err.Error()}
	}

	return Task{ID: id, Bits: n}, nil
}

// FormatResult は結果をワイヤ形式に変換する
func FormatResult(v int) string {
	return strconv.Itoa(v)
}

// ParseResult は10進整数の結果メッセージをパースする
func ParseResult(msg string) (int, error) {
	v, err := strconv.Atoi(msg)
	if err != nil {
		return Sentinel, &ProtocolError{Message: msg, Reason: "not a decimal integer"}
	}
	return v, nil
}

func parseNonNegative(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not a decimal integer")
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %d", v)
	}
	return v, nil
}

// Generator はタスクを生成する
type Generator struct {
	maxBits int
	seed    uint64
	rng     *rand.Rand
	next    int
}

// NewGenerator は新しい Generator を作成する
// seed が 0 の場合は現在時刻から決定する
func NewGenerator(maxBits int, seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{
		maxBits: maxBits,
		seed:    seed,
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Seed は実際に使用したシードを返す
func (g *Generator) Seed() uint64 {
	return g.seed
}

// Next は次のタスクを生成する
func (g *Generator) Next() Task {
	t := Task{
		ID:   g.next,
		Bits: g.rng.IntN(g.maxBits + 1),
	}
	g.next++
	return t
}

// Generate は n 件のタスクを生成する
func (g *Generator) Generate(n int) []Task {
	tasks := make([]Task, 0, n)
	for range n {
		tasks = append(tasks, g.Next())
	}
	return tasks
}
