package chaos

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"syscall"

	"procpool/internal/logger"
)

// AttackType は注入する障害の種類を表す
type AttackType int

const (
	AttackFragment AttackType = iota
	AttackInterrupt
)

func (a AttackType) String() string {
	switch a {
	case AttackFragment:
		return "fragment"
	case AttackInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// ParseAttackType は文字列の攻撃タイプをパースする
func ParseAttackType(s string) (AttackType, error) {
	switch strings.ToLower(s) {
	case "fragment":
		return AttackFragment, nil
	case "interrupt":
		return AttackInterrupt, nil
	default:
		return 0, fmt.Errorf("unknown attack type: %s", s)
	}
}

// Config はMonkeyの設定
type Config struct {
	AttackTypes   []AttackType // 有効な攻撃タイプ
	MaxFragment   int          // 分割時の最大バイト数
	InterruptRate float64      // EINTR を返す確率（0 以上 1 未満）
	Seed          uint64       // 乱数シード（0で固定値）
}

// MaxInterruptRate は InterruptRate の上限
// 1 以上では全ての入出力が EINTR になり再試行が終わらない
const MaxInterruptRate = 0.9

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		AttackTypes:   []AttackType{AttackFragment, AttackInterrupt},
		MaxFragment:   3,
		InterruptRate: 0.2,
		Seed:          1,
	}
}

// Stats は障害注入の統計情報
type Stats struct {
	TotalAttacks uint64            `json:"total_attacks"`
	ByType       map[string]uint64 `json:"attacks_by_type"`
}

// Monkey は読み書きに障害を注入する
type Monkey struct {
	config  Config
	enabled map[AttackType]bool

	mu           sync.Mutex
	rng          *rand.Rand
	attackCount  uint64
	attackByType map[AttackType]uint64
}

// New は新しいMonkeyを作成する
func New(config Config) *Monkey {
	if config.MaxFragment <= 0 {
		config.MaxFragment = 1
	}
	if config.InterruptRate >= 1 {
		config.InterruptRate = MaxInterruptRate
	}
	if config.InterruptRate < 0 {
		config.InterruptRate = 0
	}
	seed := config.Seed
	if seed == 0 {
		seed = 1
	}

	enabled := make(map[AttackType]bool, len(config.AttackTypes))
	for _, a := range config.AttackTypes {
		enabled[a] = true
	}

	logger.Debug("", "Chaos enabled (attacks: %v, max fragment: %d, interrupt rate: %.2f)",
		config.AttackTypes, config.MaxFragment, config.InterruptRate)

	return &Monkey{
		config:       config,
		enabled:      enabled,
		rng:          rand.New(rand.NewPCG(seed, seed+1)),
		attackByType: make(map[AttackType]uint64),
	}
}

// Reader は r に障害を注入する io.Reader を返す
func (m *Monkey) Reader(r io.Reader) io.Reader {
	return &reader{m: m, r: r}
}

// Writer は w に障害を注入する io.Writer を返す
func (m *Monkey) Writer(w io.Writer) io.Writer {
	return &writer{m: m, w: w}
}

// Stats は統計情報を返す
func (m *Monkey) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType := make(map[string]uint64, len(m.attackByType))
	for a, c := range m.attackByType {
		byType[a.String()] = c
	}
	return Stats{
		TotalAttacks: m.attackCount,
		ByType:       byType,
	}
}

// interrupt は今回の呼び出しを EINTR で失敗させるか決める
func (m *Monkey) interrupt() bool {
	if !m.enabled[AttackInterrupt] {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.rng.Float64() >= m.config.InterruptRate {
		return false
	}
	m.recordLocked(AttackInterrupt)
	return true
}

// fragment は n バイトの要求を何バイトに縮めるか決める
func (m *Monkey) fragment(n int) int {
	if !m.enabled[AttackFragment] || n <= 1 {
		return n
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := 1 + m.rng.IntN(m.config.MaxFragment)
	if limit >= n {
		return n
	}
	m.recordLocked(AttackFragment)
	return limit
}

func (m *Monkey) recordLocked(a AttackType) {
	m.attackCount++
	m.attackByType[a]++
}

type reader struct {
	m *Monkey
	r io.Reader
}

func (cr *reader) Read(p []byte) (int, error) {
	if len(p) > 0 && cr.m.interrupt() {
		return 0, syscall.EINTR
	}
	return cr.r.Read(p[:cr.m.fragment(len(p))])
}

type writer struct {
	m *Monkey
	w io.Writer
}

// Write は部分書き込みを割り込みとして報告する
func (cw *writer) Write(p []byte) (int, error) {
	if len(p) > 0 && cw.m.interrupt() {
		return 0, syscall.EINTR
	}
	n := cw.m.fragment(len(p))
	written, err := cw.w.Write(p[:n])
	if err != nil {
		return written, err
	}
	if written < len(p) {
		return written, syscall.EINTR
	}
	return written, nil
}
