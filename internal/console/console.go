// Package console renders the human-readable progress lines of a run.
//
// Tags, worker names, task payloads and values are colored when the output
// is a terminal; otherwise the same text is written without escape codes.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Console は進捗行を書き出す
type Console struct {
	mu  sync.Mutex
	out io.Writer

	color     bool
	mainTag   lipgloss.Style
	coreTag   lipgloss.Style
	coreName  lipgloss.Style
	taskStyle lipgloss.Style
	value     lipgloss.Style
}

// Stdout は標準出力に書き出すデフォルトの Console
var Stdout = New(os.Stdout, true)

// New は out に書き出す Console を作成する
// color が false の場合、または out が端末でない場合は色を付けない
func New(out io.Writer, color bool) *Console {
	r := lipgloss.NewRenderer(out)
	return &Console{
		out:       out,
		color:     color,
		mainTag:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("4")),
		coreTag:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		coreName:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		taskStyle: r.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
		value:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("3")),
	}
}

func (c *Console) render(s lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return s.Render(text)
}

// CoreName はワーカー名 "Core N" を返す（N は 1 始まり）
func (c *Console) CoreName(id int) string {
	return c.render(c.coreName, fmt.Sprintf("Core %d", id+1))
}

// Task はタスクのワイヤ表現を装飾して返す
func (c *Console) Task(s fmt.Stringer) string {
	return c.render(c.taskStyle, s.String())
}

// Payload は受信したタスクメッセージを装飾して返す
func (c *Console) Payload(msg string) string {
	return c.render(c.taskStyle, msg)
}

// Value は結果値を装飾して返す
func (c *Console) Value(v int) string {
	return c.render(c.value, fmt.Sprintf("%d", v))
}

// Values は結果列をカンマ区切りで返す
func (c *Console) Values(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = c.Value(v)
	}
	return strings.Join(parts, ", ")
}

// Main はディスパッチャの進捗行を出力する
func (c *Console) Main(format string, args ...any) {
	c.line(c.render(c.mainTag, "[MAIN]"), format, args...)
}

// Core はワーカーの進捗行を出力する
func (c *Console) Core(id int, format string, args ...any) {
	c.line(c.render(c.coreTag, fmt.Sprintf("[CORE %d]", id+1)), format, args...)
}

func (c *Console) line(tag, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "%s %s\n", tag, msg)
}
