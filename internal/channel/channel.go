package channel

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"syscall"
	"time"
)

// Terminator はメッセージの終端バイト
const Terminator byte = 0

var (
	// ErrClosed は相手側が書き込み端を閉じ、残りデータがないことを表す
	ErrClosed = errors.New("channel closed")
	// ErrInvalidMessage は終端バイトを含むメッセージの送信を表す
	ErrInvalidMessage = errors.New("message contains terminator byte")
)

// IOError は一時的な割り込み以外の送受信エラー
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Interrupted は err が一時的な割り込みかどうかを返す
func Interrupted(err error) bool {
	return errors.Is(err, syscall.EINTR)
}

// Send はメッセージと終端バイトを全て書き込む
func Send(w io.Writer, msg string) error {
	if strings.IndexByte(msg, Terminator) >= 0 {
		return ErrInvalidMessage
	}

	buf := make([]byte, len(msg)+1)
	copy(buf, msg)
	buf[len(msg)] = Terminator

	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n
		if err != nil {
			if Interrupted(err) {
				continue
			}
			return &IOError{Op: "write", Err: err}
		}
	}
	return nil
}

// Receiver は終端バイトまでを1メッセージとして読み出す
type Receiver struct {
	r *bufio.Reader
}

// NewReceiver は r から読み出す Receiver を作成する
func NewReceiver(r io.Reader) *Receiver {
	return &Receiver{
		r: bufio.NewReader(retryReader{r: r}),
	}
}

// Receive は次のメッセージを終端バイトを除いて返す
func (rx *Receiver) Receive() (string, error) {
	data, err := rx.r.ReadBytes(Terminator)
	if err != nil {
		if errors.Is(err, io.EOF) {
			if len(data) == 0 {
				return "", ErrClosed
			}
			return "", &IOError{Op: "read", Err: io.ErrUnexpectedEOF}
		}
		return "", &IOError{Op: "read", Err: err}
	}
	return string(data[:len(data)-1]), nil
}

// Buffered は受信済みで未処理のバイト数を返す
func (rx *Receiver) Buffered() int {
	return rx.r.Buffered()
}

// retryReader は EINTR で中断された読み込みを再試行する
type retryReader struct {
	r io.Reader
}

func (rr retryReader) Read(p []byte) (int, error) {
	for {
		n, err := rr.r.Read(p)
		if n == 0 && err != nil && Interrupted(err) {
			continue
		}
		if n > 0 && err != nil && Interrupted(err) {
			return n, nil
		}
		return n, err
	}
}

// SleepFull は d が経過するまで確実に待機する
// 途中で起床した場合は残り時間で待機し直す
func SleepFull(d time.Duration) {
	deadline := time.Now().Add(d)
	for remaining := d; remaining > 0; remaining = time.Until(deadline) {
		time.Sleep(remaining)
	}
}
