// Package bits implements the computation each worker performs on a task.
package bits

import mathbits "math/bits"

// Len は taskID の2進表現のビット長を返す（0 の場合は 0）
func Len(taskID int) int {
	if taskID <= 0 {
		return 0
	}
	return mathbits.Len(uint(taskID))
}

// Extract は taskID の上位 n ビットを返す
// n がビット長以上の場合は taskID をそのまま返す
func Extract(taskID, n int) int {
	if taskID <= 0 {
		return 0
	}
	if n < 0 {
		n = 0
	}
	discard := max(Len(taskID)-n, 0)
	return taskID >> discard
}
