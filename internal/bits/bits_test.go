package bits

import (
	"strconv"
	"testing"
)

func TestLen(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 2},
		{5, 3},
		{255, 8},
		{256, 9},
	}

	for _, tt := range tests {
		if got := Len(tt.in); got != tt.want {
			t.Errorf("Len(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		taskID int
		n      int
		want   int
	}{
		{5, 2, 2},
		{0, 3, 0},
		{255, 4, 15},
		{5, 0, 0},
		{5, 3, 5},
		{5, 10, 5},
		{1, 1, 1},
		{12, 1, 1},
		{12, 2, 3},
	}

	for _, tt := range tests {
		if got := Extract(tt.taskID, tt.n); got != tt.want {
			t.Errorf("Extract(%d, %d) = %d, want %d", tt.taskID, tt.n, got, tt.want)
		}
	}
}

// 2進文字列の先頭 n 文字と一致することを確認する
func TestExtractMatchesBinaryPrefix(t *testing.T) {
	for taskID := 0; taskID < 1024; taskID++ {
		bin := strconv.FormatInt(int64(taskID), 2)
		for n := 0; n <= 12; n++ {
			want := 0
			if taskID > 0 {
				prefix := bin
				if n < len(bin) {
					prefix = bin[:n]
				}
				if prefix != "" {
					v, err := strconv.ParseInt(prefix, 2, 64)
					if err != nil {
						t.Fatalf("parse %q: %v", prefix, err)
					}
					want = int(v)
				}
			}
			if got := Extract(taskID, n); got != want {
				t.Fatalf("Extract(%d, %d) = %d, want %d", taskID, n, got, want)
			}
		}
	}
}
