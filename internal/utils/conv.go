package utils

import (
	"strconv"
)

// StringToInt converts string to int, returns 0 if error
func StringToInt(s string) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return i
}

// ClampLimit 分页参数：非法或 <=0 时取 fallback，超过 maxN 时截断
func ClampLimit(s string, fallback, maxN int) int {
	n := StringToInt(s)
	if n <= 0 {
		return fallback
	}
	if n > maxN {
		return maxN
	}
	return n
}
