package storage

import (
	"strings"
)

// MaxComponentLength 单个路径组件的最大字符数
const MaxComponentLength = 100

// reservedNames Windows保留设备名(不区分大小写)
var reservedNames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// SanitizeComponent 将任意字符串转换为任何文件系统上都安全的单个路径组件
// 纯函数,对任何输入都不会失败,且 SanitizeComponent(SanitizeComponent(x)) == SanitizeComponent(x)
func SanitizeComponent(name string) string {
	if name == "" {
		return "_"
	}

	s := replaceForbidden(name)
	s = truncateComponent(s)

	if isReserved(s) {
		s = "_" + s
		// 前缀可能使长度超限,再截断一次;以"_"开头后不会再命中保留名
		s = truncateComponent(s)
	}

	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}

// replaceForbidden 替换非法字符和控制字符(0x00-0x1F)
// Unicode和空白字符保持不变
func replaceForbidden(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 {
			return '_'
		}
		switch r {
		case '<', '>', ':', '"', '|', '?', '*', '\\':
			return '_'
		}
		return r
	}, s)
}

// isReserved 第一个"."之前的部分是否为保留名
func isReserved(s string) bool {
	base := s
	if i := strings.IndexByte(s, '.'); i >= 0 {
		base = s[:i]
	}
	return reservedNames[strings.ToUpper(base)]
}

// truncateComponent 超过长度限制时截断主干,原样保留扩展名
// 扩展名本身已超限时整体截断
func truncateComponent(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxComponentLength {
		return s
	}

	dot := -1
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == '.' {
			dot = i
			break
		}
	}
	if dot < 0 {
		return string(runes[:MaxComponentLength])
	}

	stem, ext := runes[:dot], runes[dot:]
	maxStem := MaxComponentLength - len(ext)
	if maxStem <= 0 {
		return string(runes[:MaxComponentLength])
	}
	if len(stem) > maxStem {
		stem = stem[:maxStem]
	}
	return string(stem) + string(ext)
}
