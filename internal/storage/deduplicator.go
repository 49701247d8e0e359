package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Deduplicator 路径去重器
// 每个保存会话一个实例,记录本次运行已分配的路径;已分配集合只增不减
// 非并发安全,只能由保存会话的单一路径调用
type Deduplicator struct {
	claimed  map[string]bool
	counters map[string]int // 冲突路径 -> 下一个尝试的编号
	occupied func(path string) bool
}

// NewDeduplicator 创建去重器
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{
		claimed:  make(map[string]bool),
		counters: make(map[string]int),
	}
}

// NewDiskAwareDeduplicator 创建同时避开磁盘上已有文件的去重器
// 用于不覆盖模式,之前运行写下的文件同样视为已占用
func NewDiskAwareDeduplicator() *Deduplicator {
	d := NewDeduplicator()
	d.occupied = fileExists
	return d
}

// Claim 返回无冲突的路径并登记
// 未被占用时原样返回,否则依次尝试 stem_1.ext, stem_2.ext ...
func (d *Deduplicator) Claim(path string) string {
	if !d.taken(path) {
		d.claimed[path] = true
		return path
	}

	dir, name := filepath.Split(path)
	stem, ext := splitExt(name)

	counter := d.counters[path]
	if counter == 0 {
		counter = 1
	}
	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, counter, ext))
		counter++
		if !d.taken(candidate) {
			d.counters[path] = counter
			d.claimed[candidate] = true
			return candidate
		}
	}
}

// IsClaimed 路径是否已在本次会话中分配
func (d *Deduplicator) IsClaimed(path string) bool {
	return d.claimed[path]
}

// Len 已分配的路径数量
func (d *Deduplicator) Len() int {
	return len(d.claimed)
}

func (d *Deduplicator) taken(path string) bool {
	if d.claimed[path] {
		return true
	}
	return d.occupied != nil && d.occupied(path)
}

// splitExt 拆分主干和最后一个扩展名
// 以"."开头且没有其他"."的名称(如 .htaccess)没有扩展名
func splitExt(name string) (stem, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	return name[:i], name[i:]
}

func fileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
