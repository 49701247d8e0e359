package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/RecoveryAshes/webgrab/internal/utils"
	"github.com/cespare/xxhash/v2"
)

// ResourceSaver 资源保存器
// 一个实例对应一个保存会话,持有该会话独占的去重器
type ResourceSaver struct {
	config models.SaveConfig
	dedup  *Deduplicator

	// OnOutcome 每处理完一个资源回调一次(可选,用于进度显示)
	OnOutcome func(models.SaveOutcome)
}

// NewResourceSaver 创建资源保存器
func NewResourceSaver(config models.SaveConfig) *ResourceSaver {
	dedup := NewDeduplicator()
	if !config.Overwrite {
		dedup = NewDiskAwareDeduplicator()
	}
	return &ResourceSaver{
		config: config,
		dedup:  dedup,
	}
}

// Save 保存单个资源
// 跨域资源在未开启IncludeExternal时跳过,写入失败转换为Failed结果
func (s *ResourceSaver) Save(ctx context.Context, r models.Resource) models.SaveOutcome {
	outcome := s.save(ctx, r)
	if s.OnOutcome != nil {
		s.OnOutcome(outcome)
	}
	return outcome
}

func (s *ResourceSaver) save(ctx context.Context, r models.Resource) models.SaveOutcome {
	if !s.config.IncludeExternal && !utils.IsSameOrigin(r.URL, s.config.BaseURL) {
		utils.Debugf("跳过跨域资源: %s", r.URL)
		return models.SaveOutcome{Status: models.SaveStatusSkippedExternal, URL: r.URL}
	}

	// 中断后不再开始新的写入
	if err := ctx.Err(); err != nil {
		return models.SaveOutcome{Status: models.SaveStatusFailed, URL: r.URL, Err: err}
	}

	path := Resolve(r.URL, s.config.OutputDir)
	path = InferExtension(path, r.ContentType)
	path = s.dedup.Claim(path)

	if err := WriteFile(path, r.Body); err != nil {
		utils.ResourceWarn(r.URL, err, "写入文件失败")
		return models.SaveOutcome{Status: models.SaveStatusFailed, URL: r.URL, Err: err}
	}

	utils.Debugf("✅ 已保存: %s -> %s", r.URL, path)
	return models.SaveOutcome{
		Status: models.SaveStatusSaved,
		URL:    r.URL,
		Path:   path,
		File: models.FileInfo{
			URL:         r.URL,
			FilePath:    path,
			Size:        int64(r.Size()),
			ContentType: r.ContentType,
			Hash:        contentHash(r.Body),
			SavedAt:     time.Now(),
		},
	}
}

// SaveAll 依次保存所有资源,单个失败不影响其余资源
// ctx取消时停止,返回已处理部分的结果和ctx错误
func (s *ResourceSaver) SaveAll(ctx context.Context, resources []models.Resource) (models.SaveResult, error) {
	var result models.SaveResult
	for _, r := range resources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Add(s.Save(ctx, r))
	}
	return result, nil
}

// SaveStream 边捕获边保存,直到通道关闭或ctx取消
func (s *ResourceSaver) SaveStream(ctx context.Context, resources <-chan models.Resource) (models.SaveResult, error) {
	var result models.SaveResult
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case r, ok := <-resources:
			if !ok {
				return result, nil
			}
			if err := ctx.Err(); err != nil {
				return result, err
			}
			result.Add(s.Save(ctx, r))
		}
	}
}

// contentHash 计算内容的xxhash64
func contentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
