package storage

import (
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/webgrab/internal/models"
)

// WriteFile 原子写入文件,按需创建父目录
// 先写入同目录下的临时文件再重命名,中断时不会留下截断的目标文件
func WriteFile(path string, content []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return &models.FileWriteError{Path: path, Cause: err}
	}

	tmp, err := os.CreateTemp(dir, ".webgrab-*.tmp")
	if err != nil {
		return &models.FileWriteError{Path: path, Cause: err}
	}
	tmpName := tmp.Name()

	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		tmp.Close()
		return &models.FileWriteError{Path: path, Cause: err}
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return &models.FileWriteError{Path: path, Cause: err}
	}
	if err = tmp.Close(); err != nil {
		return &models.FileWriteError{Path: path, Cause: err}
	}
	if err = os.Chmod(tmpName, 0644); err != nil {
		return &models.FileWriteError{Path: path, Cause: err}
	}
	if err = os.Rename(tmpName, path); err != nil {
		return &models.FileWriteError{Path: path, Cause: err}
	}
	return nil
}
