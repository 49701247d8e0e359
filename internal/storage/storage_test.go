package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeComponent(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"空字符串", "", "_"},
		{"普通名称", "app.js", "app.js"},
		{"非法字符", `a<b>c:d"e|f?g*h\i`, "a_b_c_d_e_f_g_h_i"},
		{"控制字符", "a\x00b\x1fc", "a_b_c"},
		{"保留名-小写", "con", "_con"},
		{"保留名-带扩展名", "CON.txt", "_CON.txt"},
		{"保留名-多扩展名", "lpt1.min.js", "_lpt1.min.js"},
		{"非保留名-COM10", "COM10", "COM10"},
		{"单个点", ".", "_"},
		{"两个点", "..", "_"},
		{"保留Unicode和空格", "文档 副本.html", "文档 副本.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeComponent(tt.input))
		})
	}
}

func TestSanitizeComponentTruncation(t *testing.T) {
	t.Run("截断主干保留扩展名", func(t *testing.T) {
		got := SanitizeComponent(strings.Repeat("a", 150) + ".html")
		assert.Equal(t, MaxComponentLength, len([]rune(got)))
		assert.True(t, strings.HasSuffix(got, ".html"))
	})

	t.Run("按字符而非字节计数", func(t *testing.T) {
		got := SanitizeComponent(strings.Repeat("中", 120) + ".js")
		assert.Equal(t, MaxComponentLength, len([]rune(got)))
		assert.True(t, strings.HasSuffix(got, ".js"))
	})

	t.Run("扩展名本身超长时整体截断", func(t *testing.T) {
		got := SanitizeComponent("a." + strings.Repeat("b", 150))
		assert.Equal(t, MaxComponentLength, len([]rune(got)))
	})

	t.Run("保留名加前缀后仍不超长", func(t *testing.T) {
		got := SanitizeComponent("con." + strings.Repeat("x", 96))
		assert.LessOrEqual(t, len([]rune(got)), MaxComponentLength)
		assert.True(t, strings.HasPrefix(got, "_"))
	})
}

func TestSanitizeComponentIdempotent(t *testing.T) {
	inputs := []string{
		"", ".", "..", "con", "CON.txt", "aux.min.js", "a:b", "\x01",
		strings.Repeat("z", 300),
		"con." + strings.Repeat("x", 96),
		"nul" + strings.Repeat("y", 120),
		"a." + strings.Repeat("b", 150),
		strings.Repeat("中", 99) + ".." + "x",
	}

	for _, in := range inputs {
		once := SanitizeComponent(in)
		assert.Equal(t, once, SanitizeComponent(once), "输入 %q", in)
		assert.NotEmpty(t, once)
	}
}

func TestResolveExtension(t *testing.T) {
	assert.Equal(t, ".css", ResolveExtension("text/css"))
	assert.Equal(t, ".js", ResolveExtension("application/javascript; charset=utf-8"))
	assert.Equal(t, ".html", ResolveExtension("  TEXT/HTML ;charset=UTF-8"))
	assert.Equal(t, ".webmanifest", ResolveExtension("application/manifest+json"))
	assert.Equal(t, "", ResolveExtension("application/x-unknown"))
	assert.Equal(t, "", ResolveExtension(""))
}

func TestInferExtension(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		contentType string
		expected    string
	}{
		{"追加扩展名", "/a/b", "text/css", "/a/b.css"},
		{"已有扩展名不重复", "/a/b.css", "text/css", "/a/b.css"},
		{"扩展名与类型不一致时保持不变", "/a/b.php", "text/html", "/a/b.php"},
		{"未知类型保持不变", "/a/b", "application/x-unknown", "/a/b"},
		{"空类型保持不变", "/a/b", "", "/a/b"},
		{"只看最后一段", "/a.d/b", "image/png", "/a.d/b.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, InferExtension(tt.path, tt.contentType))
		})
	}
}

func TestResolve(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name     string
		url      string
		expected string
	}{
		{"根路径", "https://example.com/", filepath.Join(root, "example.com", "index.html")},
		{"无路径", "https://example.com", filepath.Join(root, "example.com", "index.html")},
		{"目录路径", "https://example.com/docs/", filepath.Join(root, "example.com", "docs", "index.html")},
		{"去掉端口", "https://example.com:8080/a.js", filepath.Join(root, "example.com", "a.js")},
		{"URL解码", "https://example.com/my%20file.css", filepath.Join(root, "example.com", "my file.css")},
		{"忽略查询参数", "https://example.com/a.js?v=1", filepath.Join(root, "example.com", "a.js")},
		{"丢弃空段", "https://example.com//a///b.js", filepath.Join(root, "example.com", "a", "b.js")},
		{"清理非法段", "https://example.com/a:b/con", filepath.Join(root, "example.com", "a_b", "_con")},
		{"禁止目录穿越", "https://example.com/%2e%2e/x.js", filepath.Join(root, "example.com", "_", "x.js")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(tt.url, root)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, Resolve(tt.url, root), "结果应该确定")
		})
	}
}

func TestResolveUnparseableURL(t *testing.T) {
	root := t.TempDir()
	got := Resolve("https://example.com/%zz/a b.js", root)
	assert.Equal(t, filepath.Join(root, "example.com", "%zz", "a b.js"), got)
}

func TestDeduplicator(t *testing.T) {
	d := NewDeduplicator()
	path := filepath.Join("dir", "file.html")

	first := d.Claim(path)
	second := d.Claim(path)
	third := d.Claim(path)

	assert.Equal(t, filepath.Join("dir", "file.html"), first)
	assert.Equal(t, filepath.Join("dir", "file_1.html"), second)
	assert.Equal(t, filepath.Join("dir", "file_2.html"), third)

	for _, p := range []string{first, second, third} {
		assert.True(t, d.IsClaimed(p))
	}
	assert.False(t, d.IsClaimed(filepath.Join("dir", "file_3.html")))
	assert.Equal(t, 3, d.Len())
}

func TestDeduplicatorEdgeCases(t *testing.T) {
	t.Run("无扩展名", func(t *testing.T) {
		d := NewDeduplicator()
		d.Claim("a/README")
		assert.Equal(t, filepath.Join("a", "README_1"), d.Claim("a/README"))
	})

	t.Run("点开头的名称", func(t *testing.T) {
		d := NewDeduplicator()
		d.Claim("a/.htaccess")
		assert.Equal(t, filepath.Join("a", ".htaccess_1"), d.Claim("a/.htaccess"))
	})

	t.Run("编号候选已被直接占用", func(t *testing.T) {
		d := NewDeduplicator()
		d.Claim("a/x_1.js")
		d.Claim("a/x.js")
		assert.Equal(t, filepath.Join("a", "x_2.js"), d.Claim("a/x.js"))
	})

	t.Run("多扩展名只取最后一个", func(t *testing.T) {
		d := NewDeduplicator()
		d.Claim("a/app.min.js")
		assert.Equal(t, filepath.Join("a", "app.min_1.js"), d.Claim("a/app.min.js"))
	})

	t.Run("避开磁盘上已有文件", func(t *testing.T) {
		dir := t.TempDir()
		existing := filepath.Join(dir, "index.html")
		require.NoError(t, os.WriteFile(existing, []byte("old"), 0644))

		d := NewDiskAwareDeduplicator()
		assert.Equal(t, filepath.Join(dir, "index_1.html"), d.Claim(existing))

		plain := NewDeduplicator()
		assert.Equal(t, existing, plain.Claim(existing))
	})
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "a.bin")

	require.NoError(t, WriteFile(path, []byte("hello")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "不应残留临时文件")

	// 父路径是文件时写入失败
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	err = WriteFile(filepath.Join(blocker, "x.txt"), []byte("x"))
	assert.ErrorIs(t, err, models.ErrFileWrite)
}

func newTestSaver(t *testing.T, includeExternal bool) (*ResourceSaver, string) {
	t.Helper()
	root := t.TempDir()
	cfg, err := models.NewSaveConfig(models.SaveConfig{
		OutputDir:       root,
		BaseURL:         "https://example.com/",
		IncludeExternal: includeExternal,
	})
	require.NoError(t, err)
	return NewResourceSaver(cfg), root
}

func testPage() []models.Resource {
	return []models.Resource{
		models.NewResource("https://example.com/", "text/html", []byte("<html></html>"), nil, 200),
		models.NewResource("https://example.com/style.css", "text/css", []byte("body{}"), nil, 200),
		models.NewResource("https://cdn.other.com/cdn/app.js", "application/javascript", []byte("x()"), nil, 200),
	}
}

func TestSaveAllEndToEnd(t *testing.T) {
	saver, root := newTestSaver(t, false)

	result, err := saver.SaveAll(context.Background(), testPage())
	require.NoError(t, err)

	assert.Equal(t, 2, result.SavedCount())
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 0, result.TotalFailures())

	html, err := os.ReadFile(filepath.Join(root, "example.com", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(html))
	assert.FileExists(t, filepath.Join(root, "example.com", "style.css"))
	assert.NoDirExists(t, filepath.Join(root, "cdn.other.com"))

	require.Len(t, result.Files, 2)
	assert.Len(t, result.Files[0].Hash, 16)
	assert.Equal(t, int64(len("body{}")), result.Files[1].Size)
}

func TestSaveAllIncludeExternal(t *testing.T) {
	saver, root := newTestSaver(t, true)

	result, err := saver.SaveAll(context.Background(), testPage())
	require.NoError(t, err)
	assert.Equal(t, 3, result.SavedCount())
	assert.Equal(t, 0, result.SkippedCount)
	assert.FileExists(t, filepath.Join(root, "cdn.other.com", "cdn", "app.js"))
}

func TestSaveAllInfersExtensionAndDeduplicates(t *testing.T) {
	saver, root := newTestSaver(t, false)

	resources := []models.Resource{
		models.NewResource("https://example.com/api/data", "application/json", []byte("{}"), nil, 200),
		models.NewResource("https://example.com/app.js?v=1", "text/javascript", []byte("1"), nil, 200),
		models.NewResource("https://example.com/app.js?v=2", "text/javascript", []byte("2"), nil, 200),
	}

	result, err := saver.SaveAll(context.Background(), resources)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "example.com", "api", "data.json"),
		filepath.Join(root, "example.com", "app.js"),
		filepath.Join(root, "example.com", "app_1.js"),
	}, result.SavedPaths)

	v2, err := os.ReadFile(filepath.Join(root, "example.com", "app_1.js"))
	require.NoError(t, err)
	assert.Equal(t, "2", string(v2))
}

func TestSaveAllIsolatesWriteFailures(t *testing.T) {
	saver, root := newTestSaver(t, false)

	// 用文件占住目录位置,使 /blocked/x.js 写入失败
	require.NoError(t, os.MkdirAll(filepath.Join(root, "example.com"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "example.com", "blocked"), nil, 0644))

	resources := []models.Resource{
		models.NewResource("https://example.com/blocked/x.js", "text/javascript", []byte("x"), nil, 200),
		models.NewResource("https://example.com/ok.js", "text/javascript", []byte("ok"), nil, 200),
	}

	var outcomes []models.SaveStatus
	saver.OnOutcome = func(o models.SaveOutcome) { outcomes = append(outcomes, o.Status) }

	result, err := saver.SaveAll(context.Background(), resources)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SavedCount())
	require.Equal(t, 1, result.TotalFailures())
	assert.Equal(t, "https://example.com/blocked/x.js", result.Failures[0].URL)
	assert.ErrorIs(t, result.Failures[0].Err, models.ErrFileWrite)
	assert.Equal(t, []models.SaveStatus{models.SaveStatusFailed, models.SaveStatusSaved}, outcomes)
}

func TestSaveAllRespectsExistingFiles(t *testing.T) {
	saver, root := newTestSaver(t, false)
	existing := filepath.Join(root, "example.com", "index.html")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0755))
	require.NoError(t, os.WriteFile(existing, []byte("previous run"), 0644))

	result, err := saver.SaveAll(context.Background(), testPage()[:1])
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "example.com", "index_1.html")}, result.SavedPaths)

	old, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "previous run", string(old))
}

func TestSaveAllCancelled(t *testing.T) {
	saver, root := newTestSaver(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := saver.SaveAll(ctx, testPage())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.SavedCount())
	assert.NoDirExists(t, filepath.Join(root, "example.com"))
}

func TestSaveStream(t *testing.T) {
	saver, _ := newTestSaver(t, false)

	ch := make(chan models.Resource)
	go func() {
		defer close(ch)
		for _, r := range testPage() {
			ch <- r
		}
	}()

	result, err := saver.SaveStream(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SavedCount())
	assert.Equal(t, 1, result.SkippedCount)
}
