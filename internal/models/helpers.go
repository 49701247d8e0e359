package models

import (
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// ValidateURL 验证URL
// 失败时返回的ConfigError同时满足errors.Is(err, ErrInvalidURL)
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return invalidURL(urlStr, fmt.Errorf("%w: %v", ErrInvalidURL, err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return invalidURL(urlStr, fmt.Errorf("%w: URL必须是HTTP或HTTPS协议", ErrInvalidURL))
	}
	if parsed.Host == "" {
		return invalidURL(urlStr, fmt.Errorf("%w: URL必须包含主机名", ErrInvalidURL))
	}
	return nil
}

func invalidURL(raw string, cause error) error {
	return &ConfigError{Field: "url", Cause: fmt.Errorf("%q: %w", raw, cause)}
}

// NewRunID 生成运行ID
func NewRunID() string {
	return uuid.New().String()
}
