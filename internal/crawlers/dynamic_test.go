package crawlers

import (
	"context"
	"testing"
	"time"

	"github.com/RecoveryAshes/webgrab/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDynamicDriverNavigateBeforeLaunch(t *testing.T) {
	driver := NewDynamicDriver(models.CaptureConfig{Headless: true})
	err := driver.Navigate(context.Background(), "https://example.com", func(models.ResponseEvent) {}, time.Second)
	assert.ErrorIs(t, err, models.ErrBrowser)
	assert.NoError(t, driver.Close())
}
