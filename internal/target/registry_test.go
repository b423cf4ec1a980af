package target

import (
	"testing"

	"github.com/dushixiang/sentinel/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Put(models.MonitoringTarget{ID: "b", Enabled: true}))
	assert.False(t, r.Put(models.MonitoringTarget{ID: "a"}))
	assert.True(t, r.Put(models.MonitoringTarget{ID: "b", Name: "B", Enabled: true}))

	list := r.List()
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "B", list[1].Name)

	enabled := r.Enabled()
	assert.Len(t, enabled, 1)
	assert.Equal(t, "b", enabled[0].ID)

	assert.True(t, r.Remove("a"))
	assert.False(t, r.Remove("a"))
	_, ok := r.Get("a")
	assert.False(t, ok)
}
