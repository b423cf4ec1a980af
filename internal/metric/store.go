package metric

import (
	"sort"
	"sync"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
)

// DefaultRetention 默认保留 24 小时
const DefaultRetention = 24 * time.Hour

// Store 按名称分组的内存时序存储
type Store struct {
	mu        sync.RWMutex
	series    map[string][]models.Metric
	retention time.Duration
	now       func() time.Time
}

type Option func(*Store)

// WithClock 替换时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(retention time.Duration, opts ...Option) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	s := &Store{
		series:    make(map[string][]models.Metric),
		retention: retention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record 追加样本并裁剪过期前缀
func (s *Store) Record(name string, value float64, timestamp time.Time, unit string) models.Metric {
	if timestamp.IsZero() {
		timestamp = s.now()
	}
	sample := models.Metric{Name: name, Value: value, Timestamp: timestamp, Unit: unit}

	s.mu.Lock()
	defer s.mu.Unlock()

	series := s.series[name]
	n := len(series)
	if n == 0 || !timestamp.Before(series[n-1].Timestamp) {
		series = append(series, sample)
	} else {
		// 乱序样本插入到有序位置
		i := sort.Search(n, func(i int) bool { return series[i].Timestamp.After(timestamp) })
		series = append(series, models.Metric{})
		copy(series[i+1:], series[i:])
		series[i] = sample
	}
	s.series[name] = s.pruneLocked(series)
	return sample
}

// pruneLocked 以 max(now, 最新样本) 为基准裁掉保留窗口之外的前缀
func (s *Store) pruneLocked(series []models.Metric) []models.Metric {
	if len(series) == 0 {
		return series
	}
	ref := s.now()
	if newest := series[len(series)-1].Timestamp; newest.After(ref) {
		ref = newest
	}
	cutoff := ref.Add(-s.retention)
	i := sort.Search(len(series), func(i int) bool { return !series[i].Timestamp.Before(cutoff) })
	if i == 0 {
		return series
	}
	// 复制一份，避免底层数组无限增长
	return append([]models.Metric(nil), series[i:]...)
}

// Prune 清理所有序列中的过期样本，并移除空序列
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for name, series := range s.series {
		pruned := s.pruneLocked(series)
		removed += len(series) - len(pruned)
		if len(pruned) == 0 {
			delete(s.series, name)
			continue
		}
		s.series[name] = pruned
	}
	return removed
}

// Latest 返回最近一个样本
func (s *Store) Latest(name string) (models.Metric, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.series[name]
	if len(series) == 0 {
		return models.Metric{}, false
	}
	return series[len(series)-1], true
}

// LatestAll 返回每个指标的最新样本
func (s *Store) LatestAll() map[string]models.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]models.Metric, len(s.series))
	for name, series := range s.series {
		if len(series) > 0 {
			latest[name] = series[len(series)-1]
		}
	}
	return latest
}

// Query name 为空时返回全部序列，按名称、时间排序
func (s *Store) Query(name string, timeRange *models.TimeRange) []models.Metric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	if name != "" {
		names = []string{name}
	} else {
		names = make([]string, 0, len(s.series))
		for n := range s.series {
			names = append(names, n)
		}
		sort.Strings(names)
	}

	var result []models.Metric
	for _, n := range names {
		for _, m := range s.series[n] {
			if timeRange != nil && !timeRange.Contains(m.Timestamp) {
				continue
			}
			result = append(result, m)
		}
	}
	return result
}

// Series 将单个指标转换为图表序列
func (s *Store) Series(name string, timeRange *models.TimeRange) Series {
	samples := s.Query(name, timeRange)
	series := Series{Name: name, Data: make([]DataPoint, 0, len(samples))}
	for _, m := range samples {
		series.Unit = m.Unit
		series.Data = append(series.Data, DataPoint{Timestamp: m.Timestamp.UnixMilli(), Value: m.Value})
	}
	return series
}

// Names 已知指标名
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.series))
	for n := range s.series {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
