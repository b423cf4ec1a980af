package repo

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dushixiang/sentinel/internal/models"
	bolt "go.etcd.io/bbolt"
)

var (
	thresholdBucket = []byte("thresholds")
	targetBucket    = []byte("targets")
)

// StateStore 通过接口在运行时添加的阈值和目标，重启后恢复
type StateStore struct {
	db *bolt.DB
}

func OpenStateStore(path string) (*StateStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open state file %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{thresholdBucket, targetBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state buckets: %w", err)
	}
	return &StateStore{db: db}, nil
}

func (s *StateStore) SaveThreshold(t models.Threshold) error {
	return s.put(thresholdBucket, t.ID, t)
}

func (s *StateStore) DeleteThreshold(id string) error {
	return s.delete(thresholdBucket, id)
}

// Thresholds 按 ID 排序返回
func (s *StateStore) Thresholds() ([]models.Threshold, error) {
	var items []models.Threshold
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(thresholdBucket).ForEach(func(k, v []byte) error {
			var t models.Threshold
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("decode threshold %s: %w", k, err)
			}
			items = append(items, t)
			return nil
		})
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, err
}

func (s *StateStore) SaveTarget(t models.MonitoringTarget) error {
	return s.put(targetBucket, t.ID, t)
}

func (s *StateStore) DeleteTarget(id string) error {
	return s.delete(targetBucket, id)
}

// Targets 按 ID 排序返回
func (s *StateStore) Targets() ([]models.MonitoringTarget, error) {
	var items []models.MonitoringTarget
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(targetBucket).ForEach(func(k, v []byte) error {
			var t models.MonitoringTarget
			if err := json.Unmarshal(v, &t); err != nil {
				return fmt.Errorf("decode target %s: %w", k, err)
			}
			items = append(items, t)
			return nil
		})
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, err
}

func (s *StateStore) put(bucket []byte, id string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(id), data)
	})
}

func (s *StateStore) delete(bucket []byte, id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Delete([]byte(id))
	})
}

func (s *StateStore) Close() error {
	return s.db.Close()
}
