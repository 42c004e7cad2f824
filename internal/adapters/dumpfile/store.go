// Package dumpfile читает выгрузку журнала погружения из JSON-файла.
package dumpfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"immersion-stats/internal/domain"
)

// ErrNoDailyTotals возвращается, если в выгрузке нет дневных агрегатов.
var ErrNoDailyTotals = errors.New("dump has no daily totals")

// dump — формат файла. Допускается и голый массив записей.
type dump struct {
	User struct {
		ID       string `json:"_id"`
		Username string `json:"username"`
		Timezone string `json:"timezone"`
	} `json:"user"`
	Records []domain.ActivityRecord `json:"records"`
	Daily   *domain.BucketedStats   `json:"daily,omitempty"`
}

// Store хранит выгрузку одного пользователя в памяти.
type Store struct {
	mu      sync.RWMutex
	user    domain.User
	records []domain.ActivityRecord
	daily   *domain.BucketedStats
}

var (
	_ domain.RecordProvider = (*Store)(nil)
	_ domain.UserRepo       = (*Store)(nil)
)

// Open читает выгрузку из файла.
func Open(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("открытие выгрузки: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read разбирает выгрузку из потока.
func Read(r io.Reader) (*Store, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("чтение выгрузки: %w", err)
	}
	data = bytes.TrimSpace(data)
	var d dump
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &d.Records)
	} else {
		err = json.Unmarshal(data, &d)
	}
	if err != nil {
		return nil, fmt.Errorf("разбор выгрузки: %w", err)
	}
	return &Store{
		user:    domain.User{ID: d.User.ID, Username: d.User.Username, Timezone: d.User.Timezone},
		records: d.Records,
		daily:   d.Daily,
	}, nil
}

// Records возвращает записи не раньше since. Выгрузка содержит одного пользователя,
// поэтому userID проверяется только у записей, где он указан.
func (s *Store) Records(_ context.Context, userID string, since time.Time) ([]domain.ActivityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ActivityRecord, 0, len(s.records))
	for _, rec := range s.records {
		if rec.UserID != "" && userID != "" && rec.UserID != userID {
			continue
		}
		// Невалидные записи отдаются как есть, их пропускает агрегатор.
		if !since.IsZero() && rec.TimestampUTC.Valid() && rec.TimestampUTC.Time.Before(since) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// DailyTotals возвращает дневные агрегаты из выгрузки, если они там есть.
func (s *Store) DailyTotals(_ context.Context, _ string, timezone string) (domain.BucketedStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.daily == nil {
		return domain.BucketedStats{}, ErrNoDailyTotals
	}
	out := *s.daily
	if out.Timezone == "" {
		out.Timezone = timezone
	}
	return out, nil
}

// GetUser возвращает владельца выгрузки. Выгрузка без пользователя принимает любой ID.
func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user.ID == "" {
		user := s.user
		user.ID = userID
		return user, nil
	}
	if s.user.ID != userID {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.user, nil
}

// UpdateTimezone меняет пояс только в памяти, файл не перезаписывается.
func (s *Store) UpdateTimezone(_ context.Context, userID, timezone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user.ID != "" && s.user.ID != userID {
		return domain.ErrUserNotFound
	}
	s.user.Timezone = timezone
	return nil
}

// UserID возвращает владельца выгрузки или пустую строку.
func (s *Store) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.ID
}
