package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"cdphar/internal/logger"
	"cdphar/pkg/har"
)

// Capture 一次完成的捕获记录
type Capture struct {
	ID         string `gorm:"primaryKey;size:36"`
	TargetURL  string
	EntryCount int
	StartedAt  time.Time
	CreatedAt  time.Time
	// Document 紧凑序列化的 HAR JSON
	Document []byte
}

// Store 归档存储
type Store struct {
	db  *gorm.DB
	log logger.Logger
	// bodyThreshold 持久化时响应体裁剪阈值（字节），0 表示不裁剪
	bodyThreshold int64
}

// Open 打开归档存储并迁移表结构
func Open(dsn, prefix string, bodyThreshold int64, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&Capture{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, log: l, bodyThreshold: bodyThreshold}, nil
}

// SaveArchive 持久化归档文档，返回记录标识。
// 文档按紧凑格式序列化，超过阈值的响应体文本在入库前裁剪。
func (s *Store) SaveArchive(doc *har.HAR, targetURL string, startedAt time.Time) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal archive: %w", err)
	}
	data = s.trimBodies(data)

	rec := Capture{
		ID:         uuid.NewString(),
		TargetURL:  targetURL,
		EntryCount: len(doc.Log.Entries),
		StartedAt:  startedAt,
		Document:   data,
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return "", fmt.Errorf("save archive: %w", err)
	}
	s.log.Info("归档已入库", "id", rec.ID, "entries", rec.EntryCount, "bytes", len(data))
	return rec.ID, nil
}

// Get 按标识读取捕获记录
func (s *Store) Get(id string) (*Capture, error) {
	var rec Capture
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// List 按时间倒序列出捕获记录（不含文档内容）
func (s *Store) List(limit int) ([]Capture, error) {
	var recs []Capture
	err := s.db.
		Select("id", "target_url", "entry_count", "started_at", "created_at").
		Order("created_at desc").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// trimBodies 裁剪超过阈值的响应体文本，保留其余字段
func (s *Store) trimBodies(data []byte) []byte {
	if s.bodyThreshold <= 0 {
		return data
	}
	entries := gjson.GetBytes(data, "log.entries")
	i := -1
	entries.ForEach(func(_, entry gjson.Result) bool {
		i++
		text := entry.Get("response.content.text")
		if !text.Exists() || int64(len(text.String())) <= s.bodyThreshold {
			return true
		}
		path := fmt.Sprintf("log.entries.%d.response.content.text", i)
		trimmed, err := sjson.DeleteBytes(data, path)
		if err != nil {
			s.log.Warn("裁剪响应体失败", "path", path, "error", err)
			return true
		}
		data = trimmed
		return true
	})
	return data
}
