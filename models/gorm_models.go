package models

import (
	"time"
)

// GormWordPair 词组表
type GormWordPair struct {
	ID        string    `gorm:"primaryKey;size:36"`
	WordA     string    `gorm:"size:50;not null;uniqueIndex:idx_word_pairs_words"`
	WordB     string    `gorm:"size:50;not null;uniqueIndex:idx_word_pairs_words"`
	Enabled   bool      `gorm:"not null;default:true;index"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

func (GormWordPair) TableName() string {
	return "word_pairs"
}

func (m GormWordPair) ToWordPair() WordPair {
	return WordPair{
		ID:        m.ID,
		WordA:     m.WordA,
		WordB:     m.WordB,
		Enabled:   m.Enabled,
		CreatedAt: m.CreatedAt,
	}
}
