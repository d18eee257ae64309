// Package reputation provides the peer trust/ban-list store consulted
// by the transport dispatcher before bidding. Authorization is layered
// on top of the core transports via this store; it never reaches inside
// a handshake state machine.
package reputation

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cvsouth/i2p-go/data"
)

// BannedPeer is a single ban-list row, keyed by the hex-encoded peer
// hash.
type BannedPeer struct {
	PeerHash  string    `gorm:"primarykey" json:"peer_hash"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the dispatcher-facing ban-list interface, satisfied by
// *GormStore and by test doubles.
type Store interface {
	IsBanned(hash data.Hash) (bool, error)
	Ban(hash data.Hash, reason string) error
	Unban(hash data.Hash) error
	ListBanned() ([]BannedPeer, error)
}

// GormStore backs Store with a GORM database, sqlite by default.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// Open initializes the database connection and runs migrations. dsn
// follows the "sqlite:///path/to/db" convention.
func Open(dsn string) (*GormStore, error) {
	var db *gorm.DB
	var err error

	switch {
	case strings.HasPrefix(dsn, "sqlite://"):
		dbPath := strings.TrimPrefix(dsn, "sqlite://")
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
	default:
		return nil, fmt.Errorf("reputation: unsupported DSN %q (only sqlite:// supported)", dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("reputation: open database: %w", err)
	}

	if err := db.AutoMigrate(&BannedPeer{}); err != nil {
		return nil, fmt.Errorf("reputation: migrate database: %w", err)
	}
	return &GormStore{db: db}, nil
}

// IsBanned reports whether hash is currently on the ban list.
func (s *GormStore) IsBanned(hash data.Hash) (bool, error) {
	var count int64
	err := s.db.Model(&BannedPeer{}).Where("peer_hash = ?", hexHash(hash)).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("reputation: query ban: %w", err)
	}
	return count > 0, nil
}

// Ban adds hash to the ban list, or updates its reason if already
// present.
func (s *GormStore) Ban(hash data.Hash, reason string) error {
	row := BannedPeer{PeerHash: hexHash(hash), Reason: reason, CreatedAt: time.Now()}
	err := s.db.Save(&row).Error
	if err != nil {
		return fmt.Errorf("reputation: ban %s: %w", hash.String(), err)
	}
	return nil
}

// Unban removes hash from the ban list, if present.
func (s *GormStore) Unban(hash data.Hash) error {
	err := s.db.Delete(&BannedPeer{}, "peer_hash = ?", hexHash(hash)).Error
	if err != nil {
		return fmt.Errorf("reputation: unban %s: %w", hash.String(), err)
	}
	return nil
}

// ListBanned returns every banned peer, for the control API.
func (s *GormStore) ListBanned() ([]BannedPeer, error) {
	var rows []BannedPeer
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reputation: list bans: %w", err)
	}
	return rows, nil
}

func hexHash(h data.Hash) string {
	return fmt.Sprintf("%x", h.Bytes())
}
