package party

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emberforge/socialcore/model"
	"github.com/emberforge/socialcore/social"
)

// Store is the durability boundary for parties. Writes are asynchronous
// latest-wins snapshots; only LoadParty is synchronous because a cache
// miss needs the answer before it can respond.
type Store interface {
	SaveParty(p *Party)
	DeleteParty(partyID string)
	LoadParty(ctx context.Context, partyID string) (*Party, error)
	Stop()
}

type opKind int

const (
	opSave opKind = iota
	opDelete
)

type storeOp struct {
	kind    opKind
	partyID string
	party   *Party
}

// GormStore persists party snapshots as JSON rows through a single
// background worker, so registry mutations never wait on the database.
// A full queue drops the write and logs; the next snapshot of the same
// party supersedes it anyway.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
	ops    chan storeOp
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewGormStore(db *gorm.DB, logger *zap.Logger, queueSize int) *GormStore {
	if queueSize <= 0 {
		queueSize = 1024
	}
	s := &GormStore{
		db:     db,
		logger: logger,
		ops:    make(chan storeOp, queueSize),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.worker()
	return s
}

func (s *GormStore) SaveParty(p *Party) {
	s.enqueue(storeOp{kind: opSave, partyID: p.ID, party: p})
}

func (s *GormStore) DeleteParty(partyID string) {
	s.enqueue(storeOp{kind: opDelete, partyID: partyID})
}

func (s *GormStore) enqueue(op storeOp) {
	select {
	case s.ops <- op:
	case <-s.done:
	default:
		s.logger.Warn("party store queue full, dropping write",
			zap.String("party_id", op.partyID))
	}
}

func (s *GormStore) LoadParty(ctx context.Context, partyID string) (*Party, error) {
	var rec model.PartyRecord
	err := s.db.WithContext(ctx).First(&rec, "party_id = ?", partyID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, social.ErrNotFound
		}
		return nil, err
	}
	var p Party
	if err := json.Unmarshal(rec.Data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Stop drains the queue and waits for the worker to finish.
func (s *GormStore) Stop() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *GormStore) worker() {
	defer s.wg.Done()
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	// Latest snapshot per party since the last flush. A delete clears
	// any buffered save so ordering per party is preserved.
	pending := make(map[string]storeOp)

	flush := func() {
		for id, op := range pending {
			delete(pending, id)
			s.apply(op)
		}
	}

	for {
		select {
		case op := <-s.ops:
			pending[op.partyID] = op
			if len(pending) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.done:
			for {
				select {
				case op := <-s.ops:
					pending[op.partyID] = op
				default:
					flush()
					return
				}
			}
		}
	}
}

func (s *GormStore) apply(op storeOp) {
	switch op.kind {
	case opSave:
		data, err := json.Marshal(op.party)
		if err != nil {
			s.logger.Error("marshal party snapshot", zap.Error(err),
				zap.String("party_id", op.partyID))
			return
		}
		rec := model.PartyRecord{PartyID: op.partyID, Data: datatypes.JSON(data)}
		err = s.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "party_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&rec).Error
		if err != nil {
			s.logger.Error("save party snapshot", zap.Error(err),
				zap.String("party_id", op.partyID))
		}
	case opDelete:
		err := s.db.Delete(&model.PartyRecord{}, "party_id = ?", op.partyID).Error
		if err != nil {
			s.logger.Error("delete party snapshot", zap.Error(err),
				zap.String("party_id", op.partyID))
		}
	}
}

// MemoryStore keeps snapshots in a map. It backs tests and the memory
// database mode where durability across restarts is not required.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]byte)}
}

func (s *MemoryStore) SaveParty(p *Party) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.records[p.ID] = data
	s.mu.Unlock()
}

func (s *MemoryStore) DeleteParty(partyID string) {
	s.mu.Lock()
	delete(s.records, partyID)
	s.mu.Unlock()
}

func (s *MemoryStore) LoadParty(_ context.Context, partyID string) (*Party, error) {
	s.mu.Lock()
	data, ok := s.records[partyID]
	s.mu.Unlock()
	if !ok {
		return nil, social.ErrNotFound
	}
	var p Party
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MemoryStore) Stop() {}
