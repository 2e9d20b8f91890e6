package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/danieldreier/kanji-srs/internal/srs"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fileData is the structure stored in the JSON file.
type fileData struct {
	Cards       []srs.Card        `json:"cards"`
	States      []srs.ReviewState `json:"states"`
	Reviews     []Review          `json:"reviews"`
	LastUpdated time.Time         `json:"last_updated"`
}

// FileStore implements Store using a JSON file for persistence. Every
// mutation is written through with an atomic temp-file rename.
type FileStore struct {
	filePath string
	cfg      srs.Config
	logger   *zap.Logger

	mu      sync.RWMutex
	cards   map[string]srs.Card
	order   []string
	states  map[srs.Key]srs.ReviewState
	reviews []Review
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore for filePath. Call Load before use.
func NewFileStore(filePath string, cfg srs.Config, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Creating file store", zap.String("path", filePath))
	return &FileStore{
		filePath: filePath,
		cfg:      cfg,
		logger:   logger,
		cards:    make(map[string]srs.Card),
		states:   make(map[srs.Key]srs.ReviewState),
	}
}

// OpenFileStore creates and loads a FileStore.
func OpenFileStore(filePath string, cfg srs.Config, logger *zap.Logger) (*FileStore, error) {
	fs := NewFileStore(filePath, cfg, logger)
	if err := fs.Load(); err != nil {
		return nil, err
	}
	return fs, nil
}

// Load reads the file. A missing or empty file yields an empty store.
func (fs *FileStore) Load() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := os.ReadFile(fs.filePath)
	if os.IsNotExist(err) {
		fs.logger.Debug("Store file not found, starting empty", zap.String("path", fs.filePath))
		fs.resetLocked(true)
		return nil
	}
	if err != nil {
		return persistErr("read store file", err)
	}
	if len(data) == 0 {
		fs.logger.Debug("Store file is empty, starting empty", zap.String("path", fs.filePath))
		fs.resetLocked(true)
		return nil
	}

	var fd fileData
	if err := json.Unmarshal(data, &fd); err != nil {
		return persistErr("unmarshal store file", err)
	}

	fs.resetLocked(true)
	for _, c := range fd.Cards {
		fs.putCardLocked(c)
	}
	for _, rs := range fd.States {
		if err := rs.Check(); err != nil {
			return persistErr("load state "+rs.Key().String(), err)
		}
		fs.states[rs.Key()] = rs.Normalize(fs.cfg)
	}
	fs.reviews = fd.Reviews

	fs.logger.Debug("Loaded store file",
		zap.String("path", fs.filePath),
		zap.Int("cards", len(fs.cards)),
		zap.Int("states", len(fs.states)),
		zap.Int("reviews", len(fs.reviews)))
	return nil
}

func (fs *FileStore) resetLocked(withCards bool) {
	if withCards {
		fs.cards = make(map[string]srs.Card)
		fs.order = nil
	}
	fs.states = make(map[srs.Key]srs.ReviewState)
	fs.reviews = nil
}

func (fs *FileStore) putCardLocked(c srs.Card) bool {
	_, exists := fs.cards[c.ID]
	if !exists {
		fs.order = append(fs.order, c.ID)
	}
	fs.cards[c.ID] = c
	return !exists
}

// save writes the store to disk. Assumes the write lock is held.
func (fs *FileStore) save() error {
	fd := fileData{
		Cards:       make([]srs.Card, 0, len(fs.order)),
		States:      make([]srs.ReviewState, 0, len(fs.states)),
		Reviews:     fs.reviews,
		LastUpdated: time.Now(),
	}
	for _, id := range fs.order {
		fd.Cards = append(fd.Cards, fs.cards[id])
	}
	for _, rs := range fs.states {
		fd.States = append(fd.States, rs)
	}
	sort.Slice(fd.States, func(i, j int) bool {
		return fd.States[i].Key().String() < fd.States[j].Key().String()
	})
	if fd.Reviews == nil {
		fd.Reviews = []Review{}
	}

	dataBytes, err := json.MarshalIndent(fd, "", "  ")
	if err != nil {
		return persistErr("marshal store", err)
	}

	if err := os.MkdirAll(filepath.Dir(fs.filePath), 0o755); err != nil {
		return persistErr("create directory", err)
	}

	tempFile := fs.filePath + ".tmp"
	if err := os.WriteFile(tempFile, dataBytes, 0o644); err != nil {
		os.Remove(tempFile)
		return persistErr("write temporary file", err)
	}
	if err := os.Rename(tempFile, fs.filePath); err != nil {
		os.Remove(tempFile)
		return persistErr("rename temporary file", err)
	}
	return nil
}

// ListCards implements CardStore.
func (fs *FileStore) ListCards(ctx context.Context) ([]srs.Card, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	result := make([]srs.Card, 0, len(fs.order))
	for _, id := range fs.order {
		result = append(result, fs.cards[id])
	}
	sortCards(result)
	return result, nil
}

// GetCard implements CardStore.
func (fs *FileStore) GetCard(ctx context.Context, id string) (srs.Card, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	card, exists := fs.cards[id]
	if !exists {
		return srs.Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	return card, nil
}

// ImportCards implements CardImporter and returns the number of new cards.
func (fs *FileStore) ImportCards(ctx context.Context, cards []srs.Card) (int, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prevCards := make(map[string]srs.Card, len(fs.cards))
	for k, v := range fs.cards {
		prevCards[k] = v
	}
	prevOrder := append([]string(nil), fs.order...)

	added := 0
	for _, c := range cards {
		if c.ID == "" {
			return 0, srs.ErrMissingCardID
		}
		if fs.putCardLocked(c) {
			added++
		}
	}
	if err := fs.save(); err != nil {
		fs.cards, fs.order = prevCards, prevOrder
		return 0, err
	}
	fs.logger.Info("Imported cards", zap.Int("received", len(cards)), zap.Int("added", added))
	return added, nil
}

// Get implements StateStore.
func (fs *FileStore) Get(ctx context.Context, key srs.Key) (srs.ReviewState, bool, error) {
	if err := key.Validate(); err != nil {
		return srs.ReviewState{}, false, err
	}
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	rs, ok := fs.states[key]
	return rs, ok, nil
}

// Put implements StateStore.
func (fs *FileStore) Put(ctx context.Context, state srs.ReviewState) error {
	_, err := fs.Update(ctx, state.Key(), func(srs.ReviewState, bool) (srs.ReviewState, error) {
		return state, nil
	})
	return err
}

// Update implements StateStore. The write lock is held across the read,
// fn and the file write.
func (fs *FileStore) Update(ctx context.Context, key srs.Key, fn UpdateFunc) (srs.ReviewState, error) {
	if err := key.Validate(); err != nil {
		return srs.ReviewState{}, err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	cur, ok := fs.states[key]
	next, err := applyUpdate(key, fs.cfg, cur, ok, fn)
	if err != nil {
		return srs.ReviewState{}, err
	}

	fs.states[key] = next
	if err := fs.save(); err != nil {
		if ok {
			fs.states[key] = cur
		} else {
			delete(fs.states, key)
		}
		fs.logger.Error("Failed to persist review state", zap.String("key", key.String()), zap.Error(err))
		return srs.ReviewState{}, err
	}
	return next, nil
}

// List implements StateStore.
func (fs *FileStore) List(ctx context.Context) (map[srs.Key]srs.ReviewState, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	out := make(map[srs.Key]srs.ReviewState, len(fs.states))
	for k, v := range fs.states {
		out[k] = v
	}
	return out, nil
}

// Reset implements StateStore. Cards are kept.
func (fs *FileStore) Reset(ctx context.Context) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	prevStates, prevReviews := fs.states, fs.reviews
	fs.resetLocked(false)
	if err := fs.save(); err != nil {
		fs.states, fs.reviews = prevStates, prevReviews
		return err
	}
	fs.logger.Info("Reset review progress", zap.String("path", fs.filePath))
	return nil
}

// Close implements StateStore. Every mutation is already on disk.
func (fs *FileStore) Close() error {
	return nil
}

// AddReview implements ReviewLog.
func (fs *FileStore) AddReview(ctx context.Context, r Review) error {
	if err := srs.KeyOf(r.CardID, r.Facet).Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fs.reviews = append(fs.reviews, r)
	if err := fs.save(); err != nil {
		fs.reviews = fs.reviews[:len(fs.reviews)-1]
		return err
	}
	return nil
}

// ReviewsFor implements ReviewLog.
func (fs *FileStore) ReviewsFor(ctx context.Context, key srs.Key) ([]Review, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	var out []Review
	for _, r := range fs.reviews {
		if r.CardID == key.CardID && r.Facet == key.Facet {
			out = append(out, r)
		}
	}
	return out, nil
}

// IntroducedSince implements ReviewLog.
func (fs *FileStore) IntroducedSince(ctx context.Context, since time.Time) (int, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	n := 0
	for _, r := range fs.reviews {
		if r.WasNew && !r.Timestamp.Before(since) {
			n++
		}
	}
	return n, nil
}
