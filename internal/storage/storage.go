package storage

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/lehigh-university-libraries/sketchguess/internal/models"
)

type BoardStore struct {
	boards map[string]*models.Board
	mu     sync.RWMutex
}

func New() *BoardStore {
	return &BoardStore{
		boards: make(map[string]*models.Board),
	}
}

// Create registers a new board with a random ID.
func (s *BoardStore) Create(width, height int) *models.Board {
	board := models.NewBoard(uuid.NewString(), width, height)
	s.Set(board.ID, board)
	return board
}

func (s *BoardStore) Get(boardID string) (*models.Board, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	board, exists := s.boards[boardID]
	return board, exists
}

func (s *BoardStore) Set(boardID string, board *models.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.boards[boardID] = board
}

// List returns all boards, oldest first.
func (s *BoardStore) List() []*models.Board {
	s.mu.RLock()
	result := make([]*models.Board, 0, len(s.boards))
	for _, b := range s.boards {
		result = append(result, b)
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Delete removes the board and detaches its listeners.
func (s *BoardStore) Delete(boardID string) bool {
	s.mu.Lock()
	board, exists := s.boards[boardID]
	delete(s.boards, boardID)
	s.mu.Unlock()

	if exists {
		board.Close()
	}
	return exists
}
