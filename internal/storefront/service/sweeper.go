package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sakuracloud/storefront/internal/storefront/repository"
)

// ExpirySweeper transitions active services past their expiry to expired in
// the background.
type ExpirySweeper struct {
	repo     repository.Repository
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(repo repository.Repository) *ExpirySweeper {
	return &ExpirySweeper{
		repo:     repo,
		interval: time.Minute,
		stopCh:   make(chan struct{}),
	}
}

// Start starts the sweeper loop
func (s *ExpirySweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweepLoop()
	}()
}

// Stop stops the sweeper and waits for the current sweep to finish
func (s *ExpirySweeper) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *ExpirySweeper) sweepLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

func (s *ExpirySweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	expired, err := s.repo.ExpireServices(ctx, time.Now())
	if err != nil {
		log.Printf("Error expiring services: %v", err)
		return
	}

	if expired > 0 {
		log.Printf("Marked %d services as expired", expired)
	}
}
