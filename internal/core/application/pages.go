package application

import (
	"fmt"

	"github.com/arkade-os/swapd/internal/core/domain"
)

// pagedIndex is an append-only sequence split in fixed-size pages, with a
// pointer to the only page that still has room.
type pagedIndex struct {
	pageKey     func(page uint32) string
	lastPageKey string
	pageSize    int
}

func destinationsIndex() pagedIndex {
	return pagedIndex{
		pageKey:     func(page uint32) string { return fmt.Sprintf("destinations/%d", page) },
		lastPageKey: "destinations_last_page",
		pageSize:    domain.DestinationsPageSize,
	}
}

func completedIndex(destination domain.AccountId) pagedIndex {
	return pagedIndex{
		pageKey: func(page uint32) string {
			return fmt.Sprintf("completed/%s/%d", destination, page)
		},
		lastPageKey: fmt.Sprintf("completed_last_page/%s", destination),
		pageSize:    domain.CompletedRequestsPageSize,
	}
}

func getLastPage(s *state, idx pagedIndex) (uint32, error) {
	var page uint32
	if _, err := s.get(idx.lastPageKey, &page); err != nil {
		return 0, err
	}
	return page, nil
}

// getPage returns an empty page for pages never written.
func getPage[T any](s *state, idx pagedIndex, page uint32) ([]T, error) {
	items := make([]T, 0)
	if _, err := s.get(idx.pageKey(page), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func appendToLastPage[T any](s *state, idx pagedIndex, item T) error {
	lastPage, err := getLastPage(s, idx)
	if err != nil {
		return err
	}
	items, err := getPage[T](s, idx, lastPage)
	if err != nil {
		return err
	}
	items = append(items, item)
	if err := s.put(idx.pageKey(lastPage), items); err != nil {
		return err
	}
	if len(items) == idx.pageSize {
		return s.put(idx.lastPageKey, lastPage+1)
	}
	return nil
}
