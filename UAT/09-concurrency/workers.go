package workers

import "sync"

// Fetcher fetches one page.
type Fetcher struct {
	Fetch func(url string) (int, error)
}

// FetchAll fetches every url on its own goroutine and returns the total size
// of the pages that were fetched without error.
func FetchAll(fetcher *Fetcher, urls []string) int {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)

	for _, url := range urls {
		wg.Go(func() {
			size, err := fetcher.Fetch(url)
			if err != nil {
				return
			}

			mu.Lock()
			total += size
			mu.Unlock()
		})
	}

	wg.Wait()

	return total
}
