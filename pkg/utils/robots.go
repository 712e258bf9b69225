package utils

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsChecker manages robots.txt compliance checking for the
// results portal. Fetched files are cached per host for 24 hours.
type RobotsChecker struct {
	cache     map[string]*robotsCacheEntry
	mu        sync.RWMutex
	userAgent string
}

type robotsCacheEntry struct {
	data      *robotstxt.RobotsData
	expiresAt time.Time
}

// NewRobotsChecker creates a new robots.txt checker
func NewRobotsChecker(userAgent string) *RobotsChecker {
	return &RobotsChecker{
		cache:     make(map[string]*robotsCacheEntry),
		userAgent: userAgent,
	}
}

// IsAllowed checks if the given URL may be scraped according to robots.txt.
// A missing or unreachable robots.txt allows by default.
func (rc *RobotsChecker) IsAllowed(targetURL string) (bool, error) {
	parsedURL, err := url.Parse(targetURL)
	if err != nil {
		return false, fmt.Errorf("invalid URL: %w", err)
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsedURL.Scheme, parsedURL.Host)

	rc.mu.RLock()
	cached, exists := rc.cache[robotsURL]
	rc.mu.RUnlock()

	if exists && time.Now().Before(cached.expiresAt) {
		return cached.data.TestAgent(parsedURL.Path, rc.userAgent), nil
	}

	robotsData, err := rc.fetchRobotsTxt(robotsURL)
	if err != nil {
		return true, nil
	}

	rc.mu.Lock()
	rc.cache[robotsURL] = &robotsCacheEntry{
		data:      robotsData,
		expiresAt: time.Now().Add(24 * time.Hour),
	}
	rc.mu.Unlock()

	return robotsData.TestAgent(parsedURL.Path, rc.userAgent), nil
}

func (rc *RobotsChecker) fetchRobotsTxt(robotsURL string) (*robotstxt.RobotsData, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	resp, err := client.Get(robotsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("robots.txt returned status %d", resp.StatusCode)
	}

	return robotstxt.FromResponse(resp)
}
