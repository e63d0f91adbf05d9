package bga

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	baseURL = "https://boardgamearena.com"

	// Pacing between page fetches. The site throttles aggressive
	// clients, so stay well under its tolerance.
	requestDelay  = 2 * time.Second
	requestJitter = 1500 * time.Millisecond

	pageLoadTimeout = 45 * time.Second
)

// ErrReplayLimit is returned when the site refuses a replay page because
// the account hit its daily replay quota. Callers should stop fetching
// replays and resume on the next quota window.
var ErrReplayLimit = errors.New("replay limit reached for this account")

// ErrNotLoggedIn is returned when a fetched page shows the logged-out
// shell instead of content.
var ErrNotLoggedIn = errors.New("session is not logged in")

// replayLimitMarkers are the phrases the refusal page is known to carry.
var replayLimitMarkers = []string{
	"you have reached a limit",
	"replay limit",
	"available in 24 hours",
}

// Session is a logged-in browsing session. One Session drives one
// headless browser; fetches are serialized through the pacing gate, so a
// single Session is safe for concurrent use.
type Session struct {
	email    string
	password string

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc

	mu       sync.Mutex
	lastReq  time.Time
	loggedIn bool

	// site version by table ID prefix, resolved once per run
	versionMu sync.Mutex
	version   string
}

// NewSession starts a headless browser. Credentials come from the
// BGA_EMAIL and BGA_PASSWORD environment variables.
func NewSession(ctx context.Context) (*Session, error) {
	email := os.Getenv("BGA_EMAIL")
	password := os.Getenv("BGA_PASSWORD")
	if email == "" || password == "" {
		return nil, fmt.Errorf("BGA_EMAIL and BGA_PASSWORD environment variables not set")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.WindowSize(1920, 1080),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Start the browser before any navigation so failures surface early
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return &Session{
		email:       email,
		password:    password,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
	}, nil
}

// Close shuts the browser down.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

// Login authenticates through the account form and verifies the landing
// page shows a logged-in shell.
func (s *Session) Login(ctx context.Context) error {
	s.pace()

	runCtx, cancelRun := context.WithTimeout(s.browserCtx, pageLoadTimeout)
	defer cancelRun()

	var shell string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(baseURL+"/account"),
		chromedp.WaitVisible(`#username_input`, chromedp.ByID),
		chromedp.SendKeys(`#username_input`, s.email, chromedp.ByID),
		chromedp.SendKeys(`#password_input`, s.password, chromedp.ByID),
		chromedp.Click(`#submit_login_button`, chromedp.ByID),
		chromedp.Sleep(3*time.Second),
		chromedp.Navigate(baseURL),
		chromedp.OuterHTML("html", &shell),
	)
	if err != nil {
		return fmt.Errorf("login navigation failed: %w", err)
	}

	if !strings.Contains(shell, "logout") && !strings.Contains(shell, "You are connected") {
		return ErrNotLoggedIn
	}
	s.mu.Lock()
	s.loggedIn = true
	s.mu.Unlock()
	fmt.Printf("[BGA] Logged in as %s\n", s.email)
	return nil
}

// LoggedIn reports whether Login has succeeded on this session.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

// FetchTable fetches the table (match summary) page for a finished game.
func (s *Session) FetchTable(ctx context.Context, tableID string) (string, error) {
	url := fmt.Sprintf("%s/table?table=%s", baseURL, tableID)
	doc, err := s.fetch(ctx, url, "#overall-content")
	if err != nil {
		return "", fmt.Errorf("table %s: %w", tableID, err)
	}
	return doc, nil
}

// FetchReplay fetches the replay page for a finished game as seen from
// one player's perspective. A quota-refusal page is surfaced as
// ErrReplayLimit.
func (s *Session) FetchReplay(ctx context.Context, version, tableID, playerID string) (string, error) {
	url := fmt.Sprintf("%s/archive/replay/%s/?table=%s&player=%s&comments=%s",
		baseURL, version, tableID, playerID, playerID)
	doc, err := s.fetch(ctx, url, "body")
	if err != nil {
		return "", fmt.Errorf("replay %s: %w", tableID, err)
	}

	lower := strings.ToLower(doc)
	for _, marker := range replayLimitMarkers {
		if strings.Contains(lower, marker) {
			return "", fmt.Errorf("replay %s: %w", tableID, ErrReplayLimit)
		}
	}
	return doc, nil
}

// SiteVersion resolves the archive version used in replay URLs, fetching
// the table page on first use and caching for the rest of the run.
func (s *Session) SiteVersion(ctx context.Context, tableID string) (string, error) {
	s.versionMu.Lock()
	defer s.versionMu.Unlock()
	if s.version != "" {
		return s.version, nil
	}

	doc, err := s.FetchTable(ctx, tableID)
	if err != nil {
		return "", err
	}
	version, err := ExtractVersion(doc)
	if err != nil {
		return "", err
	}
	s.version = version
	fmt.Printf("[BGA] Site version %s\n", version)
	return version, nil
}

// fetch navigates to a URL, waits for the marker selector, and returns the
// rendered document.
func (s *Session) fetch(ctx context.Context, url, waitSelector string) (string, error) {
	s.pace()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	runCtx, cancelRun := context.WithTimeout(s.browserCtx, pageLoadTimeout)
	defer cancelRun()

	var doc string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(waitSelector, chromedp.ByQuery),
		chromedp.Sleep(1*time.Second),
		chromedp.OuterHTML("html", &doc),
	)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	if strings.Contains(doc, "must be logged") {
		return "", ErrNotLoggedIn
	}
	return doc, nil
}

// pace enforces the fixed delay plus jitter between consecutive fetches.
func (s *Session) pace() {
	s.mu.Lock()
	defer s.mu.Unlock()

	wait := requestDelay + time.Duration(rand.Int63n(int64(requestJitter)))
	elapsed := time.Since(s.lastReq)
	if elapsed < wait {
		time.Sleep(wait - elapsed)
	}
	s.lastReq = time.Now()
}

var (
	versionPattern   = regexp.MustCompile(`/archive/replay/(\d{6}-\d{4})/`)
	playerIDPattern  = regexp.MustCompile(`/player\?id=(\d+)`)
	tableLinkPattern = regexp.MustCompile(`gamereview\?table=(\d+)`)
)

// ExtractVersion pulls the archive version number out of a table page's
// replay links.
func ExtractVersion(doc string) (string, error) {
	if m := versionPattern.FindStringSubmatch(doc); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("no replay version link in document")
}

// ExtractPlayerIDs pulls the distinct player IDs from a table page, in
// order of first appearance. Any of them works as the replay perspective.
func ExtractPlayerIDs(doc string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range playerIDPattern.FindAllStringSubmatch(doc, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	}
	return ids
}

// ExtractTableIDs pulls game-review table links from a listing page.
func ExtractTableIDs(doc string) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range tableLinkPattern.FindAllStringSubmatch(doc, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			ids = append(ids, m[1])
		}
	}
	return ids
}
