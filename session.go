package main

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// BotSession owns the browser for one run attempt. It is the only holder of
// the page handle; nothing else touches the browser. Created per attempt and
// torn down at the end of it.
type BotSession struct {
	cfg    *Config
	log    *zap.Logger
	solver *ChallengeSolver

	browser  *rod.Browser
	page     *rod.Page
	frame    *rod.Page // challenge iframe context, when entered
	launcher *launcher.Launcher
	router   *rod.HijackRouter
	rand     *rand.Rand

	// active reports whether the session is still usable. It is forced
	// false the moment any classification lands in a terminal state and no
	// interaction is attempted afterwards.
	active      bool
	centreIndex int
	runID       string
}

func NewBotSession(cfg *Config, log *zap.Logger) *BotSession {
	runID := uuid.NewString()[:8]
	return &BotSession{
		cfg:    cfg,
		log:    log.With(zap.String("run", runID)),
		solver: NewChallengeSolver(cfg, log),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
		runID:  runID,
	}
}

// Start launches the browser and opens a stealth page. System Chrome is
// preferred when found; leakless is disabled on Windows to avoid the known
// rod deadlock there.
func (s *BotSession) Start() error {
	useLeakless := runtime.GOOS != "windows"

	s.launcher = launcher.New().
		Leakless(useLeakless).
		Headless(s.cfg.Headless)

	if s.cfg.BrowserProfilePath != "" {
		if err := os.MkdirAll(s.cfg.BrowserProfilePath, 0755); err != nil {
			return fmt.Errorf("failed to create browser profile dir: %w", err)
		}
		s.launcher = s.launcher.UserDataDir(s.cfg.BrowserProfilePath)
	}

	if chromePath, ok := launcher.LookPath(); ok {
		s.launcher = s.launcher.Bin(chromePath)
		s.log.Info("using system chrome", zap.String("path", chromePath))
	} else {
		s.log.Info("system chrome not found, falling back to managed chromium")
	}

	controlURL, err := s.launcher.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	// Trace echoes every devtools action in debug mode.
	s.browser = rod.New().ControlURL(controlURL).Trace(s.cfg.DebugMode)
	if err := s.browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	s.page, err = stealth.Page(s.browser)
	if err != nil {
		return fmt.Errorf("failed to create stealth page: %w", err)
	}

	if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: sessionUserAgent}); err != nil {
		s.log.Warn("failed to override user agent", zap.Error(err))
	}

	if s.cfg.BlockImages {
		s.router = s.page.HijackRequests()
		err := s.router.Add("*", proto.NetworkResourceTypeImage, func(ctx *rod.Hijack) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
		if err != nil {
			s.log.Warn("failed to install image blocker", zap.Error(err))
		} else {
			go s.router.Run()
		}
	}

	s.log.Info("browser session started")
	return nil
}

// Close tears the whole session down. Safe to call on a partially started
// session.
func (s *BotSession) Close() {
	s.active = false

	if s.router != nil {
		_ = s.router.Stop()
	}
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.launcher != nil {
		s.launcher.Cleanup()
	}

	s.log.Info("browser session closed")
}

func (s *BotSession) Active() bool { return s.active }

func (s *BotSession) markActive() { s.active = true }

func (s *BotSession) markInactive(reason string) {
	if s.active {
		s.log.Warn("session marked inactive", zap.String("reason", reason))
	}
	s.active = false
}

// Navigate loads the URL and waits for the page to settle.
func (s *BotSession) Navigate(url string) error {
	s.frame = nil
	if err := s.page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := s.page.WaitLoad(); err != nil {
		return fmt.Errorf("page failed to load: %w", err)
	}
	return nil
}

// Refresh reloads the page and drops any iframe context.
func (s *BotSession) Refresh() error {
	s.frame = nil
	if err := s.page.Reload(); err != nil {
		return err
	}
	return s.page.WaitLoad()
}

// CurrentURL returns the page URL, empty when it cannot be read.
func (s *BotSession) CurrentURL() string {
	info, err := s.page.Info()
	if err != nil {
		s.log.Warn("could not read page info", zap.Error(err))
		return ""
	}
	return info.URL
}

// PageHTML returns the rendered top-level document, empty on failure.
func (s *BotSession) PageHTML() string {
	html, err := s.page.HTML()
	if err != nil {
		s.log.Warn("could not read page html", zap.Error(err))
		return ""
	}
	return html
}

// CurrentState classifies what the page is showing right now. A page that
// cannot even be read classifies as the error state.
func (s *BotSession) CurrentState() PageState {
	html, err := s.page.HTML()
	if err != nil {
		s.log.Warn("could not read page for classification", zap.Error(err))
		return StateError
	}
	return ClassifyPage(s.CurrentURL(), html)
}

// Sleep blocks for base seconds plus a uniform random extra of up to jitter
// seconds. Every pause in the flow goes through here so no two runs pace
// identically.
func (s *BotSession) Sleep(base, jitter float64) {
	d := base + s.rand.Float64()*jitter
	s.log.Debug("sleeping", zap.Float64("seconds", d))
	time.Sleep(time.Duration(d * float64(time.Second)))
}

// SolveChallenge runs the challenge solver against the current page.
func (s *BotSession) SolveChallenge() bool {
	return s.solver.Solve(s.page)
}

// clickID clicks the element with the given id, returning errElementMissing
// when it is not on the page.
func (s *BotSession) clickID(id string) error {
	return s.clickSelector("#" + id)
}

func (s *BotSession) clickSelector(sel string) error {
	ok, el, err := s.page.Has(sel)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", sel, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", sel, errElementMissing)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

// clickNth clicks the idx-th element matching sel, for the odd spots where
// the page renders duplicate ids.
func (s *BotSession) clickNth(sel string, idx int) error {
	els, err := s.page.Elements(sel)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", sel, err)
	}
	if len(els) <= idx {
		return fmt.Errorf("%s[%d]: %w", sel, idx, errElementMissing)
	}
	if err := els[idx].Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s[%d]: %w", sel, idx, err)
	}
	return nil
}

// typeInto focuses the input with the given id and types the text one rune
// at a time with a 10-50ms jittered inter-key delay.
func (s *BotSession) typeInto(id, text string, clearFirst bool) error {
	ok, el, err := s.page.Has("#" + id)
	if err != nil {
		return fmt.Errorf("lookup #%s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("#%s: %w", id, errElementMissing)
	}

	if clearFirst {
		if err := el.SelectAllText(); err == nil {
			_ = el.Input("")
		}
	}

	for _, r := range text {
		if err := el.Input(string(r)); err != nil {
			return fmt.Errorf("type into #%s: %w", id, err)
		}
		time.Sleep(time.Duration(10+s.rand.Intn(41)) * time.Millisecond)
	}
	return nil
}

// elementAttr reads an attribute off the first element matching sel.
func (s *BotSession) elementAttr(sel, attr string) (string, error) {
	ok, el, err := s.page.Has(sel)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", sel, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", sel, errElementMissing)
	}
	v, err := el.Attribute(attr)
	if err != nil {
		return "", fmt.Errorf("read %s@%s: %w", sel, attr, err)
	}
	if v == nil {
		return "", nil
	}
	return *v, nil
}

func (s *BotSession) elementText(sel string) (string, error) {
	ok, el, err := s.page.Has(sel)
	if err != nil {
		return "", fmt.Errorf("lookup %s: %w", sel, err)
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", sel, errElementMissing)
	}
	return el.Text()
}

func (s *BotSession) scrollToBottom() {
	_, err := s.page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	if err != nil {
		s.log.Debug("scroll to bottom failed", zap.Error(err))
	}
}

// EnterMainFrame points content reads at the challenge iframe when one is
// present. Best effort: on any failure reads stay on the top document.
func (s *BotSession) EnterMainFrame() {
	ok, el, err := s.page.Has("#main-iframe")
	if err != nil || !ok {
		s.frame = nil
		return
	}
	frame, err := el.Frame()
	if err != nil {
		s.log.Debug("could not enter main iframe", zap.Error(err))
		s.frame = nil
		return
	}
	s.frame = frame
}

// Content returns the rendered document of the current frame context.
func (s *BotSession) Content() string {
	page := s.page
	if s.frame != nil {
		page = s.frame
	}
	html, err := page.HTML()
	if err != nil {
		s.log.Warn("could not read frame content", zap.Error(err))
		return ""
	}
	return html
}

// ClickCandidate presses the "I am the candidate" button.
func (s *BotSession) ClickCandidate() error {
	return s.clickID("i-am-candidate")
}

// ConfirmChanges presses the final booking confirmation button.
func (s *BotSession) ConfirmChanges() error {
	return s.clickID("confirm-changes")
}

// CaptureScreenshot writes a full-page screenshot into the screenshot
// directory for diagnostics. Failures are logged, never returned: losing a
// screenshot must not lose the run.
func (s *BotSession) CaptureScreenshot(label string) {
	if s.page == nil {
		return
	}

	data, err := s.page.Screenshot(true, nil)
	if err != nil {
		s.log.Warn("could not capture screenshot", zap.Error(err))
		return
	}

	if err := os.MkdirAll(s.cfg.ScreenshotDir, 0755); err != nil {
		s.log.Warn("could not create screenshot dir", zap.Error(err))
		return
	}

	name := fmt.Sprintf("%s_%s_%s.png", time.Now().Format("2006-01-02_15-04-05"), s.runID, label)
	path := filepath.Join(s.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		s.log.Warn("could not write screenshot", zap.Error(err))
		return
	}

	s.log.Info("screenshot captured", zap.String("path", path))
}
