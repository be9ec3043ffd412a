package protocol

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"mindshift/internal/logging"
)

// Preloader precomputes the response text of every placeholder-free step so
// the hot path can serve them without substitution work, and layers
// per-step wording overrides from an optional YAML file on top. The
// overrides file is watched and hot-reloaded, so protocol wording
// corrections ship without a redeploy.
type Preloader struct {
	mu        sync.RWMutex
	reg       *Registry
	static    map[StepID]string // preloaded final text for placeholder-free steps
	overrides map[StepID]string

	path        string
	watcher     *fsnotify.Watcher
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewPreloader builds the preload cache from the registry. overridesPath
// may be empty (no override support) or point at a file that does not
// exist yet.
func NewPreloader(reg *Registry, overridesPath string) *Preloader {
	p := &Preloader{
		reg:         reg,
		path:        overridesPath,
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
	}
	if err := p.loadOverrides(); err != nil {
		logging.Get(logging.CategoryBoot).Warn("Preloader: could not load overrides: %v", err)
	}
	p.rebuild()
	return p
}

// Template returns the effective scripted template for a step, with any
// wording override applied.
func (p *Preloader) Template(id StepID) string {
	step := p.reg.Step(id)
	if step == nil {
		return ""
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if o, ok := p.overrides[id]; ok {
		return o
	}
	return step.Template
}

// Resolve returns the final response text for a step if it was preloaded
// (placeholder-free). The second return value reports a cache hit.
func (p *Preloader) Resolve(id StepID) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	text, ok := p.static[id]
	return text, ok
}

// rebuild recomputes the static cache from the registry plus overrides.
func (p *Preloader) rebuild() {
	p.mu.Lock()
	defer p.mu.Unlock()

	static := make(map[StepID]string)
	for id, step := range p.reg.steps {
		if step.AutoAdvance {
			continue
		}
		tpl := step.Template
		if o, ok := p.overrides[id]; ok {
			tpl = o
		}
		if !HasPlaceholders(tpl) {
			static[id] = tpl
		}
	}
	p.static = static
}

// loadOverrides reads the overrides file. A missing file is not an error.
func (p *Preloader) loadOverrides() error {
	if p.path == "" {
		return nil
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		if os.IsNotExist(err) {
			p.mu.Lock()
			p.overrides = nil
			p.mu.Unlock()
			return nil
		}
		return err
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return err
	}

	overrides := make(map[StepID]string, len(raw))
	for k, v := range raw {
		id := StepID(k)
		if !p.reg.Known(id) {
			logging.Get(logging.CategoryBoot).Warn("Preloader: override for unknown step %q ignored", k)
			continue
		}
		overrides[id] = v
	}

	p.mu.Lock()
	p.overrides = overrides
	p.mu.Unlock()
	return nil
}

// Start begins watching the overrides file's directory for changes.
// Non-blocking; the watcher runs in a goroutine until Stop is called.
func (p *Preloader) Start() error {
	if p.path == "" {
		return nil
	}

	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		p.mu.Unlock()
		return err
	}

	// Watch the directory: editors replace files on save, which drops
	// per-file watches.
	dir := filepath.Dir(p.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		p.mu.Unlock()
		return err
	}

	p.watcher = watcher
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.running = true
	p.mu.Unlock()

	go p.watchLoop()
	return nil
}

func (p *Preloader) watchLoop() {
	defer close(p.doneCh)
	boot := logging.Get(logging.CategoryBoot)

	// Trailing-edge debounce: editors fire several events per save, and a
	// burst must collapse into a single reload of the settled file.
	debounce := time.NewTimer(p.debounceDur)
	if !debounce.Stop() {
		<-debounce.C
	}
	defer debounce.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(p.debounceDur)
		case <-debounce.C:
			if err := p.loadOverrides(); err != nil {
				boot.Warn("Preloader: reload failed: %v", err)
				continue
			}
			p.rebuild()
			boot.Info("Preloader: overrides reloaded from %s", p.path)
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			boot.Warn("Preloader: watcher error: %v", err)
		}
	}
}

// Stop shuts down the watcher.
func (p *Preloader) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	watcher := p.watcher
	done := p.doneCh
	p.mu.Unlock()

	watcher.Close()
	<-done
}
