package inventory

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/agentcatalog/internal/api"
	"github.com/giantswarm/agentcatalog/internal/selector"
	"github.com/giantswarm/agentcatalog/pkg/logging"
)

// resourceRecord is the on-disk form of one resource.
type resourceRecord struct {
	Labels           map[string]string `yaml:"labels"`
	ExecutionAgentID string            `yaml:"executionAgentId,omitempty"`
}

// FileInventory serves resources from a directory tree laid out as
// <root>/<tenantId>/<resourceId>.yaml and, once started, watches the tree
// and emits resource lifecycle events for every change it sees.
type FileInventory struct {
	mu sync.Mutex

	root string

	watcher *fsnotify.Watcher

	debounceInterval time.Duration

	// resyncOnStart emits a labels-changed event for every resource found
	// at start so bindings converge after downtime.
	resyncOnStart bool

	// known is the last observed state per tenant:resource key; events are
	// derived by diffing against it.
	known map[string]api.Resource

	pending map[string]*time.Timer

	stopCh chan struct{}

	running bool
}

// FileOptions tunes a FileInventory.
type FileOptions struct {
	// DebounceInterval coalesces bursts of filesystem events per file.
	// Defaults to 200ms.
	DebounceInterval time.Duration

	ResyncOnStart bool
}

// NewFileInventory creates a FileInventory rooted at root.
func NewFileInventory(root string, opts FileOptions) *FileInventory {
	if opts.DebounceInterval <= 0 {
		opts.DebounceInterval = 200 * time.Millisecond
	}
	return &FileInventory{
		root:             root,
		debounceInterval: opts.DebounceInterval,
		resyncOnStart:    opts.ResyncOnStart,
		known:            make(map[string]api.Resource),
		pending:          make(map[string]*time.Timer),
		stopCh:           make(chan struct{}),
	}
}

// Root returns the inventory directory.
func (f *FileInventory) Root() string {
	return f.root
}

// GetResource reads one resource from disk.
func (f *FileInventory) GetResource(ctx context.Context, tenantID, resourceID string) (api.Resource, error) {
	if err := ctx.Err(); err != nil {
		return api.Resource{}, err
	}
	if !validName(tenantID) || !validName(resourceID) {
		return api.Resource{}, api.NewResourceNotFoundError(tenantID, resourceID)
	}
	return readResource(f.resourcePath(tenantID, resourceID), tenantID, resourceID)
}

// FindResourcesMatchingSelector scans the tenant's directory.
func (f *FileInventory) FindResourcesMatchingSelector(ctx context.Context, tenantID string, sel map[string]string, method api.SelectorMethod) ([]string, error) {
	if !validName(tenantID) {
		return nil, nil
	}
	resources, err := f.scanTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	match := selector.New(sel, method)
	var ids []string
	for _, r := range resources {
		if match.Matches(r.Labels) {
			ids = append(ids, r.ResourceID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Put writes a resource file atomically. The watcher, if running, picks up
// the change like any other edit.
func (f *FileInventory) Put(r api.Resource) error {
	if !validName(r.TenantID) || !validName(r.ResourceID) {
		return api.NewValidationError("resource", fmt.Sprintf("invalid tenant or resource id %q", api.ResourceKey(r.TenantID, r.ResourceID)))
	}
	data, err := yaml.Marshal(resourceRecord{Labels: r.Labels, ExecutionAgentID: r.ExecutionAgentID})
	if err != nil {
		return fmt.Errorf("encode resource %s: %w", api.ResourceKey(r.TenantID, r.ResourceID), err)
	}

	dir := filepath.Join(f.root, r.TenantID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create tenant directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".resource-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write resource: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write resource: %w", err)
	}
	return os.Rename(tmp.Name(), f.resourcePath(r.TenantID, r.ResourceID))
}

// Remove deletes a resource file.
func (f *FileInventory) Remove(tenantID, resourceID string) error {
	err := os.Remove(f.resourcePath(tenantID, resourceID))
	if errors.Is(err, fs.ErrNotExist) {
		return api.NewResourceNotFoundError(tenantID, resourceID)
	}
	return err
}

// Start snapshots the tree and begins watching it. Events are sent to the
// provided channel until ctx is cancelled or Stop is called.
func (f *FileInventory) Start(ctx context.Context, events chan<- api.ResourceEvent) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return nil
	}

	if err := os.MkdirAll(f.root, 0o755); err != nil {
		f.mu.Unlock()
		return fmt.Errorf("create inventory directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		f.mu.Unlock()
		return err
	}
	stopCh := make(chan struct{})
	f.watcher = watcher
	f.running = true
	f.stopCh = stopCh
	f.mu.Unlock()

	if err := f.watchDir(f.root); err != nil {
		f.Stop()
		return err
	}

	initial, err := f.snapshot(ctx)
	if err != nil {
		f.Stop()
		return err
	}

	go f.processEvents(ctx, watcher, stopCh, events)

	if f.resyncOnStart {
		go func() {
			for _, r := range initial {
				f.emit(ctx, events, api.ResourceEvent{
					TenantID:      r.TenantID,
					ResourceID:    r.ResourceID,
					LabelsChanged: true,
				})
			}
		}()
	}

	logging.Info("FileInventory", "Started watching %s (%d resources)", f.root, len(initial))
	return nil
}

// snapshot records the current state of every resource and adds a watch
// per tenant directory.
func (f *FileInventory) snapshot(ctx context.Context) ([]api.Resource, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("read inventory directory: %w", err)
	}

	var all []api.Resource
	for _, entry := range entries {
		if !entry.IsDir() || !validName(entry.Name()) {
			continue
		}
		if err := f.watchDir(filepath.Join(f.root, entry.Name())); err != nil {
			logging.Warn("FileInventory", "Failed to watch tenant %s: %v", entry.Name(), err)
		}
		resources, err := f.scanTenant(ctx, entry.Name())
		if err != nil {
			return nil, err
		}
		all = append(all, resources...)
	}

	f.mu.Lock()
	for _, r := range all {
		f.known[api.ResourceKey(r.TenantID, r.ResourceID)] = r
	}
	f.mu.Unlock()

	return all, nil
}

func (f *FileInventory) watchDir(dir string) error {
	f.mu.Lock()
	watcher := f.watcher
	f.mu.Unlock()
	if watcher == nil {
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	logging.Debug("FileInventory", "Watching directory: %s", dir)
	return nil
}

// processEvents owns the watcher and stop channel of one Start call; Stop
// may clear f.watcher before this goroutine first runs.
func (f *FileInventory) processEvents(ctx context.Context, watcher *fsnotify.Watcher, stopCh <-chan struct{}, events chan<- api.ResourceEvent) {
	for {
		select {
		case <-ctx.Done():
			f.cleanupPending()
			return

		case <-stopCh:
			f.cleanupPending()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			f.handleFsEvent(ctx, event, events)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("FileInventory", err, "Filesystem watcher error")
		}
	}
}

func (f *FileInventory) handleFsEvent(ctx context.Context, event fsnotify.Event, events chan<- api.ResourceEvent) {
	rel, err := filepath.Rel(f.root, event.Name)
	if err != nil {
		return
	}
	parts := strings.Split(rel, string(filepath.Separator))

	switch len(parts) {
	case 1:
		// A new tenant directory.
		if event.Op&fsnotify.Create != 0 && validName(parts[0]) {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := f.watchDir(event.Name); err != nil {
					logging.Warn("FileInventory", "Failed to watch tenant %s: %v", parts[0], err)
				}
				f.rescanTenant(ctx, parts[0], events)
			}
		}
		if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			f.rescanTenant(ctx, parts[0], events)
		}
	case 2:
		resourceID, ok := resourceIDFromFile(parts[1])
		if !ok || !validName(parts[0]) {
			return
		}
		f.debounce(ctx, parts[0], resourceID, events)
	}
}

// rescanTenant debounces every resource of a tenant that is either on disk
// or known from before.
func (f *FileInventory) rescanTenant(ctx context.Context, tenantID string, events chan<- api.ResourceEvent) {
	ids := make(map[string]bool)

	resources, err := f.scanTenant(ctx, tenantID)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Warn("FileInventory", "Failed to scan tenant %s: %v", tenantID, err)
	}
	for _, r := range resources {
		ids[r.ResourceID] = true
	}

	f.mu.Lock()
	for _, r := range f.known {
		if r.TenantID == tenantID {
			ids[r.ResourceID] = true
		}
	}
	f.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(ids)) {
		f.debounce(ctx, tenantID, id, events)
	}
}

func (f *FileInventory) debounce(ctx context.Context, tenantID, resourceID string, events chan<- api.ResourceEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := api.ResourceKey(tenantID, resourceID)
	if timer, ok := f.pending[key]; ok {
		timer.Stop()
	}

	f.pending[key] = time.AfterFunc(f.debounceInterval, func() {
		f.mu.Lock()
		delete(f.pending, key)
		f.mu.Unlock()

		if ev, ok := f.diff(tenantID, resourceID); ok {
			f.emit(ctx, events, ev)
		}
	})
}

// diff compares the file on disk with the last known state and derives the
// event to emit, if any.
func (f *FileInventory) diff(tenantID, resourceID string) (api.ResourceEvent, bool) {
	key := api.ResourceKey(tenantID, resourceID)
	current, err := readResource(f.resourcePath(tenantID, resourceID), tenantID, resourceID)

	f.mu.Lock()
	defer f.mu.Unlock()

	previous, known := f.known[key]

	if api.IsNotFound(err) {
		if !known {
			return api.ResourceEvent{}, false
		}
		delete(f.known, key)
		return api.ResourceEvent{TenantID: tenantID, ResourceID: resourceID, Deleted: true}, true
	}
	if err != nil {
		logging.Warn("FileInventory", "Ignoring unreadable resource %s: %v", key, err)
		return api.ResourceEvent{}, false
	}

	f.known[key] = current
	return changeEvent(previous, known, current)
}

func changeEvent(previous api.Resource, known bool, current api.Resource) (api.ResourceEvent, bool) {
	ev := api.ResourceEvent{TenantID: current.TenantID, ResourceID: current.ResourceID}

	ev.LabelsChanged = !known || !maps.Equal(previous.Labels, current.Labels)
	if current.HasExecutionAgent() && current.ExecutionAgentID != previous.ExecutionAgentID {
		ev.ReattachedExecutionAgentID = current.ExecutionAgentID
		// A first association has nothing to replay; the bindings still
		// need to be computed.
		if known && !previous.HasExecutionAgent() {
			ev.LabelsChanged = true
		}
	}

	if !ev.LabelsChanged && !ev.Reattached() {
		return api.ResourceEvent{}, false
	}
	return ev, true
}

func (f *FileInventory) emit(ctx context.Context, events chan<- api.ResourceEvent, ev api.ResourceEvent) {
	f.mu.Lock()
	stopCh := f.stopCh
	f.mu.Unlock()

	select {
	case events <- ev:
		logging.Debug("FileInventory", "Emitted event for %s (deleted=%t labelsChanged=%t reattached=%t)",
			ev.Key(), ev.Deleted, ev.LabelsChanged, ev.Reattached())
	case <-ctx.Done():
	case <-stopCh:
	}
}

func (f *FileInventory) cleanupPending() {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, timer := range f.pending {
		timer.Stop()
		delete(f.pending, key)
	}
}

// Stop stops watching.
func (f *FileInventory) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.running {
		return nil
	}
	f.running = false
	close(f.stopCh)

	if f.watcher != nil {
		if err := f.watcher.Close(); err != nil {
			logging.Error("FileInventory", err, "Error closing filesystem watcher")
		}
		f.watcher = nil
	}

	logging.Info("FileInventory", "Stopped watching %s", f.root)
	return nil
}

func (f *FileInventory) scanTenant(ctx context.Context, tenantID string) ([]api.Resource, error) {
	entries, err := os.ReadDir(filepath.Join(f.root, tenantID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tenant %s: %w", tenantID, err)
	}

	var resources []api.Resource
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		resourceID, ok := resourceIDFromFile(entry.Name())
		if entry.IsDir() || !ok {
			continue
		}
		r, err := readResource(filepath.Join(f.root, tenantID, entry.Name()), tenantID, resourceID)
		if err != nil {
			logging.Warn("FileInventory", "Skipping resource %s: %v", api.ResourceKey(tenantID, resourceID), err)
			continue
		}
		resources = append(resources, r)
	}
	return resources, nil
}

func (f *FileInventory) resourcePath(tenantID, resourceID string) string {
	return filepath.Join(f.root, tenantID, resourceID+".yaml")
}

func readResource(path, tenantID, resourceID string) (api.Resource, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return api.Resource{}, api.NewResourceNotFoundError(tenantID, resourceID)
	}
	if err != nil {
		return api.Resource{}, fmt.Errorf("read %s: %w", path, err)
	}

	var rec resourceRecord
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return api.Resource{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if rec.Labels == nil {
		rec.Labels = map[string]string{}
	}
	return api.Resource{
		TenantID:         tenantID,
		ResourceID:       resourceID,
		Labels:           rec.Labels,
		ExecutionAgentID: rec.ExecutionAgentID,
	}, nil
}

func resourceIDFromFile(name string) (string, bool) {
	if strings.HasPrefix(name, ".") {
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".yaml" && ext != ".yml" {
		return "", false
	}
	return strings.TrimSuffix(name, filepath.Ext(name)), true
}

func validName(s string) bool {
	return s != "" && !strings.HasPrefix(s, ".") && !strings.ContainsAny(s, `/\:`)
}
