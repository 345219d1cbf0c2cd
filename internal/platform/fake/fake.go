// Package fake provides an in-memory platform.Platform for tests. Registry,
// services, tasks and firewall rules live in maps; file removal works on the
// real filesystem so tests can point the known folders at t.TempDir().
package fake

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zhengda-lu/zerotrace/internal/platform"
)

var _ platform.Platform = (*Platform)(nil)

type regKey struct {
	hive    platform.Hive
	path    string
	strings map[string]string
	dwords  map[string]uint32
}

type service struct {
	info platform.ServiceInfo
}

// Run records one RunCommandLine call.
type Run struct {
	Exe     string
	Args    string
	Timeout time.Duration
}

// Platform is safe for concurrent use.
type Platform struct {
	mu sync.Mutex

	Dirs     platform.Folders
	Elevated bool

	keys     map[string]*regKey
	services map[string]*service
	tasks    map[string]string // lower(full path) -> full path
	rules    map[string]string // lower(name) -> name

	locked map[string]bool
	fail   map[string]error

	// RunErr is returned by RunCommandLine after the call is recorded.
	RunErr error
	Runs   []Run

	mutations []string
}

// New returns an empty, elevated platform with the given folders.
func New(dirs platform.Folders) *Platform {
	return &Platform{
		Dirs:     dirs,
		Elevated: true,
		keys:     make(map[string]*regKey),
		services: make(map[string]*service),
		tasks:    make(map[string]string),
		rules:    make(map[string]string),
		locked:   make(map[string]bool),
		fail:     make(map[string]error),
	}
}

func keyID(h platform.Hive, path string) string {
	return h.String() + `\` + strings.ToLower(strings.Trim(path, `\`))
}

// FailOn makes the named method (e.g. "ListServices") return err.
func (p *Platform) FailOn(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail[method] = err
}

func (p *Platform) failure(method string) error {
	return p.fail[method]
}

// Lock makes RemovePath fail for path, as if a running process held it open.
func (p *Platform) Lock(path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked[strings.ToLower(path)] = true
}

// Mutations returns every state-changing call in order.
func (p *Platform) Mutations() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.mutations...)
}

func (p *Platform) record(format string, args ...any) {
	p.mutations = append(p.mutations, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// ---------------------------------------------------------------------------
// Seeding
// ---------------------------------------------------------------------------

// AddKey creates path and all of its ancestors.
func (p *Platform) AddKey(h platform.Hive, path string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addKey(h, path)
}

func (p *Platform) addKey(h platform.Hive, path string) *regKey {
	path = strings.Trim(path, `\`)
	parts := strings.Split(path, `\`)
	var k *regKey
	for i := range parts {
		sub := strings.Join(parts[:i+1], `\`)
		id := keyID(h, sub)
		if existing, ok := p.keys[id]; ok {
			k = existing
			continue
		}
		k = &regKey{hive: h, path: sub, strings: map[string]string{}, dwords: map[string]uint32{}}
		p.keys[id] = k
	}
	return k
}

// SetString seeds a string value, creating the key.
func (p *Platform) SetString(h platform.Hive, path, name, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addKey(h, path).strings[strings.ToLower(name)] = value
}

// SetDWORD seeds a DWORD value, creating the key.
func (p *Platform) SetDWORD(h platform.Hive, path, name string, value uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.addKey(h, path).dwords[strings.ToLower(name)] = value
}

// AddService registers a service and its Start value.
func (p *Platform) AddService(name, displayName string, status platform.ServiceStatus, start platform.StartType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.services[strings.ToLower(name)] = &service{info: platform.ServiceInfo{
		Name: name, DisplayName: displayName, Status: status, StartType: start,
	}}
	p.addKey(platform.LocalMachine, platform.ServiceKeyPath(name)).dwords["start"] = uint32(start)
}

// AddTask registers a scheduled task by its full path.
func (p *Platform) AddTask(fullPath string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks[strings.ToLower(fullPath)] = fullPath
}

// AddFirewallRule registers a firewall rule.
func (p *Platform) AddFirewallRule(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rules[strings.ToLower(name)] = name
}

// ---------------------------------------------------------------------------
// platform.Platform
// ---------------------------------------------------------------------------

func (p *Platform) Folders() platform.Folders { return p.Dirs }

func (p *Platform) IsElevated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Elevated
}

func (p *Platform) SubKeys(h platform.Hive, path string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("SubKeys"); err != nil {
		return nil, err
	}
	parent := keyID(h, path)
	if _, ok := p.keys[parent]; !ok {
		return nil, errors.Wrapf(platform.ErrNotFound, "%s", platform.KeyPath(h, path))
	}
	prefix := parent + `\`
	var names []string
	for id, k := range p.keys {
		if !strings.HasPrefix(id, prefix) || strings.Contains(id[len(prefix):], `\`) {
			continue
		}
		names = append(names, k.path[strings.LastIndex(k.path, `\`)+1:])
	}
	sort.Strings(names)
	return names, nil
}

func (p *Platform) KeyExists(h platform.Hive, path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.keys[keyID(h, path)]
	return ok
}

func (p *Platform) StringValue(h platform.Hive, path, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.keys[keyID(h, path)]
	if !ok {
		return "", errors.Wrapf(platform.ErrNotFound, "%s", platform.KeyPath(h, path))
	}
	v, ok := k.strings[strings.ToLower(name)]
	if !ok {
		return "", errors.Wrapf(platform.ErrNotFound, "%s[%s]", platform.KeyPath(h, path), name)
	}
	return v, nil
}

func (p *Platform) DWORDValue(h platform.Hive, path, name string) (uint32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	k, ok := p.keys[keyID(h, path)]
	if !ok {
		return 0, errors.Wrapf(platform.ErrNotFound, "%s", platform.KeyPath(h, path))
	}
	v, ok := k.dwords[strings.ToLower(name)]
	if !ok {
		return 0, errors.Wrapf(platform.ErrNotFound, "%s[%s]", platform.KeyPath(h, path), name)
	}
	return v, nil
}

func (p *Platform) SetStringValue(h platform.Hive, path, name, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("SetStringValue"); err != nil {
		return err
	}
	p.addKey(h, path).strings[strings.ToLower(name)] = value
	p.record("set-string %s[%s]", platform.KeyPath(h, path), name)
	return nil
}

func (p *Platform) SetDWORDValue(h platform.Hive, path, name string, value uint32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("SetDWORDValue"); err != nil {
		return err
	}
	k, ok := p.keys[keyID(h, path)]
	if !ok {
		return errors.Wrapf(platform.ErrNotFound, "%s", platform.KeyPath(h, path))
	}
	k.dwords[strings.ToLower(name)] = value
	if h == platform.LocalMachine && strings.EqualFold(name, "Start") {
		for _, s := range p.services {
			if strings.EqualFold(platform.ServiceKeyPath(s.info.Name), strings.Trim(path, `\`)) {
				s.info.StartType = platform.StartType(value)
			}
		}
	}
	p.record("set-dword %s[%s]=%d", platform.KeyPath(h, path), name, value)
	return nil
}

func (p *Platform) DeleteKeyTree(h platform.Hive, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("DeleteKeyTree"); err != nil {
		return err
	}
	id := keyID(h, path)
	for k := range p.keys {
		if k == id || strings.HasPrefix(k, id+`\`) {
			delete(p.keys, k)
		}
	}
	p.record("delete-key %s", platform.KeyPath(h, path))
	return nil
}

func (p *Platform) ListServices(ctx context.Context) ([]platform.ServiceInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("ListServices"); err != nil {
		return nil, err
	}
	infos := make([]platform.ServiceInfo, 0, len(p.services))
	for _, s := range p.services {
		infos = append(infos, s.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (p *Platform) ServiceExists(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.services[strings.ToLower(name)]
	return ok
}

func (p *Platform) ServiceStatus(name string) (platform.ServiceStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.services[strings.ToLower(name)]
	if !ok {
		return platform.StatusUnknown, errors.Wrapf(platform.ErrNotFound, "service %s", name)
	}
	return s.info.Status, nil
}

func (p *Platform) StopService(ctx context.Context, name string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("StopService"); err != nil {
		return err
	}
	s, ok := p.services[strings.ToLower(name)]
	if !ok {
		return errors.Wrapf(platform.ErrNotFound, "service %s", name)
	}
	s.info.Status = platform.StatusStopped
	p.record("stop-service %s", name)
	return nil
}

func (p *Platform) DeleteService(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("DeleteService"); err != nil {
		return err
	}
	if _, ok := p.services[strings.ToLower(name)]; !ok {
		return errors.Wrapf(platform.ErrNotFound, "service %s", name)
	}
	delete(p.services, strings.ToLower(name))
	p.record("delete-service %s", name)
	return nil
}

func (p *Platform) ListTasks(ctx context.Context) ([]platform.TaskInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("ListTasks"); err != nil {
		return nil, err
	}
	var out []platform.TaskInfo
	for _, full := range p.tasks {
		folder, name := platform.SplitTaskPath(full)
		out = append(out, platform.TaskInfo{Name: name, Path: folder})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullPath() < out[j].FullPath() })
	return out, nil
}

func (p *Platform) TaskExists(ctx context.Context, fullPath string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tasks[strings.ToLower(fullPath)]
	return ok
}

func (p *Platform) DeleteTask(ctx context.Context, fullPath string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("DeleteTask"); err != nil {
		return err
	}
	if _, ok := p.tasks[strings.ToLower(fullPath)]; !ok {
		return errors.Wrapf(platform.ErrNotFound, "task %s", fullPath)
	}
	delete(p.tasks, strings.ToLower(fullPath))
	p.record("delete-task %s", fullPath)
	return nil
}

func (p *Platform) ListFirewallRules(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("ListFirewallRules"); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		out = append(out, r)
	}
	sort.Strings(out)
	return out, nil
}

func (p *Platform) FirewallRuleExists(ctx context.Context, name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.rules[strings.ToLower(name)]
	return ok
}

func (p *Platform) DeleteFirewallRule(ctx context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failure("DeleteFirewallRule"); err != nil {
		return err
	}
	if _, ok := p.rules[strings.ToLower(name)]; !ok {
		return errors.Wrapf(platform.ErrNotFound, "rule %s", name)
	}
	delete(p.rules, strings.ToLower(name))
	p.record("delete-rule %s", name)
	return nil
}

func (p *Platform) RemovePath(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locked[strings.ToLower(path)] {
		return errors.Errorf("remove %s: file is in use", path)
	}
	if err := os.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "remove %s", path)
	}
	p.record("remove %s", path)
	return nil
}

func (p *Platform) RunCommandLine(ctx context.Context, exe, args string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Runs = append(p.Runs, Run{Exe: exe, Args: args, Timeout: timeout})
	p.record("run %s %s", exe, args)
	return p.RunErr
}
