package security

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/ollagate/ollagate/internal/config"
	"github.com/ollagate/ollagate/internal/core/ports"
	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/internal/util"
)

const accessFileName = "access"

// AccessFile is the persisted shape of the IP filter.
type AccessFile struct {
	Mode      string   `json:"mode"`
	Whitelist []string `json:"whitelist"`
	Blacklist []string `json:"blacklist"`
}

// AccessController is the IPv4 filter in front of the pipeline. Modes:
// disabled lets everything through, whitelist admits only listed sources,
// blacklist rejects listed sources. Entries are plain addresses or CIDRs.
type AccessController struct {
	store  ports.StateStore
	logger *logger.StyledLogger

	mu        sync.RWMutex
	mode      string
	whitelist []string
	blacklist []string
}

func NewAccessController(store ports.StateStore, cfg config.AccessConfig, styledLogger *logger.StyledLogger) (*AccessController, error) {
	c := &AccessController{
		store:     store,
		logger:    styledLogger,
		mode:      cfg.Mode,
		whitelist: cfg.Whitelist,
		blacklist: cfg.Blacklist,
	}
	if c.mode == "" {
		c.mode = config.AccessModeDisabled
	}

	var persisted AccessFile
	found, err := store.Load(accessFileName, &persisted)
	if err != nil {
		return nil, err
	}
	if found {
		if persisted.Mode != "" {
			c.mode = persisted.Mode
		}
		if persisted.Whitelist != nil {
			c.whitelist = persisted.Whitelist
		}
		if persisted.Blacklist != nil {
			c.blacklist = persisted.Blacklist
		}
	}

	styledLogger.Info("IP access filter ready", "mode", c.mode)
	return c, nil
}

// IsAllowed decides whether a client IP may proceed. The address is
// normalized first so mapped IPv4 and ::1 behave like their v4 forms.
func (c *AccessController) IsAllowed(ip string) bool {
	normalized := util.NormalizeIP(ip)

	c.mu.RLock()
	defer c.mu.RUnlock()

	switch c.mode {
	case config.AccessModeWhitelist:
		if len(c.whitelist) == 0 {
			return true
		}
		return matchesAny(normalized, c.whitelist)
	case config.AccessModeBlacklist:
		return !matchesAny(normalized, c.blacklist)
	default:
		return true
	}
}

func (c *AccessController) SetMode(mode string) error {
	switch mode {
	case config.AccessModeDisabled, config.AccessModeWhitelist, config.AccessModeBlacklist:
	default:
		return fmt.Errorf("unknown access mode %q", mode)
	}

	c.mu.Lock()
	c.mode = mode
	c.scheduleLocked()
	c.mu.Unlock()

	c.logger.Info("IP access mode changed", "mode", mode)
	return nil
}

func (c *AccessController) SetWhitelist(entries []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.whitelist = cleanEntries(entries)
	c.scheduleLocked()
}

func (c *AccessController) SetBlacklist(entries []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blacklist = cleanEntries(entries)
	c.scheduleLocked()
}

// ApplyConfig replaces the policy wholesale, used by config hot reload.
func (c *AccessController) ApplyConfig(cfg config.AccessConfig) {
	mode := cfg.Mode
	if mode == "" {
		mode = config.AccessModeDisabled
	}

	c.mu.Lock()
	c.mode = mode
	c.whitelist = cleanEntries(cfg.Whitelist)
	c.blacklist = cleanEntries(cfg.Blacklist)
	c.scheduleLocked()
	c.mu.Unlock()

	c.logger.Info("IP access policy reloaded", "mode", mode)
}

func (c *AccessController) Snapshot() AccessFile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return AccessFile{
		Mode:      c.mode,
		Whitelist: append([]string(nil), c.whitelist...),
		Blacklist: append([]string(nil), c.blacklist...),
	}
}

func (c *AccessController) scheduleLocked() {
	snapshot := &AccessFile{
		Mode:      c.mode,
		Whitelist: append([]string(nil), c.whitelist...),
		Blacklist: append([]string(nil), c.blacklist...),
	}
	c.store.Schedule(accessFileName, func() any { return snapshot })
}

func cleanEntries(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e != "" {
			out = append(out, e)
		}
	}
	return out
}

func matchesAny(ip string, entries []string) bool {
	for _, entry := range entries {
		if matchEntry(ip, entry) {
			return true
		}
	}
	return false
}

// matchEntry compares one list entry against the client address. CIDR
// entries compare the masked network numbers; anything else is an exact
// string match.
func matchEntry(ip, entry string) bool {
	if !strings.Contains(entry, "/") {
		return ip == entry
	}

	parts := strings.SplitN(entry, "/", 2)
	bits, err := strconv.Atoi(parts[1])
	if err != nil || bits < 0 || bits > 32 {
		return false
	}

	network, ok := ipv4ToUint32(parts[0])
	if !ok {
		return false
	}
	addr, ok := ipv4ToUint32(ip)
	if !ok {
		return false
	}

	var mask uint32
	if bits > 0 {
		mask = ^uint32(0) << (32 - bits)
	}
	return addr&mask == network&mask
}

func ipv4ToUint32(s string) (uint32, bool) {
	parsed := net.ParseIP(s)
	if parsed == nil {
		return 0, false
	}
	v4 := parsed.To4()
	if v4 == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(v4), true
}
