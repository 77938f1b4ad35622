package security

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gov-dx-sandbox/attribute-forms/shared/monitoring"
)

// BanList reports whether a client IP is banned
type BanList interface {
	IsBanned(ctx context.Context, ip string) (bool, error)
}

// CIDRBanList is a static list of addresses and networks
type CIDRBanList struct {
	prefixes []netip.Prefix
}

// NewCIDRBanList parses entries such as "203.0.113.7" or "198.51.100.0/24"
func NewCIDRBanList(entries []string) (*CIDRBanList, error) {
	l := &CIDRBanList{}
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			p, err := netip.ParsePrefix(entry)
			if err != nil {
				return nil, fmt.Errorf("invalid banned network %q: %w", entry, err)
			}
			l.prefixes = append(l.prefixes, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid banned address %q: %w", entry, err)
		}
		addr = addr.Unmap()
		l.prefixes = append(l.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return l, nil
}

func (l *CIDRBanList) IsBanned(_ context.Context, ip string) (bool, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return false, nil
	}
	addr = addr.Unmap()
	for _, p := range l.prefixes {
		if p.Contains(addr) {
			return true, nil
		}
	}
	return false, nil
}

// SetCommands is the subset of the redis client used by RedisBanList
type SetCommands interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// RedisBanList keeps banned addresses in a redis set shared by all replicas
type RedisBanList struct {
	client SetCommands
	key    string
}

func NewRedisBanList(client SetCommands, key string) *RedisBanList {
	return &RedisBanList{client: client, key: key}
}

func (l *RedisBanList) IsBanned(ctx context.Context, ip string) (bool, error) {
	start := time.Now()
	banned, err := l.client.SIsMember(ctx, l.key, ip).Result()
	monitoring.RecordExternalCall("redis", "sismember", time.Since(start), err)
	if err != nil {
		return false, fmt.Errorf("failed to check ban list: %w", err)
	}
	return banned, nil
}

// Ban adds ip to the set
func (l *RedisBanList) Ban(ctx context.Context, ip string) error {
	return l.client.SAdd(ctx, l.key, ip).Err()
}

// Unban removes ip from the set
func (l *RedisBanList) Unban(ctx context.Context, ip string) error {
	return l.client.SRem(ctx, l.key, ip).Err()
}

// CompositeBanList bans an IP when any member does. Member errors are
// returned joined, but a positive answer from another member still wins.
type CompositeBanList []BanList

func (c CompositeBanList) IsBanned(ctx context.Context, ip string) (bool, error) {
	var errs []error
	for _, l := range c {
		banned, err := l.IsBanned(ctx, ip)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if banned {
			return true, nil
		}
	}
	return false, errors.Join(errs...)
}
