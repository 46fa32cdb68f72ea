package cache

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	defaultMultiplier uint64 = 37
	defaultHashcode   uint64 = 17
	nilValueHash      uint64 = 1
)

// CacheKey is the identity of one query: the statement id, page, SQL text,
// bound parameter values and environment id, contributed in that order.
//
// Equality is positional. Keys with fewer than two contributions are null
// keys and are never equal to another instance, not even another null key.
// A CacheKey is not safe for concurrent mutation; once handed to a cache it
// must not be updated.
type CacheKey struct {
	multiplier uint64
	hashcode   uint64
	checksum   uint64
	count      int
	values     []any
	parts      []string
	str        string
}

// NewCacheKey returns a key with values already contributed.
func NewCacheKey(values ...any) *CacheKey {
	k := &CacheKey{multiplier: defaultMultiplier, hashcode: defaultHashcode}
	k.UpdateAll(values...)
	return k
}

// Update contributes v, folding it into the running hash.
func (k *CacheKey) Update(v any) {
	part := encodeValue(v)
	base := nilValueHash
	if v != nil {
		base = xxhash.Sum64String(part)
	}

	k.count++
	k.checksum += base
	base *= uint64(k.count)
	k.hashcode = k.multiplier*k.hashcode + base

	k.values = append(k.values, v)
	k.parts = append(k.parts, part)
	k.str = ""
}

func (k *CacheKey) UpdateAll(values ...any) {
	for _, v := range values {
		k.Update(v)
	}
}

// IsNull reports whether k has too few contributions to identify a query.
func (k *CacheKey) IsNull() bool {
	return k == nil || k.count < 2
}

func (k *CacheKey) Count() int { return k.count }

func (k *CacheKey) Hash() uint64 { return k.hashcode }

// Values returns a copy of the contributed values, in order.
func (k *CacheKey) Values() []any {
	return append([]any(nil), k.values...)
}

// Equal compares two keys by accumulated hash, checksum, count and every
// contributed value in order.
func (k *CacheKey) Equal(other *CacheKey) bool {
	if k == other {
		return k != nil
	}
	if k.IsNull() || other.IsNull() {
		return false
	}
	if k.hashcode != other.hashcode || k.checksum != other.checksum || k.count != other.count {
		return false
	}
	for i := range k.parts {
		if k.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy, so a child key can extend its parent's
// contributions without mutating the parent.
func (k *CacheKey) Clone() *CacheKey {
	return &CacheKey{
		multiplier: k.multiplier,
		hashcode:   k.hashcode,
		checksum:   k.checksum,
		count:      k.count,
		values:     append([]any(nil), k.values...),
		parts:      append([]string(nil), k.parts...),
		str:        k.str,
	}
}

// String renders hash, checksum and every encoded value. Two non-null keys
// have the same string exactly when they are Equal, which makes it usable as
// a map or remote store key.
func (k *CacheKey) String() string {
	if k.str != "" {
		return k.str
	}
	var b strings.Builder
	b.WriteString(strconv.FormatUint(k.hashcode, 10))
	b.WriteString(partSeparator)
	b.WriteString(strconv.FormatUint(k.checksum, 10))
	for _, p := range k.parts {
		b.WriteString(partSeparator)
		b.WriteString(p)
	}
	k.str = b.String()
	return k.str
}
