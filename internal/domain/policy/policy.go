// Package policy resolves and mutates per-channel XP policy: the ignore list
// and the multiplier map. The two are kept disjoint by construction.
package policy

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/ShenPrime/Levelington/internal/domain/ledger"
	"github.com/ShenPrime/Levelington/internal/domain/shared"
)

// Multiplier bounds accepted from administrators.
const (
	MinMultiplier     = 0.1
	MaxMultiplier     = 10.0
	DefaultMultiplier = 1.0
)

// Policy is the decoded channel policy of one community.
type Policy struct {
	ignored     []shared.ChannelID
	multipliers map[shared.ChannelID]float64
}

// New returns an empty policy.
func New() *Policy {
	return &Policy{multipliers: make(map[shared.ChannelID]float64)}
}

// FromSettings decodes the ignore list and multiplier map from settings.
// A malformed multiplier document yields shared.ErrMalformedPolicy.
func FromSettings(settings ledger.Settings) (*Policy, error) {
	p := New()
	p.ignored = ParseIgnored(settings.Get(ledger.KeyIgnoredChannels))

	mults, err := ParseMultipliers(settings.Get(ledger.KeyChannelMultipliers))
	if err != nil {
		return nil, err
	}
	p.multipliers = mults

	return p, nil
}

// ParseIgnored splits a comma-joined ID list, dropping blanks and duplicates.
func ParseIgnored(raw string) []shared.ChannelID {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	seen := make(map[shared.ChannelID]struct{}, len(parts))
	out := make([]shared.ChannelID, 0, len(parts))
	for _, part := range parts {
		id := shared.ChannelID(strings.TrimSpace(part))
		if id.IsEmpty() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ParseMultipliers decodes the JSON multiplier map. Empty input is an empty map.
func ParseMultipliers(raw string) (map[shared.ChannelID]float64, error) {
	out := make(map[shared.ChannelID]float64)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}

	var decoded map[string]float64
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, shared.WrapError("policy", "ParseMultipliers", shared.ErrMalformedPolicy, "decode multipliers", err)
	}
	for id, v := range decoded {
		out[shared.ChannelID(id)] = v
	}
	return out, nil
}

// ValidateMultiplier checks an administrator-supplied multiplier.
func ValidateMultiplier(v float64) error {
	if v < MinMultiplier || v > MaxMultiplier {
		return shared.ErrMultiplierRange
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RESOLUTION
// ══════════════════════════════════════════════════════════════════════════════

// Disposition is the effective policy for one message's channel.
type Disposition struct {
	Ignored    bool
	Multiplier float64
}

// Resolve returns the disposition of channel, whose parent category is parent
// (may be empty). A channel is ignored if it or its parent is listed; ignoring
// wins over any multiplier. Multipliers are per-channel only because category
// multipliers are expanded onto children when set.
func (p *Policy) Resolve(channel, parent shared.ChannelID) Disposition {
	if p.IsIgnored(channel) || (!parent.IsEmpty() && p.IsIgnored(parent)) {
		return Disposition{Ignored: true}
	}
	if m, ok := p.multipliers[channel]; ok && m > 0 {
		return Disposition{Multiplier: m}
	}
	return Disposition{Multiplier: DefaultMultiplier}
}

// IsIgnored reports whether id is on the ignore list.
func (p *Policy) IsIgnored(id shared.ChannelID) bool {
	for _, ignored := range p.ignored {
		if ignored == id {
			return true
		}
	}
	return false
}

// Multiplier returns the explicit multiplier for id, if any.
func (p *Policy) Multiplier(id shared.ChannelID) (float64, bool) {
	m, ok := p.multipliers[id]
	return m, ok
}

// Ignored returns the ignore list in stored order.
func (p *Policy) Ignored() []shared.ChannelID {
	out := make([]shared.ChannelID, len(p.ignored))
	copy(out, p.ignored)
	return out
}

// Multipliers returns the explicit multipliers sorted by channel ID.
func (p *Policy) Multipliers() []ChannelMultiplier {
	out := make([]ChannelMultiplier, 0, len(p.multipliers))
	for id, v := range p.multipliers {
		out = append(out, ChannelMultiplier{ChannelID: id, Multiplier: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

// ChannelMultiplier is one entry of the multiplier map.
type ChannelMultiplier struct {
	ChannelID  shared.ChannelID
	Multiplier float64
}

// ══════════════════════════════════════════════════════════════════════════════
// MUTATION
// ══════════════════════════════════════════════════════════════════════════════

// ToggleResult reports which IDs a toggle added to or removed from the ignore list.
type ToggleResult struct {
	Added   []shared.ChannelID
	Removed []shared.ChannelID
}

// ToggleIgnore flips each ID's membership in the ignore list and drops every
// toggled ID from the multiplier map.
func (p *Policy) ToggleIgnore(ids []shared.ChannelID) ToggleResult {
	var result ToggleResult

	for _, id := range ids {
		if id.IsEmpty() {
			continue
		}
		if idx := p.indexOf(id); idx >= 0 {
			p.ignored = append(p.ignored[:idx], p.ignored[idx+1:]...)
			result.Removed = append(result.Removed, id)
		} else {
			p.ignored = append(p.ignored, id)
			result.Added = append(result.Added, id)
		}
		delete(p.multipliers, id)
	}

	return result
}

// SetMultiplier assigns value to every ID and removes them from the ignore list.
func (p *Policy) SetMultiplier(ids []shared.ChannelID, value float64) (int, error) {
	if err := ValidateMultiplier(value); err != nil {
		return 0, err
	}

	updated := 0
	for _, id := range ids {
		if id.IsEmpty() {
			continue
		}
		p.multipliers[id] = value
		if idx := p.indexOf(id); idx >= 0 {
			p.ignored = append(p.ignored[:idx], p.ignored[idx+1:]...)
		}
		updated++
	}
	return updated, nil
}

func (p *Policy) indexOf(id shared.ChannelID) int {
	for i, ignored := range p.ignored {
		if ignored == id {
			return i
		}
	}
	return -1
}

// Settings encodes both lists for a single SetSettings call.
func (p *Policy) Settings() map[ledger.SettingKey]string {
	return map[ledger.SettingKey]string{
		ledger.KeyIgnoredChannels:    EncodeIgnored(p.ignored),
		ledger.KeyChannelMultipliers: EncodeMultipliers(p.multipliers),
	}
}

// EncodeIgnored joins IDs with commas.
func EncodeIgnored(ids []shared.ChannelID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = string(id)
	}
	return strings.Join(parts, ",")
}

// EncodeMultipliers renders the map as a JSON object with sorted keys.
func EncodeMultipliers(m map[shared.ChannelID]float64) string {
	plain := make(map[string]float64, len(m))
	for id, v := range m {
		plain[string(id)] = v
	}
	// Marshalling a map of string to float64 cannot fail.
	data, _ := json.Marshal(plain)
	return string(data)
}
