package qwacker

import (
	"math/rand"
	"sort"
	"time"

	"github.com/enescakir/emoji"
	"github.com/forPelevin/gomoji"
)

// fallbackEmojis is the pool drawn from when none of a leader's stated
// candidates are available. Hopefully non-offensive food emojis.
//
// The pool must stay larger than the biggest roster we'd ever provision:
// the fallback draw re-rolls on collision and will spin forever if every
// entry is claimed.
var fallbackEmojis = []string{
	"🍇", "🍈", "🍉", "🍊", "🍋", "🍋‍🟩", "🍌", "🍍", "🥭", "🍎", "🍏",
	"🍐", "🍒", "🍓", "🫐", "🥝", "🍅", "🫒", "🥥", "🥑", "🍮", "🍯",
	"🥔", "🥕", "🌽", "🌶️", "🫑", "🥒", "🥬", "🥦", "🧄", "🧅", "🥜",
	"🫘", "🌰", "🫚", "🫛", "🍄‍🟫", "🍞", "🥐", "🥖", "🫓", "🥨", "🥯",
	"🥞", "🧇", "🧀", "🍖", "🍗", "🥩", "🥓", "🍔", "🍟", "🍕", "🌭",
	"🥪", "🌮", "🌯", "🫔", "🥙", "🧆", "🥚", "🍳", "🥘", "🍲", "🫕",
	"🥣", "🥗", "🍿", "🧈", "🧂", "🥫", "🍝", "🍱", "🍘", "🍙", "🍚",
	"🍛", "🍜", "🍠", "🍢", "🍣", "🍤", "🍥", "🥮", "🍡", "🥟", "🥠",
	"🥡", "🍦", "🍧", "🍨", "🍩", "🍪", "🎂", "🍰", "🧁", "🥧", "🍫",
	"🍬", "🍭",
}

// extractEmojis pulls the distinct emoji characters out of a free-text
// field, first-seen order preserved. Both literal emoji and
// colon-delimited alias codes (":apple:") are recognized; the text around
// them is ignored. An empty result is fine.
func extractEmojis(raw string) []string {
	if raw == "" {
		return nil
	}

	// Resolve :alias: codes before scanning for emoji characters.
	expanded := emoji.Parse(raw)

	var out []string
	seen := map[string]bool{}
	for _, e := range gomoji.CollectAll(expanded) {
		if seen[e.Character] {
			continue
		}
		seen[e.Character] = true
		out = append(out, e.Character)
	}
	return out
}

// assignRoleEmojis gives every leader a unique display emoji, in place.
//
// Priority is by submission time, most recent first; a missing timestamp
// counts as "now", so it's processed first. Each leader takes the first of
// their stated candidates not already claimed this run. When none are
// available the leader draws uniformly from fallbackEmojis, re-rolling on
// collision — see the pool-size requirement on fallbackEmojis.
//
// The roster's relative order on return matches the priority order; later
// stages re-sort to their own needs.
func assignRoleEmojis(dls []*DiscussionLeader, rng *rand.Rand) {
	now := time.Now()
	submittedAt := func(dl *DiscussionLeader) time.Time {
		if dl.Timestamp.IsZero() {
			return now
		}
		return dl.Timestamp
	}
	sort.SliceStable(dls, func(i, j int) bool {
		return submittedAt(dls[i]).After(submittedAt(dls[j]))
	})

	chosen := map[string]bool{}
	for _, dl := range dls {
		for _, e := range dl.Emojis {
			if !chosen[e] {
				dl.RoleEmoji = e
				chosen[e] = true
				break
			}
		}
		for dl.RoleEmoji == "" {
			if e := fallbackEmojis[rng.Intn(len(fallbackEmojis))]; !chosen[e] {
				dl.RoleEmoji = e
				chosen[e] = true
			}
		}
	}
}
