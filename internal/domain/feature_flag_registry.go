package domain

// FlagKey identifies a feature flag known at compile time.
type FlagKey string

const (
	FlagEarlyAccessMode FlagKey = "EARLY_ACCESS_MODE"
	FlagAgents          FlagKey = "AGENTS_FEATURE"
	FlagAffiliates      FlagKey = "AFFILIATES_FEATURE"
	FlagLaunchKits      FlagKey = "LAUNCH_KITS_FEATURE"
	FlagNews            FlagKey = "NEWS_FEATURE"
)

// FlagDefinition describes a registered flag and the value used when its
// targeting data cannot be read.
type FlagDefinition struct {
	Key         FlagKey
	Default     bool
	Description string
}

var flagRegistry = []FlagDefinition{
	{Key: FlagEarlyAccessMode, Default: false, Description: "Users let into the platform during early access; admins always pass"},
	{Key: FlagAgents, Default: false, Description: "AI agents section"},
	{Key: FlagAffiliates, Default: false, Description: "Affiliate program dashboard"},
	{Key: FlagLaunchKits, Default: false, Description: "Launch kits catalogue"},
	{Key: FlagNews, Default: false, Description: "News feed on the dashboard"},
}

var flagDefaults = buildFlagDefaults()

func buildFlagDefaults() map[FlagKey]bool {
	m := make(map[FlagKey]bool, len(flagRegistry))
	for _, def := range flagRegistry {
		m[def.Key] = def.Default
	}
	return m
}

// FlagKeys returns every registered flag key in registration order.
func FlagKeys() []FlagKey {
	out := make([]FlagKey, 0, len(flagRegistry))
	for _, def := range flagRegistry {
		out = append(out, def.Key)
	}
	return out
}

func FlagDefinitions() []FlagDefinition {
	return append([]FlagDefinition(nil), flagRegistry...)
}

// ParseFlagKey accepts only registered keys, compared exactly.
func ParseFlagKey(raw string) (FlagKey, bool) {
	key := FlagKey(raw)
	if _, ok := flagDefaults[key]; !ok {
		return "", false
	}
	return key, true
}

func IsKnownFlag(key FlagKey) bool {
	_, ok := flagDefaults[key]
	return ok
}

// DefaultValue is false for unknown keys.
func DefaultValue(key FlagKey) bool {
	return flagDefaults[key]
}
