package prompt

var (
	agentTypes     = set("receptionist", "support", "sales", "general")
	tones          = set("professional", "friendly", "casual")
	collectedTypes = set("string", "email", "phone", "date", "boolean")
)

const (
	defaultAgentType     = "general"
	defaultTone          = "professional"
	defaultCollectedType = "string"
)

// Normalize coerces out-of-enum values produced by the model in place.
// Unknown keys are left untouched.
func Normalize(cfg map[string]any) {
	if cfg == nil {
		return
	}
	if v, ok := cfg["agent_type"]; ok && !inSet(agentTypes, v) {
		cfg["agent_type"] = defaultAgentType
	}

	if p, ok := cfg["personality"].(map[string]any); ok {
		if v, ok := p["tone"]; ok && !inSet(tones, v) {
			p["tone"] = defaultTone
		}
	}

	integrations, ok := cfg["integrations"].(map[string]any)
	if !ok {
		integrations = map[string]any{}
		cfg["integrations"] = integrations
	}
	integrations["phone"] = true

	if fields, ok := cfg["data_collection"].([]any); ok {
		for _, f := range fields {
			field, ok := f.(map[string]any)
			if !ok {
				continue
			}
			if v, ok := field["type"]; ok && !inSet(collectedTypes, v) {
				field["type"] = defaultCollectedType
			}
		}
	}
}

func set(values ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[v] = struct{}{}
	}
	return out
}

func inSet(s map[string]struct{}, v any) bool {
	str, ok := v.(string)
	if !ok {
		return false
	}
	_, ok = s[str]
	return ok
}
