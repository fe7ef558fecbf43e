package authfile

// UnknownValue is the sentinel used when the id_token carries no usable
// email or plan claim.
const UnknownValue = "Unknown"

// Credential is the in-memory form of an external auth.json. It is never
// persisted as-is: metadata goes to the profile registry, tokens to the
// secret store.
type Credential struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
	AccountID    string
	Email        string
	PlanType     string
	// Raw is the full parsed auth.json, kept so fields written by other
	// consumers of the file round-trip through a sync unchanged.
	Raw map[string]any
}

// CloneRaw returns a deep copy of the preserved raw payload, or nil when
// none was captured. Mutating the copy never touches the credential.
func (c *Credential) CloneRaw() map[string]any {
	if c.Raw == nil {
		return nil
	}
	return deepCopyMap(c.Raw)
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = deepCopyValue(e)
		}
		return cp
	default:
		return v
	}
}
